package app

import (
	"fmt"

	"github.com/NeKzor/b2"
	"github.com/NeKzor/b2/internal/config"
	"github.com/sirupsen/logrus"
)

// DefaultUserAgent identifies the glue components (gateway, CLI) to B2
// when the config does not set one.
const DefaultUserAgent = "b2-go/1.2"

// Container centralizes the core dependencies used across the application.
// It is intentionally small and uses interfaces so callers (and tests) can
// substitute implementations easily.
type Container struct {
	Config      *config.Config
	Logger      *logrus.Logger
	B2          b2.ClientAPI
	AuthorizeB2 bool
}

// Option allows customizing the container during construction.
type Option func(*Container) error

// WithLogger overrides the default logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Container) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.Logger = logger
		return nil
	}
}

// WithB2Client overrides the default B2 client.
func WithB2Client(client b2.ClientAPI) Option {
	return func(c *Container) error {
		if client == nil {
			return fmt.Errorf("b2 client cannot be nil")
		}
		c.B2 = client
		return nil
	}
}

// WithB2Authorization enables or disables the authorization performed
// during construction (default: enabled). Disabling it leaves the
// client unauthorized, which only makes sense for tests.
func WithB2Authorization(authorize bool) Option {
	return func(c *Container) error {
		c.AuthorizeB2 = authorize
		return nil
	}
}

// NewContainer builds a Container with sensible defaults derived from cfg.
// Options can be supplied to override specific dependencies (useful in
// tests). Unless disabled, the B2 account is authorized here so a bad
// key fails at startup rather than on the first request.
func NewContainer(cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	container := &Container{
		Config:      cfg,
		Logger:      NewLogger(cfg.Loglevel),
		AuthorizeB2: true,
	}

	// Apply options early so tests can inject mocks before defaults are created.
	for _, opt := range opts {
		if err := opt(container); err != nil {
			return nil, err
		}
	}

	if container.B2 == nil {
		client, err := buildB2Client(cfg)
		if err != nil {
			return nil, err
		}
		container.B2 = client
	}

	if container.AuthorizeB2 {
		creds := b2.Credentials{KeyID: cfg.B2.KeyID, ApplicationKey: cfg.B2.ApplicationKey}
		if _, err := container.B2.AuthorizeAccount(creds); err != nil {
			return nil, fmt.Errorf("failed to authorize with b2: %w", err)
		}
	}

	return container, nil
}

func buildB2Client(cfg *config.Config) (*b2.Client, error) {
	userAgent := cfg.B2.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	var clientOpts []b2.Option
	if cfg.B2.BaseURL != "" {
		clientOpts = append(clientOpts, b2.WithBaseURL(cfg.B2.BaseURL))
	}
	client, err := b2.NewClient(userAgent, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build b2 client: %w", err)
	}
	return client, nil
}

// NewLogger builds the text-formatted logger shared by the gateway and
// the CLI. Unknown levels fall back to info.
func NewLogger(levelStr string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
