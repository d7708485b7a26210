package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

const configTemplate = `# Optional bind address for the gateway, default "0.0.0.0"
bind_address = "0.0.0.0"

# Optional TCP port for the gateway, default 8080
port = 8080

# Optional log level, default "info"
loglevel = "info"

# Optional. When both are set the gateway requires HTTP basic auth with this
# pair on the file routes.
#username = "myusername"
#password = "mypassword"

# Optional number of parallel workers for 'b2 upload', default 4
upload_workers = 4

[b2]
# Required. Application key pair created in the B2 console. Both can also come
# from B2_APPLICATION_KEY_ID / B2_APPLICATION_KEY in the environment.
key_id = "YOURKEYID"
application_key = "YOURAPPLICATIONKEY"

# Required. Bucket the gateway and 'b2 upload' store files into.
bucket_id = "YOURBUCKETID"

# Optional User-Agent sent with every B2 request.
#user_agent = "my-app/1.0"

# Optional API root override, mainly for tests against a fake server.
#base_url = "https://api.backblazeb2.com"
`

// GenerateConfig writes a commented configuration template to configPath,
// backing up any existing file first.
func GenerateConfig(configPath string) error {
	fmt.Printf("Generating config %s\n", configPath)

	// Check if config file already exists and back it up
	if _, err := os.Stat(configPath); err == nil {
		backupPath := configPath + ".bak"
		fmt.Printf("Backing up config %s\n", configPath)
		if err := os.Rename(configPath, backupPath); err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
	}

	// Create parent directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	fmt.Printf("Writing %s\n", configPath)
	if err := os.WriteFile(configPath, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// PromptApplicationKey prompts on w and reads the application key from the
// terminal without echo.
func PromptApplicationKey(w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, "Enter application key: "); err != nil {
		return "", err
	}
	key, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read application key: %w", err)
	}
	if len(key) == 0 {
		return "", fmt.Errorf("application key must not be empty")
	}
	return strings.TrimSpace(string(key)), nil
}
