package b2

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// sha1HexLen is the length of a hex-encoded 160-bit digest.
const sha1HexLen = 40

// HashFunc digests upload contents for the X-Bz-Content-Sha1 header.
// It must return the digest as 40 lowercase hex characters.
type HashFunc func(data []byte) (string, error)

// sha1Hex is the default HashFunc.
func sha1Hex(data []byte) (string, error) {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// Client represents a B2 API client. All operations except
// AuthorizeAccount require a prior successful AuthorizeAccount call.
type Client struct {
	userAgent  string
	baseURL    string
	httpClient *http.Client
	hash       HashFunc
	autoRetry  bool

	// basicAuth is the encoded credential header kept for silent
	// re-authorization; auth is the session it last produced.
	basicAuth string
	auth      *Authorization
}

var _ ClientAPI = (*Client)(nil)

// Option adjusts a Client at construction time.
type Option func(*Client)

// WithBaseURL points authorization at a different API root, usually a
// test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithHTTPClient substitutes the HTTP client used for every request.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithHashFunc substitutes the digest used when UploadFile has to hash
// contents itself.
func WithHashFunc(fn HashFunc) Option {
	return func(c *Client) { c.hash = fn }
}

// WithAutoRetry toggles the single re-authorize-and-retry performed
// when an authenticated call comes back 401. Enabled by default.
func WithAutoRetry(enabled bool) Option {
	return func(c *Client) { c.autoRetry = enabled }
}

// NewClient creates an unauthorized client that identifies itself as
// userAgent on every request.
func NewClient(userAgent string, opts ...Option) (*Client, error) {
	if userAgent == "" {
		return nil, &ValidationError{Field: "userAgent", Reason: "must not be empty"}
	}
	c := &Client{
		userAgent:  userAgent,
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		hash:       sha1Hex,
		autoRetry:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// do executes a request produced by build. On a 401 with reauth set
// and automatic retry enabled, it re-authorizes once with the cached
// credentials and retries the rebuilt request exactly once; any
// further failure is surfaced as is.
func (c *Client) do(op string, build func() (*http.Request, error), out interface{}, reauth bool) error {
	err := c.roundTrip(op, build, out)
	if err == nil || !reauth || !c.autoRetry {
		return err
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsUnauthorized() {
		return err
	}
	if _, err := c.refreshAuthorization(); err != nil {
		return err
	}
	return c.roundTrip(op, build, out)
}

// roundTrip sends one request and decodes a 2xx JSON body into out.
// Non-2xx responses become an *APIError.
func (c *Client) roundTrip(op string, build func() (*http.Request, error), out interface{}) error {
	req, err := build()
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("b2 %s: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return apiError(op, res)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("b2 %s: decoding response: %w", op, err)
	}
	return nil
}

// apiError drains an error response into an *APIError, tolerating
// non-JSON bodies.
func apiError(op string, res *http.Response) *APIError {
	apiErr := &APIError{}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if json.Unmarshal(body, apiErr) != nil {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	apiErr.Op = op
	apiErr.Status = res.StatusCode
	if seconds, err := strconv.Atoi(res.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(seconds) * time.Second
	}
	return apiErr
}

// refreshAuthorization repeats the authorize call with the cached
// credentials and replaces the stored session.
func (c *Client) refreshAuthorization() (*Authorization, error) {
	build := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+apiPath+"b2_authorize_account", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.basicAuth)
		return req, nil
	}
	auth := new(Authorization)
	if err := c.do("b2_authorize_account", build, auth, false); err != nil {
		return nil, err
	}
	c.auth = auth
	return auth, nil
}

// AuthorizeAccount exchanges an application key for an account session
// and caches both, enabling the silent re-authorization performed on
// 401 responses.
func (c *Client) AuthorizeAccount(creds Credentials) (*Authorization, error) {
	c.basicAuth = creds.basic()
	return c.refreshAuthorization()
}

// Authorization returns the session cached by the last successful
// AuthorizeAccount, or nil before one. Treat it as read-only.
func (c *Client) Authorization() *Authorization {
	return c.auth
}

// GetUploadURL requests an upload grant for a bucket. Grants are not
// cached; callers may hold one and reuse it across uploads until B2
// rejects it.
func (c *Client) GetUploadURL(bucketID string) (*UploadURL, error) {
	if c.auth == nil {
		return nil, &AuthorizationError{Op: "b2_get_upload_url"}
	}
	build := func() (*http.Request, error) {
		body, err := json.Marshal(struct {
			BucketID string `json:"bucketId"`
		}{bucketID})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequest(http.MethodPost, c.auth.APIInfo.StorageAPI.APIURL+apiPath+"b2_get_upload_url", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.auth.AuthorizationToken)
		return req, nil
	}
	grant := new(UploadURL)
	if err := c.do("b2_get_upload_url", build, grant, true); err != nil {
		return nil, err
	}
	return grant, nil
}

// UploadFileOptions adjusts a single UploadFile call. The zero value
// hashes contents with the client's hash function, lets B2 derive the
// content type, and fetches a fresh upload grant.
type UploadFileOptions struct {
	// ContentType overrides the ContentTypeAuto default.
	ContentType string

	// ContentSha1 skips hashing when the caller already knows the
	// digest. Must be 40 hex characters.
	ContentSha1 string

	// ContentDisposition is stored with the file and echoed back on
	// download.
	ContentDisposition string

	// UploadURL reuses a grant from an earlier GetUploadURL call
	// instead of requesting a fresh one.
	UploadURL *UploadURL
}

// UploadFile stores contents under fileName in a single request and
// returns the server's description of the stored object. A nil opts
// uploads with defaults.
func (c *Client) UploadFile(bucketID, fileName string, contents []byte, opts *UploadFileOptions) (*UploadedFile, error) {
	if c.auth == nil {
		return nil, &AuthorizationError{Op: "b2_upload_file"}
	}
	if opts == nil {
		opts = &UploadFileOptions{}
	}

	sha := opts.ContentSha1
	if sha == "" {
		var err error
		if sha, err = c.hash(contents); err != nil {
			return nil, fmt.Errorf("b2 b2_upload_file: hashing contents: %w", err)
		}
	} else if len(sha) != sha1HexLen {
		return nil, &ValidationError{
			Field:  "contentSha1",
			Reason: fmt.Sprintf("must be %d hex characters, got %d", sha1HexLen, len(sha)),
		}
	}

	grant := opts.UploadURL
	if grant == nil {
		var err error
		if grant, err = c.GetUploadURL(bucketID); err != nil {
			return nil, err
		}
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = ContentTypeAuto
	}

	build := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, grant.UploadURL, bytes.NewReader(contents))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", grant.AuthorizationToken)
		req.Header.Set("X-Bz-File-Name", encodeFileName(fileName))
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("X-Bz-Content-Sha1", sha)
		if opts.ContentDisposition != "" {
			req.Header.Set("X-Bz-Info-b2-content-disposition", url.PathEscape(opts.ContentDisposition))
		}
		return req, nil
	}
	file := new(UploadedFile)
	if err := c.do("b2_upload_file", build, file, true); err != nil {
		return nil, err
	}
	return file, nil
}

// DownloadURL joins the authorized download base, the key's bucket
// name, and fileName into a by-name download URL. No request is made
// and fileName is used as given.
func (c *Client) DownloadURL(fileName string) (string, error) {
	if c.auth == nil {
		return "", &AuthorizationError{Op: "b2_download_file_by_name"}
	}
	storage := &c.auth.APIInfo.StorageAPI
	return storage.DownloadURL + "/file/" + storage.BucketName + "/" + fileName, nil
}

// encodeFileName percent-encodes each path segment of a B2 file name
// for the X-Bz-File-Name header, keeping / as the separator.
func encodeFileName(name string) string {
	segments := strings.Split(name, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
