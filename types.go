package b2

import (
	"encoding/base64"
	"errors"
	"os"
	"time"
)

const (
	// DefaultBaseURL is the API root used for authorization unless the
	// client was constructed with WithBaseURL.
	DefaultBaseURL = "https://api.backblazeb2.com"

	// ContentTypeAuto asks B2 to derive the content type from the file
	// name extension.
	ContentTypeAuto = "b2/x-auto"

	apiPath = "/b2api/v3/"
)

// Credentials is an application key pair created in the B2 console.
type Credentials struct {
	KeyID          string
	ApplicationKey string
}

// CredentialsFromEnv reads the key pair from the B2_APPLICATION_KEY_ID
// and B2_APPLICATION_KEY environment variables.
func CredentialsFromEnv() (Credentials, error) {
	creds := Credentials{
		KeyID:          os.Getenv("B2_APPLICATION_KEY_ID"),
		ApplicationKey: os.Getenv("B2_APPLICATION_KEY"),
	}
	if creds.KeyID == "" || creds.ApplicationKey == "" {
		return Credentials{}, errors.New("b2: B2_APPLICATION_KEY_ID and B2_APPLICATION_KEY must be set")
	}
	return creds, nil
}

// basic renders the pair as a Basic Authorization header value.
func (c Credentials) basic() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.KeyID+":"+c.ApplicationKey))
}

// Authorization is the account session returned by AuthorizeAccount.
// The client keeps the most recent one and replaces it wholesale on
// every successful authorization.
type Authorization struct {
	AccountID          string  `json:"accountId"`
	AuthorizationToken string  `json:"authorizationToken"`
	APIInfo            APIInfo `json:"apiInfo"`

	// ApplicationKeyExpirationTimestamp is unix milliseconds, nil when
	// the key never expires.
	ApplicationKeyExpirationTimestamp *int64 `json:"applicationKeyExpirationTimestamp"`
}

// APIInfo groups the per-service endpoints granted to the key.
type APIInfo struct {
	StorageAPI StorageAPI `json:"storageApi"`
}

// StorageAPI describes the storage endpoints and limits for the
// authorized key. BucketID and BucketName are empty unless the key is
// restricted to a single bucket.
type StorageAPI struct {
	APIURL                  string   `json:"apiUrl"`
	DownloadURL             string   `json:"downloadUrl"`
	S3APIURL                string   `json:"s3ApiUrl"`
	BucketID                string   `json:"bucketId"`
	BucketName              string   `json:"bucketName"`
	Capabilities            []string `json:"capabilities"`
	NamePrefix              string   `json:"namePrefix"`
	AbsoluteMinimumPartSize int64    `json:"absoluteMinimumPartSize"`
	RecommendedPartSize     int64    `json:"recommendedPartSize"`
}

// UploadURL is a short-lived upload grant for a single bucket. The
// client never caches grants; hold on to one and pass it through
// UploadFileOptions to reuse it across uploads.
type UploadURL struct {
	BucketID           string `json:"bucketId"`
	UploadURL          string `json:"uploadUrl"`
	AuthorizationToken string `json:"authorizationToken"`
}

// UploadedFile describes the stored object as reported by B2 after an
// upload.
type UploadedFile struct {
	AccountID            string                `json:"accountId"`
	Action               string                `json:"action"`
	BucketID             string                `json:"bucketId"`
	ContentLength        int64                 `json:"contentLength"`
	ContentMD5           string                `json:"contentMd5"`
	ContentSha1          string                `json:"contentSha1"`
	ContentType          string                `json:"contentType"`
	FileID               string                `json:"fileId"`
	FileInfo             map[string]string     `json:"fileInfo"`
	FileName             string                `json:"fileName"`
	FileRetention        *FileRetention        `json:"fileRetention"`
	LegalHold            *LegalHold            `json:"legalHold"`
	ServerSideEncryption *ServerSideEncryption `json:"serverSideEncryption"`
	UploadTimestamp      int64                 `json:"uploadTimestamp"`
}

// Uploaded returns the server-side upload time.
func (f *UploadedFile) Uploaded() time.Time {
	return time.Unix(f.UploadTimestamp/1000, (f.UploadTimestamp%1000)*1000000)
}

// FileRetention is the object-lock retention placeholder on an
// uploaded file. Value is nil when no retention is configured.
type FileRetention struct {
	IsClientAuthorizedToRead bool            `json:"isClientAuthorizedToRead"`
	Value                    *RetentionValue `json:"value"`
}

// RetentionValue is the retention mode and deadline pair.
type RetentionValue struct {
	Mode                 *string `json:"mode"`
	RetainUntilTimestamp *int64  `json:"retainUntilTimestamp"`
}

// LegalHold is the legal-hold placeholder on an uploaded file. Value
// is nil when no hold is set.
type LegalHold struct {
	IsClientAuthorizedToRead bool    `json:"isClientAuthorizedToRead"`
	Value                    *string `json:"value"`
}

// ServerSideEncryption reports how B2 encrypted the stored object.
type ServerSideEncryption struct {
	Algorithm *string `json:"algorithm"`
	Mode      *string `json:"mode"`
}
