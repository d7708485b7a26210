package b2

// ClientAPI defines the operations the client offers. It mirrors the
// concrete client so consumers can mock it in tests.
type ClientAPI interface {
	AuthorizeAccount(creds Credentials) (*Authorization, error)
	Authorization() *Authorization
	GetUploadURL(bucketID string) (*UploadURL, error)
	UploadFile(bucketID, fileName string, contents []byte, opts *UploadFileOptions) (*UploadedFile, error)
	DownloadURL(fileName string) (string, error)
}
