// Package s3compat builds minio clients against the S3-compatible
// endpoint B2 grants alongside its native API. B2 accepts the same
// application key pair as S3 access and secret keys, so an authorized
// account session carries everything needed to construct one.
//
// The package only constructs clients. Operations on them are plain
// minio calls; wrapping those would grow the general object-storage
// abstraction this module deliberately avoids.
package s3compat

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/NeKzor/b2"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewClient returns a minio client for the S3-compatible endpoint in
// auth. creds must be the key pair that produced auth. Keys created
// before B2 offered S3 access have no S3 endpoint and are rejected.
func NewClient(auth *b2.Authorization, creds b2.Credentials) (*minio.Client, error) {
	if auth == nil {
		return nil, &b2.AuthorizationError{Op: "s3_endpoint"}
	}

	endpoint, secure, err := splitEndpoint(auth.APIInfo.StorageAPI.S3APIURL)
	if err != nil {
		return nil, err
	}

	return minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(creds.KeyID, creds.ApplicationKey, ""),
		Secure:       secure,
		Region:       Region(endpoint),
		BucketLookup: minio.BucketLookupPath,
	})
}

// Region extracts the B2 region from an S3 endpoint host, e.g.
// "s3.us-west-004.backblazeb2.com" yields "us-west-004". Hosts that do
// not follow that shape yield an empty region, which leaves region
// resolution to the transport.
func Region(endpoint string) string {
	labels := strings.Split(endpoint, ".")
	if len(labels) >= 3 && labels[0] == "s3" {
		return labels[1]
	}
	return ""
}

// splitEndpoint reduces the granted S3 URL to the host[:port] form
// minio expects, reporting whether the scheme was https.
func splitEndpoint(s3URL string) (endpoint string, secure bool, err error) {
	if s3URL == "" {
		return "", false, fmt.Errorf("s3compat: account has no S3-compatible endpoint")
	}
	u, err := url.Parse(s3URL)
	if err != nil {
		return "", false, fmt.Errorf("s3compat: parsing endpoint %q: %w", s3URL, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("s3compat: endpoint %q has no host", s3URL)
	}
	return u.Host, u.Scheme == "https", nil
}
