// Package b2 is a client library for the Backblaze B2 native API.
//
// It covers the small slice of B2 needed to put bytes into a bucket
// and hand out links to them: account authorization, upload grant
// acquisition, single-request file uploads, and by-name download URL
// construction. It is not a kitchen-sink wrapper around every B2
// endpoint, and it deliberately binds to B2's own response shapes
// rather than abstracting over object stores in general.
//
// Calls go through the Client type, which caches the session returned
// by AuthorizeAccount. Construct one with an application key created
// in the B2 console:
//
//	client, err := b2.NewClient("my-app/1.0")
//	if err != nil {
//		log.Fatal(err)
//	}
//	auth, err := client.AuthorizeAccount(b2.Credentials{
//		KeyID:          "your-key-id",
//		ApplicationKey: "your-key",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	file, err := client.UploadFile(auth.APIInfo.StorageAPI.BucketID,
//		"hello.txt", []byte("hello"), nil)
//
// When an authenticated call comes back 401, the client silently
// re-authorizes with the cached credentials and retries the call once.
// That is the only retry it ever performs; see WithAutoRetry to turn
// it off.
//
// A Client may be shared between goroutines once authorized, but
// authorization state is written without locking: two concurrent calls
// that both hit a 401 will each re-authorize, and the last writer
// wins. Both sessions remain valid on the B2 side, so the race is
// harmless but wasteful. Callers that want exactly one
// re-authorization must serialize access themselves.
package b2
