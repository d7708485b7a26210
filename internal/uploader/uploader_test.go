package uploader

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/NeKzor/b2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient counts upload attempts per file name and can fail the
// first attempts with queued errors. Safe for concurrent workers.
type fakeClient struct {
	mu       sync.Mutex
	attempts map[string]int
	contents map[string][]byte
	failures map[string][]error
	inFlight int
	peak     int
	delay    time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		attempts: make(map[string]int),
		contents: make(map[string][]byte),
		failures: make(map[string][]error),
	}
}

func (f *fakeClient) AuthorizeAccount(b2.Credentials) (*b2.Authorization, error) {
	return nil, nil
}

func (f *fakeClient) Authorization() *b2.Authorization { return nil }

func (f *fakeClient) GetUploadURL(bucketID string) (*b2.UploadURL, error) {
	return &b2.UploadURL{BucketID: bucketID}, nil
}

func (f *fakeClient) UploadFile(bucketID, fileName string, contents []byte, opts *b2.UploadFileOptions) (*b2.UploadedFile, error) {
	f.mu.Lock()
	f.attempts[fileName]++
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	var err error
	if queued := f.failures[fileName]; len(queued) > 0 {
		err, f.failures[fileName] = queued[0], queued[1:]
	}
	delay := f.delay
	f.mu.Unlock()

	time.Sleep(delay)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.contents[fileName] = contents
	f.mu.Unlock()

	return &b2.UploadedFile{
		Action:   "upload",
		BucketID: bucketID,
		FileName: fileName,
		FileID:   "file-" + fileName,
	}, nil
}

func (f *fakeClient) DownloadURL(fileName string) (string, error) {
	return "https://f003.backblazeb2.com/file/pool-bucket/" + fileName, nil
}

func (f *fakeClient) attemptCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[name]
}

func (f *fakeClient) totalAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.attempts {
		total += n
	}
	return total
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func writeTestFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestUploadAllUploadsEveryJobInOrder(t *testing.T) {
	dir := t.TempDir()
	client := newFakeClient()
	pool := New(client, quietLogger(), 3)

	jobs := []Job{
		{Path: writeTestFile(t, dir, "one.txt", "first")},
		{Path: writeTestFile(t, dir, "two.txt", "second")},
		{Path: writeTestFile(t, dir, "three.txt", "third"), Name: "nested/three.txt"},
	}

	results := pool.UploadAll(context.Background(), "pool-bucket", jobs)

	require.Len(t, results, len(jobs))
	for i, res := range results {
		assert.Equal(t, jobs[i].Path, res.Job.Path, "results must keep input order")
		require.NoError(t, res.Err)
	}

	assert.Equal(t, "one.txt", results[0].File.FileName)
	assert.Equal(t, "nested/three.txt", results[2].File.FileName, "explicit name overrides base name")
	assert.Equal(t, []byte("second"), client.contents["two.txt"])
	assert.Equal(t, "https://f003.backblazeb2.com/file/pool-bucket/one.txt", results[0].DownloadURL)
}

func TestUploadAllBoundsParallelism(t *testing.T) {
	dir := t.TempDir()
	client := newFakeClient()
	client.delay = 20 * time.Millisecond
	pool := New(client, quietLogger(), 2)

	jobs := make([]Job, 8)
	for i := range jobs {
		name := fmt.Sprintf("file-%d.txt", i)
		jobs[i] = Job{Path: writeTestFile(t, dir, name, "x")}
	}

	results := pool.UploadAll(context.Background(), "pool-bucket", jobs)

	for _, res := range results {
		require.NoError(t, res.Err)
	}
	client.mu.Lock()
	peak := client.peak
	client.mu.Unlock()
	assert.LessOrEqual(t, peak, 2, "no more than two uploads may run at once")
}

func TestUploadAllKeepsGoingPastAFailedRead(t *testing.T) {
	dir := t.TempDir()
	client := newFakeClient()
	pool := New(client, quietLogger(), 1)

	jobs := []Job{
		{Path: filepath.Join(dir, "missing.txt")},
		{Path: writeTestFile(t, dir, "present.txt", "data")},
	}

	results := pool.UploadAll(context.Background(), "pool-bucket", jobs)

	require.Error(t, results[0].Err)
	assert.ErrorIs(t, results[0].Err, os.ErrNotExist)
	require.NoError(t, results[1].Err)
	assert.Equal(t, 0, client.attemptCount("missing.txt"), "unreadable files must not reach B2")
}

func TestUploadAllRetriesTransientErrors(t *testing.T) {
	dir := t.TempDir()
	client := newFakeClient()
	client.failures["flaky.txt"] = []error{
		&b2.APIError{Op: "b2_upload_file", Status: http.StatusServiceUnavailable, Code: "service_unavailable"},
	}
	pool := New(client, quietLogger(), 1)

	jobs := []Job{{Path: writeTestFile(t, dir, "flaky.txt", "payload")}}
	results := pool.UploadAll(context.Background(), "pool-bucket", jobs)

	require.NoError(t, results[0].Err)
	assert.Equal(t, 2, client.attemptCount("flaky.txt"))
}

func TestUploadAllDoesNotRetryPermanentErrors(t *testing.T) {
	dir := t.TempDir()
	client := newFakeClient()
	apiErr := &b2.APIError{Op: "b2_upload_file", Status: http.StatusBadRequest, Code: "bad_request"}
	client.failures["bad.txt"] = []error{apiErr}
	pool := New(client, quietLogger(), 1)

	jobs := []Job{{Path: writeTestFile(t, dir, "bad.txt", "payload")}}
	results := pool.UploadAll(context.Background(), "pool-bucket", jobs)

	require.Error(t, results[0].Err)
	assert.ErrorIs(t, results[0].Err, apiErr)
	assert.Equal(t, 1, client.attemptCount("bad.txt"))
}

func TestUploadAllHonorsCanceledContext(t *testing.T) {
	dir := t.TempDir()
	client := newFakeClient()
	pool := New(client, quietLogger(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{
		{Path: writeTestFile(t, dir, "a.txt", "a")},
		{Path: writeTestFile(t, dir, "b.txt", "b")},
		{Path: writeTestFile(t, dir, "c.txt", "c")},
	}

	results := pool.UploadAll(ctx, "pool-bucket", jobs)

	for _, res := range results {
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
	assert.Equal(t, 0, client.totalAttempts(), "canceled batches must not reach B2")
}
