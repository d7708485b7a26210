// Package uploader runs batches of file uploads over a fixed number of
// workers. It exists for the CLI's bulk upload command; single uploads
// can call the b2 client directly.
package uploader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/NeKzor/b2"
	"github.com/NeKzor/b2/internal/retry"
	"github.com/sirupsen/logrus"
)

// Job describes one file to upload.
type Job struct {
	// Path is the local file whose contents become the upload body.
	Path string

	// Name is the B2 file name. Empty means the base name of Path.
	Name string

	// ContentType and ContentDisposition pass through to the upload
	// headers.
	ContentType        string
	ContentDisposition string
}

// Result pairs a job with its outcome. Exactly one of File or Err is
// set.
type Result struct {
	Job         Job
	File        *b2.UploadedFile
	DownloadURL string
	Err         error
}

// Pool uploads jobs through a shared B2 client with bounded
// parallelism and a per-file retry budget for transient failures.
type Pool struct {
	client  b2.ClientAPI
	logger  *logrus.Logger
	workers int
	retry   retry.Config
}

// New creates a pool that runs at most workers uploads at a time.
func New(client b2.ClientAPI, logger *logrus.Logger, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		client:  client,
		logger:  logger,
		workers: workers,
		retry: retry.Config{
			ShouldRetry: retry.Temporary,
			DelayFunc:   retry.ServerDelay(retry.DefaultBaseDelay),
		},
	}
}

// UploadAll uploads every job into bucketID and returns one result per
// job, in input order. A failed upload lands in its result and does
// not stop the rest of the batch; canceling ctx abandons jobs that
// have not started and marks them with the context's error.
func (p *Pool) UploadAll(ctx context.Context, bucketID string, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	jobCh := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobCh {
				results[idx] = p.upload(ctx, bucketID, jobs[idx])
			}
		}()
	}

	fed := len(jobs)
feed:
	for i := range jobs {
		select {
		case <-ctx.Done():
			fed = i
			break feed
		case jobCh <- i:
		}
	}
	close(jobCh)
	wg.Wait()

	for i := fed; i < len(jobs); i++ {
		results[i] = Result{Job: jobs[i], Err: ctx.Err()}
	}
	return results
}

// upload reads one file and pushes it to B2, retrying transient
// failures on the pool's schedule.
func (p *Pool) upload(ctx context.Context, bucketID string, job Job) Result {
	res := Result{Job: job}

	name := job.Name
	if name == "" {
		name = filepath.Base(job.Path)
	}

	contents, err := os.ReadFile(job.Path)
	if err != nil {
		res.Err = fmt.Errorf("reading %s: %w", job.Path, err)
		return res
	}

	opts := &b2.UploadFileOptions{
		ContentType:        job.ContentType,
		ContentDisposition: job.ContentDisposition,
	}

	err = retry.Do(ctx, p.retry, func(attempt int) error {
		if attempt > 0 {
			p.logger.Warnf("%s: upload attempt %d", name, attempt+1)
		}
		file, err := p.client.UploadFile(bucketID, name, contents, opts)
		if err != nil {
			return err
		}
		res.File = file
		return nil
	})
	if err != nil {
		p.logger.Errorf("%s: upload failed: %v", name, err)
		res.Err = err
		return res
	}

	res.DownloadURL, res.Err = p.client.DownloadURL(res.File.FileName)
	return res
}
