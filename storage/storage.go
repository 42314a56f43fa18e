// Package storage moves files between the local filesystem and S3. Uploads
// validate the pairing of destinations and local files before any network
// call; listings are lazy sequences over paginated ListObjectsV2 responses.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gurre/dskit/aws"
	"github.com/gurre/dskit/logging"
	"github.com/gurre/dskit/metrics"
	"github.com/gurre/s3streamer"
)

// ErrInvalidInput is returned when upload arguments are malformed: mismatched
// destination and file counts, empty sequences, or local paths that are not
// readable files. It signals a caller error and is never retried.
var ErrInvalidInput = errors.New("invalid input")

// Client wraps an S3 client with upload validation, listing and streaming helpers.
type Client struct {
	s3       aws.S3Client
	streamer s3streamer.Streamer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records every transfer into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger used for transfer events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithStreamer replaces the line streamer used by ReadLines.
func WithStreamer(s s3streamer.Streamer) Option {
	return func(c *Client) { c.streamer = s }
}

// New creates a Client around client.
func New(client aws.S3Client, opts ...Option) *Client {
	c := &Client{s3: client}
	for _, opt := range opts {
		opt(c)
	}
	if c.streamer == nil {
		c.streamer = s3streamer.NewS3Streamer(client)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewMetrics()
	}
	c.logger = logging.OrDiscard(c.logger)
	return c
}

// Metrics returns the counters the client records into.
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// Transfer pairs one local file with the object key it is uploaded to.
type Transfer struct {
	Local string
	Key   string
}

// Plan validates an upload request and returns one Transfer per pair.
//
// Rules, in order:
//  1. two sequences must have equal lengths;
//  2. a single value broadcasts across the other side's sequence;
//  3. every local path must be an existing, readable regular file.
//
// Every failure wraps ErrInvalidInput.
func Plan(dest, local OneOrMany[string]) ([]Transfer, error) {
	if dest.IsMany() && local.IsMany() && dest.Len() != local.Len() {
		return nil, fmt.Errorf("%w: %d destination paths for %d local files", ErrInvalidInput, dest.Len(), local.Len())
	}

	n := max(dest.Len(), local.Len())
	if n == 0 || dest.Len() == 0 || local.Len() == 0 {
		return nil, fmt.Errorf("%w: no files to upload", ErrInvalidInput)
	}

	transfers := make([]Transfer, 0, n)
	for i := 0; i < n; i++ {
		path := local.At(i)
		transfers = append(transfers, Transfer{
			Local: path,
			Key:   ObjectKey(dest.At(i), path),
		})
	}

	for _, t := range transfers {
		if err := checkReadable(t.Local); err != nil {
			return nil, err
		}
	}

	return transfers, nil
}

// ObjectKey resolves the object key for a local file. A destination ending in
// "/" is a folder and receives the file's base name; any other destination is
// used as the full key.
func ObjectKey(dest, local string) string {
	dest = strings.TrimLeft(dest, "/")
	if dest == "" || strings.HasSuffix(dest, "/") {
		return dest + filepath.Base(local)
	}
	return dest
}

func checkReadable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: local path %s: %v", ErrInvalidInput, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: local path %s is not a regular file", ErrInvalidInput, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: local path %s is not readable: %v", ErrInvalidInput, path, err)
	}
	_ = f.Close()
	return nil
}

// Upload validates the request with Plan and then uploads each file to its
// destination in bucket, one at a time. It returns true only if every
// transfer succeeded. Nothing is sent when validation fails; the first
// transfer error stops the upload and is returned.
//
// Example:
//
//	ok, err := client.Upload(ctx, "data-scientist-share",
//	    storage.Many("data/test/", "data/test1/"),
//	    storage.Many("abc2.txt", "sales_events.csv"))
func (c *Client) Upload(ctx context.Context, bucket string, dest, local OneOrMany[string]) (bool, error) {
	if bucket == "" {
		return false, fmt.Errorf("%w: bucket is required", ErrInvalidInput)
	}

	transfers, err := Plan(dest, local)
	if err != nil {
		return false, err
	}

	for _, t := range transfers {
		if err := c.put(ctx, bucket, t); err != nil {
			c.metrics.RecordError()
			c.logger.Error("upload failed", "bucket", bucket, "key", t.Key, "local", t.Local, "error", err)
			return false, err
		}
	}

	return true, nil
}

func (c *Client) put(ctx context.Context, bucket string, t Transfer) error {
	f, err := os.Open(t.Local)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", t.Local, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", t.Local, err)
	}
	size := info.Size()

	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &t.Key,
		Body:          f,
		ContentLength: &size,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to s3://%s/%s: %w", t.Local, bucket, t.Key, err)
	}

	c.metrics.RecordUpload(size)
	c.logger.Debug("uploaded", "bucket", bucket, "key", t.Key, "bytes", size)
	return nil
}

// Filter narrows a listing. Prefix is applied by S3; Suffix is applied locally.
type Filter struct {
	Prefix string
	Suffix string
}

// ListObjects lazily lists the objects in bucket that match filter. Pages are
// requested only as the sequence is consumed. A listing error is yielded once
// and ends the sequence.
//
// Example:
//
//	for obj, err := range client.ListObjects(ctx, "data-scientist-share", storage.Filter{Prefix: "nordypy"}) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(*obj.Key)
//	}
func (c *Client) ListObjects(ctx context.Context, bucket string, filter Filter) iter.Seq2[types.Object, error] {
	return func(yield func(types.Object, error) bool) {
		input := &s3.ListObjectsV2Input{Bucket: &bucket}
		if filter.Prefix != "" {
			input.Prefix = &filter.Prefix
		}

		paginator := s3.NewListObjectsV2Paginator(c.s3, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(types.Object{}, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, filter.Prefix, err))
				return
			}
			for _, obj := range page.Contents {
				if filter.Suffix != "" && !strings.HasSuffix(deref(obj.Key), filter.Suffix) {
					continue
				}
				if !yield(obj, nil) {
					return
				}
			}
		}
	}
}

// ListKeys is ListObjects reduced to object keys.
func (c *Client) ListKeys(ctx context.Context, bucket string, filter Filter) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for obj, err := range c.ListObjects(ctx, bucket, filter) {
			if !yield(deref(obj.Key), err) || err != nil {
				return
			}
		}
	}
}

// Download writes the object bucket/key to localPath, creating parent
// directories as needed.
func (c *Client) Download(ctx context.Context, bucket, key, localPath string) error {
	resp, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		c.metrics.RecordError()
		return fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if dir := filepath.Dir(localPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}

	n, err := io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		c.metrics.RecordError()
		return fmt.Errorf("failed to write %s: %w", localPath, err)
	}

	c.metrics.RecordDownload(n)
	c.logger.Debug("downloaded", "bucket", bucket, "key", key, "bytes", n)
	return nil
}

// ReadLines streams the object bucket/key and calls fn for every line. The
// slice passed to fn is only valid for the duration of the call.
func (c *Client) ReadLines(ctx context.Context, bucket, key string, fn func(line []byte) error) error {
	err := c.streamer.Stream(ctx, bucket, key, 0, func(line []byte, _ int64) error {
		return fn(line)
	})
	if err != nil {
		return fmt.Errorf("failed to stream s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// ReadText returns the object bucket/key as text with lines joined by "\n".
func (c *Client) ReadText(ctx context.Context, bucket, key string) (string, error) {
	var b strings.Builder
	err := c.ReadLines(ctx, bucket, key, func(line []byte) error {
		b.Write(line)
		b.WriteByte('\n')
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// ParseURI splits "s3://bucket/key" into bucket and key.
func ParseURI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URI: %w", err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("invalid S3 URI scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("invalid S3 URI: missing bucket")
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// IsURI reports whether s looks like an S3 URI.
func IsURI(s string) bool {
	return strings.HasPrefix(s, "s3://")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
