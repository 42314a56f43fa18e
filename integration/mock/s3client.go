// Package mock provides in-memory fakes of the AWS clients declared in the
// aws package, for tests that exercise uploads, listings, secrets and
// permission checks without network access.
package mock

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Client is a mock implementation of aws.S3Client interface for testing
type S3Client struct {
	mu sync.Mutex

	// Maps bucket/key to object content
	Files map[string][]byte
	// Maps bucket/key to metadata
	Metadata map[string]map[string]string

	// PutErrors fails PutObject for the given bucket/key with the stored error.
	PutErrors map[string]error
	// Puts records every successful PutObject as bucket/key, in call order.
	Puts []string
	// PageSize caps ListObjectsV2 pages; zero means 1000.
	PageSize int
}

// NewS3Client creates a new mock S3 client
func NewS3Client() *S3Client {
	return &S3Client{
		Files:     make(map[string][]byte),
		Metadata:  make(map[string]map[string]string),
		PutErrors: make(map[string]error),
	}
}

// AddFile stores content under bucket/key.
func (m *S3Client) AddFile(bucket, key string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files[bucketKey(bucket, key)] = content
}

// File returns the content stored under bucket/key.
func (m *S3Client) File(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.Files[bucketKey(bucket, key)]
	return content, ok
}

// PutCount returns the number of successful PutObject calls.
func (m *S3Client) PutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Puts)
}

// GetObject implements the S3Client interface for reading objects.
// A "bytes=start-end" Range is honoured.
func (m *S3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bk := bucketKey(aws.ToString(params.Bucket), aws.ToString(params.Key))
	content, ok := m.Files[bk]
	if !ok {
		return nil, &types.NoSuchKey{
			Message: aws.String(fmt.Sprintf("The specified key does not exist: %s", aws.ToString(params.Key))),
		}
	}

	if params.Range != nil {
		start, end, err := parseRange(*params.Range, int64(len(content)))
		if err != nil {
			return nil, err
		}
		content = content[start : end+1]
	}

	contentLength := int64(len(content))
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(content)),
		Metadata:      m.Metadata[bk],
		ETag:          etag(m.Files[bk]),
		ContentLength: &contentLength,
	}, nil
}

// PutObject implements the S3Client interface for writing objects
func (m *S3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	bk := bucketKey(aws.ToString(params.Bucket), aws.ToString(params.Key))

	m.mu.Lock()
	failure := m.PutErrors[bk]
	m.mu.Unlock()
	if failure != nil {
		return nil, failure
	}

	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files[bk] = data
	if params.Metadata != nil {
		m.Metadata[bk] = params.Metadata
	} else {
		m.Metadata[bk] = make(map[string]string)
	}
	m.Puts = append(m.Puts, bk)

	return &s3.PutObjectOutput{ETag: etag(data)}, nil
}

// HeadObject implements the S3Client interface for retrieving object metadata
func (m *S3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bk := bucketKey(aws.ToString(params.Bucket), aws.ToString(params.Key))
	content, ok := m.Files[bk]
	if !ok {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}

	contentLength := int64(len(content))
	return &s3.HeadObjectOutput{
		ETag:          etag(content),
		Metadata:      m.Metadata[bk],
		ContentLength: &contentLength,
	}, nil
}

// ListObjectsV2 implements the S3Client interface. Keys are returned in
// lexical order; the continuation token is the last key of the previous page.
func (m *S3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := aws.ToString(params.Bucket)
	prefix := aws.ToString(params.Prefix)
	after := aws.ToString(params.ContinuationToken)

	var keys []string
	for bk := range m.Files {
		b, key, _ := strings.Cut(bk, "/")
		if b != bucket || !strings.HasPrefix(key, prefix) {
			continue
		}
		if after != "" && key <= after {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pageSize := m.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	if params.MaxKeys != nil && int(*params.MaxKeys) < pageSize {
		pageSize = int(*params.MaxKeys)
	}

	out := &s3.ListObjectsV2Output{
		Name:   params.Bucket,
		Prefix: params.Prefix,
	}
	if len(keys) > pageSize {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[pageSize-1])
		keys = keys[:pageSize]
	} else {
		out.IsTruncated = aws.Bool(false)
	}

	for _, key := range keys {
		size := int64(len(m.Files[bucketKey(bucket, key)]))
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(size),
			ETag: etag(m.Files[bucketKey(bucket, key)]),
		})
	}
	out.KeyCount = aws.Int32(int32(len(out.Contents)))
	return out, nil
}

// CreateMultipartUpload is a stub implementation for the s3streamer.S3Client interface
func (m *S3Client) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, fmt.Errorf("CreateMultipartUpload not implemented in mock")
}

// UploadPart is a stub implementation for the s3streamer.S3Client interface
func (m *S3Client) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, fmt.Errorf("UploadPart not implemented in mock")
}

// CompleteMultipartUpload is a stub implementation for the s3streamer.S3Client interface
func (m *S3Client) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, fmt.Errorf("CompleteMultipartUpload not implemented in mock")
}

// AbortMultipartUpload is a stub implementation for the s3streamer.S3Client interface
func (m *S3Client) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, fmt.Errorf("AbortMultipartUpload not implemented in mock")
}

func bucketKey(bucket, key string) string {
	return bucket + "/" + key
}

func etag(content []byte) *string {
	return aws.String(fmt.Sprintf("\"%x\"", md5.Sum(content)))
}

// parseRange parses "bytes=start-end" (end optional) against size.
func parseRange(header string, size int64) (int64, int64, error) {
	rng, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("mock S3: unsupported range %q", header)
	}
	startStr, endStr, _ := strings.Cut(rng, "-")
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("mock S3: invalid range %q", header)
	}
	end := size - 1
	if endStr != "" {
		if end, err = strconv.ParseInt(endStr, 10, 64); err != nil {
			return 0, 0, fmt.Errorf("mock S3: invalid range %q", header)
		}
	}
	if end >= size {
		end = size - 1
	}
	if start > end {
		return 0, 0, fmt.Errorf("mock S3: unsatisfiable range %q", header)
	}
	return start, end, nil
}
