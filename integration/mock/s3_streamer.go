package mock

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
)

// Stream implements s3streamer.Streamer over the in-memory objects so line
// readers can be tested without ranged GETs. offset counts lines to skip.
func (m *S3Client) Stream(ctx context.Context, bucket, key string, offset int64, fn func([]byte, int64) error) error {
	content, ok := m.File(bucket, key)
	if !ok {
		return fmt.Errorf("mock S3: key not found: %s", bucketKey(bucket, key))
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var line int64
	for scanner.Scan() {
		if line >= offset {
			if err := fn(scanner.Bytes(), line); err != nil {
				return err
			}
		}
		line++

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error scanning lines: %w", err)
	}
	return nil
}
