// Package metrics collects transfer counters for S3 operations and renders
// them as a JSON or human-readable report.
package metrics

import (
	"fmt"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// Metrics collects counters for one run of uploads or downloads.
// It uses atomic operations for thread-safe counter updates.
type Metrics struct {
	filesUploaded   int64 // Objects written to S3
	filesDownloaded int64 // Objects read from S3
	bytes           int64 // Payload bytes moved in either direction
	errors          int64 // Failed transfers
	startTime       time.Time
}

// NewMetrics creates a new Metrics instance with initialized counters
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// RecordUpload counts one uploaded object of n bytes.
func (m *Metrics) RecordUpload(n int64) {
	atomic.AddInt64(&m.filesUploaded, 1)
	atomic.AddInt64(&m.bytes, n)
}

// RecordDownload counts one downloaded object of n bytes.
func (m *Metrics) RecordDownload(n int64) {
	atomic.AddInt64(&m.filesDownloaded, 1)
	atomic.AddInt64(&m.bytes, n)
}

// RecordError increments the errors counter
func (m *Metrics) RecordError() {
	atomic.AddInt64(&m.errors, 1)
}

// Report is a snapshot of the counters.
type Report struct {
	StartTime       time.Time     `json:"startTime"`
	EndTime         time.Time     `json:"endTime"`
	FilesUploaded   int64         `json:"filesUploaded"`
	FilesDownloaded int64         `json:"filesDownloaded"`
	Bytes           int64         `json:"bytes"`
	Errors          int64         `json:"errors"`
	Duration        time.Duration `json:"duration"`
	Throughput      float64       `json:"throughput"` // bytes per second
}

// GenerateReport snapshots the counters and computes throughput.
func (m *Metrics) GenerateReport() Report {
	endTime := time.Now()
	duration := endTime.Sub(m.startTime)
	bytes := atomic.LoadInt64(&m.bytes)

	var throughput float64
	if duration > 0 {
		throughput = float64(bytes) / duration.Seconds()
	}

	return Report{
		StartTime:       m.startTime,
		EndTime:         endTime,
		FilesUploaded:   atomic.LoadInt64(&m.filesUploaded),
		FilesDownloaded: atomic.LoadInt64(&m.filesDownloaded),
		Bytes:           bytes,
		Errors:          atomic.LoadInt64(&m.errors),
		Duration:        duration,
		Throughput:      throughput,
	}
}

// MarshalJSON implements json.Marshaler, rendering Duration as a string.
func (r Report) MarshalJSON() ([]byte, error) {
	type Alias Report
	return json.Marshal(&struct {
		Alias
		Duration string `json:"duration"`
	}{
		Alias:    Alias(r),
		Duration: r.Duration.String(),
	})
}

// String returns a human-readable string representation of the report
func (r Report) String() string {
	return fmt.Sprintf(
		"Transfer completed in %s\n"+
			"Uploaded: %d files\n"+
			"Downloaded: %d files\n"+
			"Bytes: %d\n"+
			"Errors: %d\n"+
			"Throughput: %.2f bytes/sec",
		r.Duration,
		r.FilesUploaded,
		r.FilesDownloaded,
		r.Bytes,
		r.Errors,
		r.Throughput,
	)
}
