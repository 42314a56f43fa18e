package metrics

import (
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestMetricsHappyPath(t *testing.T) {
	m := NewMetrics()

	m.RecordUpload(100)
	m.RecordUpload(50)
	m.RecordDownload(10)
	m.RecordError()

	time.Sleep(10 * time.Millisecond)

	report := m.GenerateReport()

	if report.FilesUploaded != 2 {
		t.Errorf("expected 2 files uploaded, got %d", report.FilesUploaded)
	}
	if report.FilesDownloaded != 1 {
		t.Errorf("expected 1 file downloaded, got %d", report.FilesDownloaded)
	}
	if report.Bytes != 160 {
		t.Errorf("expected 160 bytes, got %d", report.Bytes)
	}
	if report.Errors != 1 {
		t.Errorf("expected 1 error, got %d", report.Errors)
	}
	if report.Duration < 10*time.Millisecond {
		t.Errorf("expected duration >= 10ms, got %v", report.Duration)
	}
	if report.Throughput <= 0 {
		t.Errorf("expected positive throughput, got %f", report.Throughput)
	}

	if !strings.Contains(report.String(), "Uploaded: 2 files") {
		t.Errorf("unexpected string form: %s", report.String())
	}
}

func TestReportJSON(t *testing.T) {
	r := Report{FilesUploaded: 3, Duration: 1500 * time.Millisecond}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["duration"] != "1.5s" {
		t.Errorf("expected duration string, got %v", decoded["duration"])
	}
	if decoded["filesUploaded"] != float64(3) {
		t.Errorf("expected filesUploaded 3, got %v", decoded["filesUploaded"])
	}
}
