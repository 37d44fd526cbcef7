package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hook-system/hook/internal/models"
)

// DiskReportStore writes each report to <dir>/<jobId>.json
type DiskReportStore struct {
	dir string
}

func NewDiskReportStore(dir string) (*DiskReportStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &DiskReportStore{dir: dir}, nil
}

func (s *DiskReportStore) path(jobID string) string {
	return filepath.Join(s.dir, filepath.Base(jobID)+".json")
}

// SaveReport writes the report through a temporary file and rename so
// readers never see a partial document.
func (s *DiskReportStore) SaveReport(_ context.Context, report *models.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".report-*.json")
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write report file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(report.JobID)); err != nil {
		return fmt.Errorf("failed to store report file: %w", err)
	}
	return nil
}

// GetReportByJobID returns nil, nil when no report file exists
func (s *DiskReportStore) GetReportByJobID(_ context.Context, jobID string) (*models.Report, error) {
	data, err := os.ReadFile(s.path(jobID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report models.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report file: %w", err)
	}
	return &report, nil
}
