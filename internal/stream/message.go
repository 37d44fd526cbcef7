package stream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hook-system/hook/internal/models"
)

// StreamMessage is a stream entry with its string fields
type StreamMessage struct {
	ID     string
	Fields map[string]string
}

// ParseJobRequest reads archivePath, fileCount and notifyAddress from a
// message. fileCount is optional and defaults to 0.
func ParseJobRequest(msg *StreamMessage) (*models.JobRequest, error) {
	path := strings.TrimSpace(msg.Fields["archivePath"])
	if path == "" {
		return nil, fmt.Errorf("message %s: archivePath is required", msg.ID)
	}

	req := &models.JobRequest{
		ArchivePath:   path,
		NotifyAddress: strings.TrimSpace(msg.Fields["notifyAddress"]),
	}

	if raw := strings.TrimSpace(msg.Fields["fileCount"]); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("message %s: invalid fileCount %q: %w", msg.ID, raw, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("message %s: fileCount must not be negative", msg.ID)
		}
		req.FileCount = n
	}

	return req, nil
}
