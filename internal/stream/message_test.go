package stream

import (
	"testing"

	"github.com/hook-system/hook/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobRequest(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]string
		want    *models.JobRequest
		wantErr string
	}{
		{
			name:   "all fields",
			fields: map[string]string{"archivePath": "/data/in/hw1.tar.gz", "fileCount": "42", "notifyAddress": " prof@example.com "},
			want:   &models.JobRequest{ArchivePath: "/data/in/hw1.tar.gz", FileCount: 42, NotifyAddress: "prof@example.com"},
		},
		{
			name:   "file count optional",
			fields: map[string]string{"archivePath": "/data/in/hw2.tar.gz"},
			want:   &models.JobRequest{ArchivePath: "/data/in/hw2.tar.gz"},
		},
		{
			name:    "missing path",
			fields:  map[string]string{"fileCount": "3"},
			wantErr: "archivePath is required",
		},
		{
			name:    "bad count",
			fields:  map[string]string{"archivePath": "a.tar", "fileCount": "many"},
			wantErr: "invalid fileCount",
		},
		{
			name:    "negative count",
			fields:  map[string]string{"archivePath": "a.tar", "fileCount": "-1"},
			wantErr: "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJobRequest(&StreamMessage{ID: "1-0", Fields: tt.fields})
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeFieldsKeepsStringValues(t *testing.T) {
	got := decodeFields(map[string]interface{}{
		"archivePath": "/data/in/hw1.tar.gz",
		"fileCount":   []byte("3"),
		"ignored":     42,
	})

	assert.Equal(t, map[string]string{"archivePath": "/data/in/hw1.tar.gz", "fileCount": "3"}, got)
}
