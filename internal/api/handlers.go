package api

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hook-system/hook/internal/models"
	"github.com/hook-system/hook/internal/plagiarism"
	"github.com/hook-system/hook/internal/scheduler"
	"github.com/rs/zerolog/log"
)

// JobQueue is the part of the scheduler the API needs
type JobQueue interface {
	Enqueue(archivePath string, fileCount int, notifyAddress string) (bool, time.Time)
	EstimateQueue(jobID string) time.Time
}

// StatusStore reads and writes job steps
type StatusStore interface {
	Set(ctx context.Context, jobID string, step models.Step) error
	Get(ctx context.Context, jobID string) (models.Step, bool, error)
}

// ReportReader loads finished reports
type ReportReader interface {
	GetReportByJobID(ctx context.Context, jobID string) (*models.Report, error)
}

// FileRecordReader loads the per-file diagnostics of a job
type FileRecordReader interface {
	GetFileRecordsByJobID(ctx context.Context, jobID string) ([]*models.FileRecord, error)
	CountFileRecordsByJobID(ctx context.Context, jobID string) (int64, error)
}

// Handler holds dependencies for handlers
type Handler struct {
	queue   JobQueue
	status  StatusStore
	reports ReportReader
	files   FileRecordReader
}

// NewHandler creates a new handler
func NewHandler(queue JobQueue, status StatusStore, reports ReportReader, files FileRecordReader) *Handler {
	return &Handler{
		queue:   queue,
		status:  status,
		reports: reports,
		files:   files,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// Enqueue accepts a submission archive that is already on the shared disk
func (h *Handler) Enqueue(c *gin.Context) {
	var req models.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if _, err := os.Stat(req.ArchivePath); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, fs.ErrNotExist) {
			code = http.StatusBadRequest
		}
		c.JSON(code, models.ErrorResponse{
			Error: "Archive not readable",
			Code:  "ARCHIVE_NOT_FOUND",
		})
		return
	}

	ctx := c.Request.Context()
	jobID := plagiarism.JobID(req.ArchivePath)

	// queued goes in first so it can never overwrite a later step
	if err := h.status.Set(ctx, jobID, models.StepQueued); err != nil {
		log.Warn().Err(err).Str("jobId", jobID).Msg("Failed to update queued status")
	}
	accepted, eta := h.queue.Enqueue(req.ArchivePath, req.FileCount, req.NotifyAddress)

	log.Info().
		Str("jobId", jobID).
		Int("fileCount", req.FileCount).
		Bool("accepted", accepted).
		Time("eta", eta).
		Msg("Job enqueued")

	c.JSON(http.StatusAccepted, models.EnqueueResponse{
		JobID:    jobID,
		Accepted: accepted,
		ETA:      scheduler.FormatETA(eta),
		Step:     models.StepQueued,
	})
}

func (h *Handler) ETA(c *gin.Context) {
	jobID := c.Param("jobId")
	c.JSON(http.StatusOK, gin.H{
		"jobId": jobID,
		"eta":   scheduler.FormatETA(h.queue.EstimateQueue(jobID)),
	})
}

func (h *Handler) Status(c *gin.Context) {
	jobID := c.Param("jobId")

	step, found, err := h.status.Get(c.Request.Context(), jobID)
	if err != nil {
		log.Error().Err(err).Str("jobId", jobID).Msg("Failed to read job status")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to read job status",
			Code:  "INTERNAL_ERROR",
		})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "Unknown job",
			Code:  "JOB_NOT_FOUND",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobId": jobID,
		"step":  step,
	})
}

func (h *Handler) Report(c *gin.Context) {
	jobID := c.Param("jobId")

	report, err := h.reports.GetReportByJobID(c.Request.Context(), jobID)
	if err != nil {
		log.Error().Err(err).Str("jobId", jobID).Msg("Failed to load report")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to load report",
			Code:  "INTERNAL_ERROR",
		})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "No report for job",
			Code:  "REPORT_NOT_FOUND",
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// Files lists the per-file diagnostics stored for a finished job
func (h *Handler) Files(c *gin.Context) {
	jobID := c.Param("jobId")
	ctx := c.Request.Context()

	total, err := h.files.CountFileRecordsByJobID(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Str("jobId", jobID).Msg("Failed to count file records")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to load file records",
			Code:  "INTERNAL_ERROR",
		})
		return
	}
	if total == 0 {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "No file records for job",
			Code:  "FILES_NOT_FOUND",
		})
		return
	}

	records, err := h.files.GetFileRecordsByJobID(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Str("jobId", jobID).Msg("Failed to load file records")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to load file records",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobId": jobID,
		"total": total,
		"files": records,
	})
}
