package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hook-system/hook/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
)

const reportsCollection = "plagiarism_reports"

type ReportsRepository struct {
	mongoRepo *MongoRepository
}

func NewReportsRepository(mongoRepo *MongoRepository) *ReportsRepository {
	return &ReportsRepository{
		mongoRepo: mongoRepo,
	}
}

// SaveReport stores the report, replacing an earlier one for the same job
func (r *ReportsRepository) SaveReport(ctx context.Context, report *models.Report) error {
	err := r.mongoRepo.Upsert(ctx, reportsCollection, bson.M{"jobId": report.JobID}, report)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

// GetReportByJobID returns nil, nil when the job has no report
func (r *ReportsRepository) GetReportByJobID(ctx context.Context, jobID string) (*models.Report, error) {
	var report models.Report
	err := r.mongoRepo.FindOne(ctx, reportsCollection, bson.M{"jobId": jobID}).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find report: %w", err)
	}

	return &report, nil
}

// ReportReader loads a finished report; nil, nil means not found
type ReportReader interface {
	GetReportByJobID(ctx context.Context, jobID string) (*models.Report, error)
}

// FallbackReports asks each reader in turn and returns the first report
// found. A reader that fails is skipped; its error is returned only when no
// later reader has the report.
type FallbackReports struct {
	readers []ReportReader
}

func NewFallbackReports(readers ...ReportReader) *FallbackReports {
	return &FallbackReports{readers: readers}
}

func (f *FallbackReports) GetReportByJobID(ctx context.Context, jobID string) (*models.Report, error) {
	var errs []error
	for _, r := range f.readers {
		report, err := r.GetReportByJobID(ctx, jobID)
		if err != nil {
			log.Warn().Err(err).Str("jobId", jobID).Msg("Report source failed, trying next")
			errs = append(errs, err)
			continue
		}
		if report != nil {
			return report, nil
		}
	}
	return nil, errors.Join(errs...)
}
