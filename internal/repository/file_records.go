package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hook-system/hook/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const fileRecordsCollection = "plagiarism_file_records"

type FileRecordsRepository struct {
	mongoRepo *MongoRepository
}

func NewFileRecordsRepository(mongoRepo *MongoRepository) *FileRecordsRepository {
	return &FileRecordsRepository{
		mongoRepo: mongoRepo,
	}
}

func (r *FileRecordsRepository) InsertFileRecords(ctx context.Context, records []*models.FileRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now()
	docs := make([]interface{}, 0, len(records))
	for _, rec := range records {
		rec.CreatedAt = now
		docs = append(docs, rec)
	}

	if err := r.mongoRepo.InsertMany(ctx, fileRecordsCollection, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to insert file records: %w", err)
	}

	return nil
}

func (r *FileRecordsRepository) GetFileRecordsByJobID(ctx context.Context, jobID string) ([]*models.FileRecord, error) {
	filter := bson.M{"jobId": jobID}
	opts := options.Find().SetSort(bson.D{{Key: "path", Value: 1}})

	cursor, err := r.mongoRepo.FindMany(ctx, fileRecordsCollection, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find file records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*models.FileRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode file records: %w", err)
	}

	return records, nil
}

func (r *FileRecordsRepository) CountFileRecordsByJobID(ctx context.Context, jobID string) (int64, error) {
	count, err := r.mongoRepo.CountDocuments(ctx, fileRecordsCollection, bson.M{"jobId": jobID})
	if err != nil {
		return 0, fmt.Errorf("failed to count file records: %w", err)
	}

	return count, nil
}
