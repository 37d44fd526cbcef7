package plagiarism

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hook-system/hook/internal/archive"
	"github.com/hook-system/hook/internal/metrics"
	"github.com/hook-system/hook/internal/models"
	"github.com/hook-system/hook/internal/notify"
	"github.com/hook-system/hook/internal/preprocess"
	"github.com/hook-system/hook/internal/scheduler"
	"github.com/rs/zerolog/log"
)

// ReportSink persists a finished report
type ReportSink interface {
	SaveReport(ctx context.Context, report *models.Report) error
}

// FileRecordStore persists per-file diagnostics
type FileRecordStore interface {
	InsertFileRecords(ctx context.Context, records []*models.FileRecord) error
}

// StatusTracker records the pipeline step a job is in
type StatusTracker interface {
	Set(ctx context.Context, jobID string, step models.Step) error
}

// Notifier tells the submitter how a job ended
type Notifier interface {
	Notify(ctx context.Context, address, jobID string, outcome notify.Outcome) error
}

// languages are processed in this order; match ids continue across them
var languages = []models.Language{models.LanguageC, models.LanguageJava}

// Processor runs one submission archive through the detection pipeline.
// It implements scheduler.Handler.
type Processor struct {
	winnower *Winnower
	pool     *WorkerPool
	sinks    []ReportSink
	records  FileRecordStore
	status   StatusTracker
	notifier Notifier

	now func() time.Time
}

type ProcessorOption func(*Processor)

func WithFileRecords(store FileRecordStore) ProcessorOption {
	return func(p *Processor) { p.records = store }
}

func WithStatusTracker(status StatusTracker) ProcessorOption {
	return func(p *Processor) { p.status = status }
}

func WithNotifier(n Notifier) ProcessorOption {
	return func(p *Processor) { p.notifier = n }
}

func NewProcessor(wn *Winnower, pool *WorkerPool, sinks []ReportSink, opts ...ProcessorOption) *Processor {
	p := &Processor{
		winnower: wn,
		pool:     pool,
		sinks:    sinks,
		notifier: notify.LogNotifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ scheduler.Handler = (*Processor)(nil)

// JobID derives the job id from an archive path: the file name without its
// archive extension.
func JobID(archivePath string) string {
	name := filepath.Base(archivePath)
	for _, ext := range []string{".tar.gz", ".tgz", ".tar"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Handle processes one queued archive. It returns the number of archive
// members read, which drives the scheduler's per-file estimate. The archive
// is removed whatever the outcome.
func (p *Processor) Handle(ctx context.Context, entry scheduler.QueueEntry) (fileCount int, err error) {
	jobID := JobID(entry.ArchivePath)
	logger := log.With().Str("jobId", jobID).Str("archive", entry.ArchivePath).Logger()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
		if err != nil {
			logger.Error().Err(err).Msg("Job failed")
			p.setStatus(ctx, jobID, models.StepFailed)
			p.notify(ctx, entry.NotifyAddress, jobID, notify.Outcome{Err: err})
		}
		if rmErr := os.Remove(entry.ArchivePath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn().Err(rmErr).Msg("Failed to remove archive")
		}
	}()

	report, fileCount, err := p.run(ctx, jobID, entry.ArchivePath)
	if err != nil {
		return fileCount, err
	}

	p.setStatus(ctx, jobID, models.StepCompleted)
	p.notify(ctx, entry.NotifyAddress, jobID, notify.Outcome{Success: true, Matches: len(report.Matches)})

	logger.Info().
		Int("files", report.CheckedFiles).
		Int("matches", len(report.Matches)).
		Int("failures", len(report.Failures)).
		Msg("Job completed")

	return fileCount, nil
}

func (p *Processor) run(ctx context.Context, jobID, archivePath string) (*models.Report, int, error) {
	report := &models.Report{
		JobID:     jobID,
		Status:    models.StepExtracting,
		CreatedAt: p.now(),
	}

	p.setStatus(ctx, jobID, models.StepExtracting)
	contents, err := archive.Read(archivePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read archive: %w", err)
	}
	report.TotalFiles = contents.Members
	report.Failures = append(report.Failures, contents.Failures...)
	for range contents.Failures {
		metrics.FileFailures.WithLabelValues("extract").Inc()
	}

	var (
		records     []*models.FileRecord
		tokenTotals = make(map[string]int)
	)

	for _, lang := range languages {
		docs, whitelist := contents.ByLanguage(lang)
		if len(docs) == 0 {
			continue
		}

		p.setStatus(ctx, jobID, models.StepStandardizing)
		stdDocs := preprocess.Standardize(docs)
		stdWhitelist := preprocess.Standardize(whitelist)

		p.setStatus(ctx, jobID, models.StepFingerprinting)
		fpDocs, err := p.fingerprint(ctx, stdDocs, p.winnower.Fingerprint)
		if err != nil {
			return nil, contents.Members, err
		}
		fpWhitelist, err := p.fingerprint(ctx, stdWhitelist, p.winnower.FingerprintAll)
		if err != nil {
			return nil, contents.Members, err
		}

		for _, set := range [][]*models.FingerprintedFile{fpDocs, fpWhitelist} {
			for _, fp := range set {
				std := fp.File
				if std.Partial {
					report.Failures = append(report.Failures, models.FileFailure{
						Path:  std.Source.Path,
						Stage: "standardize",
						Error: std.LexError,
					})
					metrics.FileFailures.WithLabelValues("standardize").Inc()
				}
				if std.Source.Type != models.FileTypeWhitelist {
					tokenTotals[std.Source.Owner] += len(std.Tokens)
				}
				records = append(records, &models.FileRecord{
					JobID:        jobID,
					Path:         std.Source.Path,
					Owner:        std.Source.Owner,
					Type:         std.Source.Type,
					Language:     std.Source.Language,
					Tokens:       len(std.Tokens),
					Fingerprints: len(fp.Fingerprints),
					Partial:      std.Partial,
				})
			}
		}

		p.setStatus(ctx, jobID, models.StepMatching)
		matches := BuildMatches(fpDocs, fpWhitelist, p.winnower.K(), len(report.Matches), lang)
		metrics.MatchesFound.WithLabelValues(string(lang)).Add(float64(len(matches)))
		report.Matches = append(report.Matches, matches...)
		report.CheckedFiles += len(docs)

		log.Debug().
			Str("jobId", jobID).
			Str("language", string(lang)).
			Int("documents", len(docs)).
			Int("whitelist", len(whitelist)).
			Int("matches", len(matches)).
			Msg("Language matched")
	}

	report.Pairs = SummarizePairs(report.Matches, tokenTotals)
	report.Status = models.StepCompleted
	report.CompletedAt = p.now()

	for _, sink := range p.sinks {
		if err := sink.SaveReport(ctx, report); err != nil {
			return nil, contents.Members, fmt.Errorf("failed to save report: %w", err)
		}
	}

	if p.records != nil {
		if err := p.records.InsertFileRecords(ctx, records); err != nil {
			log.Warn().Err(err).Str("jobId", jobID).Msg("Failed to store file records")
		}
	}

	return report, contents.Members, nil
}

// fingerprint winnows standardized files on the pool, keeping input order.
func (p *Processor) fingerprint(
	ctx context.Context,
	files []*models.StandardizedFile,
	selectFn func(tokens []string) []models.Fingerprint,
) ([]*models.FingerprintedFile, error) {
	out := make([]*models.FingerprintedFile, len(files))
	err := p.pool.Run(ctx, len(files), func(i int) {
		out[i] = &models.FingerprintedFile{File: files[i], Fingerprints: selectFn(files[i].Tokens)}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint files: %w", err)
	}
	return out, nil
}

func (p *Processor) setStatus(ctx context.Context, jobID string, step models.Step) {
	if p.status == nil {
		return
	}
	if err := p.status.Set(ctx, jobID, step); err != nil {
		log.Warn().Err(err).Str("jobId", jobID).Str("step", string(step)).Msg("Failed to update job status")
	}
}

func (p *Processor) notify(ctx context.Context, address, jobID string, outcome notify.Outcome) {
	if p.notifier == nil || address == "" {
		return
	}
	if err := p.notifier.Notify(ctx, address, jobID, outcome); err != nil {
		log.Error().Err(err).Str("jobId", jobID).Str("to", address).Msg("Failed to send notification")
	}
}
