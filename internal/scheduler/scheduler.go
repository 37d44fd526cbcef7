package scheduler

import (
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ETALayout is the layout used when reporting ETAs to users
const ETALayout = "2006-01-02 15:04:05"

// QueueEntry is a job waiting for the worker
type QueueEntry struct {
	ArchivePath   string
	NotifyAddress string
}

// EstimateEntry tracks the estimated duration of a queued or running job.
// EstimatedSeconds is the job's own duration, not its ETA.
type EstimateEntry struct {
	ArchivePath      string
	EnqueuedAt       time.Time
	EstimatedSeconds float64
}

// Scheduler is a FIFO submission queue with wait-time estimation.
//
// The queue and the estimate list are only touched under mu. An estimate
// entry is created with its queue entry and lives until Complete is called
// for that job, so running jobs still count towards the ETA of waiting ones.
type Scheduler struct {
	mu        sync.Mutex
	queue     []QueueEntry
	estimates []EstimateEntry

	// float64 bits; written once per completed job by the worker
	secondsPerFile atomic.Uint64

	now func() time.Time
}

// New creates a scheduler seeded with an initial seconds-per-file average.
func New(initialSecondsPerFile float64) *Scheduler {
	s := &Scheduler{now: time.Now}
	s.secondsPerFile.Store(math.Float64bits(initialSecondsPerFile))
	return s
}

// Enqueue appends a job and returns its ETA. accepted is true when this call
// moved the queue from empty to non-empty.
func (s *Scheduler) Enqueue(archivePath string, fileCount int, notifyAddress string) (bool, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accepted := len(s.queue) == 0
	now := s.now()
	own := s.ownEstimate(fileCount)
	wait := s.pendingSecondsLocked() + own

	s.queue = append(s.queue, QueueEntry{
		ArchivePath:   archivePath,
		NotifyAddress: notifyAddress,
	})
	s.estimates = append(s.estimates, EstimateEntry{
		ArchivePath:      archivePath,
		EnqueuedAt:       now,
		EstimatedSeconds: own,
	})

	return accepted, now.Add(seconds(wait))
}

// EstimateProcessing returns the seconds until a new job of fileCount files
// would finish: everything already held plus its own share.
func (s *Scheduler) EstimateProcessing(fileCount int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingSecondsLocked() + s.ownEstimate(fileCount)
}

// EstimateQueue returns when the job whose archive path contains jobID is
// expected to start. Unknown jobs get the time at which the queue drains.
func (s *Scheduler) EstimateQueue(jobID string) time.Time {
	s.mu.Lock()
	var ahead float64
	for _, e := range s.estimates {
		if strings.Contains(e.ArchivePath, jobID) {
			break
		}
		ahead += e.EstimatedSeconds
	}
	s.mu.Unlock()

	return s.now().Add(seconds(ahead))
}

// Dequeue pops the head of the queue.
func (s *Scheduler) Dequeue() (QueueEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return QueueEntry{}, false
	}
	entry := s.queue[0]
	s.queue[0] = QueueEntry{}
	s.queue = s.queue[1:]
	return entry, true
}

// Complete drops the job's estimate entry and folds its timing into the
// running seconds-per-file average.
func (s *Scheduler) Complete(archivePath string, start, end time.Time, fileCount int) {
	s.mu.Lock()
	for i, e := range s.estimates {
		if e.ArchivePath == archivePath {
			s.estimates = append(s.estimates[:i], s.estimates[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if fileCount > 0 && !end.Before(start) {
		perFile := end.Sub(start).Seconds() / float64(fileCount)
		s.secondsPerFile.Store(math.Float64bits(perFile))
	}
}

// SecondsPerFile returns the running average used for estimates.
func (s *Scheduler) SecondsPerFile() float64 {
	return math.Float64frombits(s.secondsPerFile.Load())
}

// Len returns the number of jobs waiting in the queue.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Snapshot returns copies of the queue and estimate list.
func (s *Scheduler) Snapshot() ([]QueueEntry, []EstimateEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := make([]QueueEntry, len(s.queue))
	copy(queue, s.queue)
	estimates := make([]EstimateEntry, len(s.estimates))
	copy(estimates, s.estimates)
	return queue, estimates
}

// FormatETA renders an ETA as a local time string.
func FormatETA(t time.Time) string {
	return t.UTC().Local().Format(ETALayout)
}

func (s *Scheduler) ownEstimate(fileCount int) float64 {
	if fileCount < 0 {
		fileCount = 0
	}
	return float64(fileCount) * s.SecondsPerFile()
}

func (s *Scheduler) pendingSecondsLocked() float64 {
	var total float64
	for _, e := range s.estimates {
		total += e.EstimatedSeconds
	}
	return total
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
