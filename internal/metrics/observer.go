package metrics

import (
	"time"
)

// SecondsPerFileSource is read after every job to export the ETA average
type SecondsPerFileSource interface {
	SecondsPerFile() float64
}

// WorkerObserver feeds submission worker events into the collectors
type WorkerObserver struct {
	source SecondsPerFileSource
}

func NewWorkerObserver(source SecondsPerFileSource) *WorkerObserver {
	return &WorkerObserver{source: source}
}

func (o *WorkerObserver) JobFinished(duration time.Duration, fileCount int, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
	}
	JobCount.WithLabelValues(status).Inc()
	JobDuration.Observe(duration.Seconds())
	if o.source != nil {
		SecondsPerFile.Set(o.source.SecondsPerFile())
	}
}

func (o *WorkerObserver) QueueDepth(n int) {
	QueueDepth.Set(float64(n))
}
