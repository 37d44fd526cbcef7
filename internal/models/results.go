package models

import (
	"time"
)

type Step string

const (
	StepQueued         Step = "queued"
	StepExtracting     Step = "extracting"
	StepStandardizing  Step = "standardizing"
	StepFingerprinting Step = "fingerprinting"
	StepMatching       Step = "matching"
	StepCompleted      Step = "completed"
	StepFailed         Step = "failed"
)

// Region is one side of a match
type Region struct {
	Owner      string   `bson:"owner" json:"owner"`
	File       string   `bson:"file" json:"file"`
	Type       FileType `bson:"type" json:"type"`
	StartToken int      `bson:"startToken" json:"startToken"`
	EndToken   int      `bson:"endToken" json:"endToken"`
	StartLine  int      `bson:"startLine" json:"startLine"`
	EndLine    int      `bson:"endLine" json:"endLine"`
}

// Match is one contiguous region shared by two documents of different owners.
// Left is always a current-year document.
type Match struct {
	ID       int      `bson:"id" json:"id"`
	Language Language `bson:"language" json:"language"`
	Left     Region   `bson:"left" json:"left"`
	Right    Region   `bson:"right" json:"right"`
}

// PairSummary aggregates all matches between two owners
type PairSummary struct {
	OwnerA        string  `bson:"ownerA" json:"ownerA"`
	OwnerB        string  `bson:"ownerB" json:"ownerB"`
	Matches       int     `bson:"matches" json:"matches"`
	MatchedTokens int     `bson:"matchedTokens" json:"matchedTokens"`
	Similarity    float64 `bson:"similarity" json:"similarity"`
	Risk          string  `bson:"risk" json:"risk"`
}

// FileFailure records a file that was skipped or only partly processed
type FileFailure struct {
	Path  string `bson:"path" json:"path"`
	Stage string `bson:"stage" json:"stage"` // extract, standardize
	Error string `bson:"error" json:"error"`
}

// Report is the result artifact of one job
type Report struct {
	JobID        string        `bson:"jobId" json:"jobId"`
	Status       Step          `bson:"status" json:"status"`
	Matches      []Match       `bson:"matches" json:"matches"`
	Pairs        []PairSummary `bson:"pairs" json:"pairs"`
	Failures     []FileFailure `bson:"failures" json:"failures"`
	TotalFiles   int           `bson:"totalFiles" json:"totalFiles"`
	CheckedFiles int           `bson:"checkedFiles" json:"checkedFiles"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	CompletedAt  time.Time     `bson:"completedAt" json:"completedAt"`
}

// FileRecord is the per-file diagnostic stored next to a report
type FileRecord struct {
	JobID        string    `bson:"jobId" json:"jobId"`
	Path         string    `bson:"path" json:"path"`
	Owner        string    `bson:"owner" json:"owner"`
	Type         FileType  `bson:"type" json:"type"`
	Language     Language  `bson:"language" json:"language"`
	Tokens       int       `bson:"tokens" json:"tokens"`
	Fingerprints int       `bson:"fingerprints" json:"fingerprints"`
	Partial      bool      `bson:"partial" json:"partial"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

// EnqueueResponse is returned by the enqueue endpoint
type EnqueueResponse struct {
	JobID    string `json:"jobId"`
	Accepted bool   `json:"accepted"`
	ETA      string `json:"eta"`
	Step     Step   `json:"step"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
