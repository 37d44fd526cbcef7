package models

// StandardizedFile holds the normalized token stream of one SubmittedFile.
// Lines[i] is the source line of Tokens[i].
type StandardizedFile struct {
	Source   *SubmittedFile
	Tokens   []string
	Lines    []int
	Partial  bool   // lexing stopped early, Tokens is the prefix before the error
	LexError string // message of the error that stopped lexing
}

// Fingerprint is a selected k-gram hash and the token index where the k-gram starts
type Fingerprint struct {
	Hash     uint64 `bson:"hash" json:"hash"`
	Position int    `bson:"position" json:"position"`
}

// FingerprintedFile pairs a standardized file with its selected fingerprints
type FingerprintedFile struct {
	File         *StandardizedFile
	Fingerprints []Fingerprint
}

// LineAt returns the source line of token i, clamped to the token range.
func (f *StandardizedFile) LineAt(i int) int {
	if len(f.Lines) == 0 {
		return 0
	}
	if i < 0 {
		i = 0
	}
	if i >= len(f.Lines) {
		i = len(f.Lines) - 1
	}
	return f.Lines[i]
}
