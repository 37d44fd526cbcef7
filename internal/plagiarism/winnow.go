package plagiarism

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/hook-system/hook/internal/models"
)

// rollingBase is the multiplier of the k-gram polynomial hash; arithmetic
// wraps modulo 2^64.
const rollingBase uint64 = 1099511628211

// Winnower selects document fingerprints with the winnowing algorithm
// (Schleimer, Wilkerson, Aiken; SIGMOD 2003).
//
// Any run of at least t identical tokens in two documents yields at least one
// shared fingerprint, and runs shorter than k never do.
type Winnower struct {
	k int
	t int
	w int
}

func NewWinnower(k, t int) (*Winnower, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k-gram size must be positive, got %d", k)
	}
	return &Winnower{k: k, t: t, w: t - k + 1}, nil
}

// K returns the k-gram length.
func (wn *Winnower) K() int { return wn.k }

// WindowSize returns t-k+1; values below 1 disable windowing.
func (wn *Winnower) WindowSize() int { return wn.w }

// KGrams hashes every length-k window of tokens in a single pass.
// The result is indexed by k-gram start position.
func (wn *Winnower) KGrams(tokens []string) []uint64 {
	n := len(tokens) - wn.k + 1
	if n <= 0 {
		return nil
	}

	// rollingBase^(k-1), the weight of the token leaving the window
	var lead uint64 = 1
	for i := 1; i < wn.k; i++ {
		lead *= rollingBase
	}

	hashes := make([]uint64, n)
	var h uint64
	for i := 0; i < wn.k; i++ {
		h = h*rollingBase + xxhash.Sum64String(tokens[i])
	}
	hashes[0] = h

	for i := 1; i < n; i++ {
		out := xxhash.Sum64String(tokens[i-1])
		in := xxhash.Sum64String(tokens[i+wn.k-1])
		h = (h-out*lead)*rollingBase + in
		hashes[i] = h
	}
	return hashes
}

// Fingerprint returns the selected fingerprints of tokens, ordered by position.
func (wn *Winnower) Fingerprint(tokens []string) []models.Fingerprint {
	return selectFingerprints(wn.KGrams(tokens), wn.w)
}

// FingerprintAll keeps every k-gram hash. Whitelist documents use it so that
// suppression covers all of their text.
func (wn *Winnower) FingerprintAll(tokens []string) []models.Fingerprint {
	return selectFingerprints(wn.KGrams(tokens), 1)
}

// selectFingerprints applies robust winnowing with window w over hashes.
//
// In each window the minimum hash is selected. While the previously selected
// position stays inside the window and is still minimal it is kept;
// otherwise the rightmost minimal position is taken. A position is recorded
// once, when it becomes selected.
func selectFingerprints(hashes []uint64, w int) []models.Fingerprint {
	n := len(hashes)
	if n == 0 {
		return nil
	}

	if w <= 1 {
		out := make([]models.Fingerprint, n)
		for i, h := range hashes {
			out[i] = models.Fingerprint{Hash: h, Position: i}
		}
		return out
	}

	if n < w {
		w = n
	}

	out := make([]models.Fingerprint, 0, 2*n/(w+1)+1)
	minPos := -1
	for start := 0; start+w <= n; start++ {
		end := start + w - 1

		switch {
		case minPos < start:
			minPos = start
			for i := start + 1; i <= end; i++ {
				if hashes[i] <= hashes[minPos] {
					minPos = i
				}
			}
		case hashes[end] < hashes[minPos]:
			minPos = end
		default:
			continue
		}

		out = append(out, models.Fingerprint{Hash: hashes[minPos], Position: minPos})
	}
	return out
}
