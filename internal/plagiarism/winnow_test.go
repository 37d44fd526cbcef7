package plagiarism

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/hook-system/hook/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomTokens(r *rand.Rand, prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, r.Intn(1_000_000))
	}
	return out
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func hashSet(fps []models.Fingerprint) map[uint64]bool {
	set := make(map[uint64]bool, len(fps))
	for _, fp := range fps {
		set[fp.Hash] = true
	}
	return set
}

func mustWinnower(t *testing.T, k, g int) *Winnower {
	t.Helper()
	wn, err := NewWinnower(k, g)
	require.NoError(t, err)
	return wn
}

func TestNewWinnowerRejectsNonPositiveK(t *testing.T) {
	_, err := NewWinnower(0, 9)
	assert.Error(t, err)
}

func TestRollingHashMatchesDirectHash(t *testing.T) {
	wn := mustWinnower(t, 5, 9)
	tokens := randomTokens(rand.New(rand.NewSource(1)), "t", 40)

	got := wn.KGrams(tokens)
	require.Len(t, got, len(tokens)-4)

	for i := range got {
		var want uint64
		for _, tok := range tokens[i : i+5] {
			want = want*rollingBase + xxhash.Sum64String(tok)
		}
		assert.Equal(t, want, got[i], "k-gram %d", i)
	}
}

func TestFingerprintIsDeterministic(t *testing.T) {
	wn := mustWinnower(t, 5, 9)
	tokens := randomTokens(rand.New(rand.NewSource(2)), "t", 200)

	assert.Equal(t, wn.Fingerprint(tokens), wn.Fingerprint(append([]string(nil), tokens...)))
}

func TestEveryWindowHoldsASelectedPosition(t *testing.T) {
	wn := mustWinnower(t, 5, 9)
	tokens := randomTokens(rand.New(rand.NewSource(3)), "t", 300)
	fps := wn.Fingerprint(tokens)
	n := len(wn.KGrams(tokens))
	w := wn.WindowSize()

	selected := make(map[int]bool)
	for i, fp := range fps {
		if i > 0 {
			require.Greater(t, fp.Position, fps[i-1].Position, "positions must be strictly increasing")
		}
		selected[fp.Position] = true
	}

	for start := 0; start+w <= n; start++ {
		found := false
		for p := start; p < start+w; p++ {
			if selected[p] {
				found = true
				break
			}
		}
		assert.True(t, found, "window at %d has no fingerprint", start)
	}
}

func TestSharedRunOfGuaranteeLengthIsDetected(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	wn := mustWinnower(t, 5, 9)

	for trial := 0; trial < 50; trial++ {
		shared := randomTokens(r, "s", 9)
		a := concat(randomTokens(r, "a", r.Intn(30)), shared, randomTokens(r, "a", r.Intn(30)))
		b := concat(randomTokens(r, "b", r.Intn(30)), shared, randomTokens(r, "b", r.Intn(30)))

		hashesA := hashSet(wn.Fingerprint(a))
		common := false
		for h := range hashSet(wn.Fingerprint(b)) {
			if hashesA[h] {
				common = true
				break
			}
		}
		assert.True(t, common, "trial %d: shared run not fingerprinted", trial)
	}
}

func TestRunsShorterThanKAreIgnored(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	wn := mustWinnower(t, 5, 9)
	shared := randomTokens(r, "s", 4)

	a := concat(randomTokens(r, "a", 20), shared, randomTokens(r, "a", 20))
	b := concat(randomTokens(r, "b", 20), shared, randomTokens(r, "b", 20))

	hashesA := hashSet(wn.FingerprintAll(a))
	for h := range hashSet(wn.FingerprintAll(b)) {
		assert.False(t, hashesA[h])
	}
}

func TestWindowBelowOneSelectsEveryKGram(t *testing.T) {
	wn := mustWinnower(t, 5, 3)
	tokens := randomTokens(rand.New(rand.NewSource(6)), "t", 12)

	fps := wn.Fingerprint(tokens)
	require.Len(t, fps, 8)
	for i, fp := range fps {
		assert.Equal(t, i, fp.Position)
	}
}

func TestShortDocumentSelectsRightmostMinimumOnce(t *testing.T) {
	wn := mustWinnower(t, 5, 9)
	tokens := randomTokens(rand.New(rand.NewSource(7)), "t", 7)

	hashes := wn.KGrams(tokens)
	require.Len(t, hashes, 3)
	want := 0
	for i, h := range hashes {
		if h <= hashes[want] {
			want = i
		}
	}

	fps := wn.Fingerprint(tokens)
	require.Len(t, fps, 1)
	assert.Equal(t, want, fps[0].Position)
	assert.Equal(t, hashes[want], fps[0].Hash)
}

func TestTooFewTokensYieldNoFingerprints(t *testing.T) {
	wn := mustWinnower(t, 5, 9)

	assert.Empty(t, wn.Fingerprint([]string{"a", "b", "c", "d"}))
	assert.Empty(t, wn.Fingerprint(nil))
}

func TestRobustWinnowingOnKnownHashes(t *testing.T) {
	hashes := []uint64{77, 74, 42, 17, 98, 50, 17, 98, 8, 88, 67, 39, 77, 74, 42, 17, 98}

	fps := selectFingerprints(hashes, 4)

	var positions []int
	for _, fp := range fps {
		positions = append(positions, fp.Position)
	}
	assert.Equal(t, []int{3, 6, 8, 11, 15}, positions)
}
