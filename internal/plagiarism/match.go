package plagiarism

import (
	"sort"

	"github.com/hook-system/hook/internal/models"
)

// occurrence is one place a fingerprint hash was selected
type occurrence struct {
	doc int
	pos int
}

// invertedIndex maps hash → occurrences across documents
type invertedIndex map[uint64][]occurrence

// buildIndex indexes every fingerprint of docs. Hashes selected in a single
// document cannot form a pair and are dropped.
func buildIndex(docs []*models.FingerprintedFile) invertedIndex {
	idx := make(invertedIndex)
	for d, doc := range docs {
		for _, fp := range doc.Fingerprints {
			idx[fp.Hash] = append(idx[fp.Hash], occurrence{doc: d, pos: fp.Position})
		}
	}

	for h, occs := range idx {
		if !spansDocuments(occs) {
			delete(idx, h)
		}
	}
	return idx
}

func spansDocuments(occs []occurrence) bool {
	for _, o := range occs[1:] {
		if o.doc != occs[0].doc {
			return true
		}
	}
	return false
}

// docPair is an ordered pair of documents; left is always current-year
type docPair struct {
	left  int
	right int
}

// candidate is a shared k-gram, by start position on each side
type candidate struct {
	left  int
	right int
}

// span is a merged region, inclusive token bounds on both sides
type span struct {
	startL, endL int
	startR, endR int
}

// BuildMatches cross-references the fingerprints of docs and returns every
// contiguous region shared by two documents of different owners.
//
// Hashes present in whitelist are ignored. Two previous-year documents are
// never compared. Matches are numbered offset+1, offset+2, ... in order of
// document pair and then left start position.
func BuildMatches(docs, whitelist []*models.FingerprintedFile, k, offset int, lang models.Language) []models.Match {
	excluded := make(map[uint64]bool)
	for _, wl := range whitelist {
		for _, fp := range wl.Fingerprints {
			excluded[fp.Hash] = true
		}
	}

	idx := buildIndex(docs)
	hashes := make([]uint64, 0, len(idx))
	for h := range idx {
		if !excluded[h] {
			hashes = append(hashes, h)
		}
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	candidates := make(map[docPair][]candidate)
	for _, h := range hashes {
		occs := idx[h]
		for i := 0; i < len(occs); i++ {
			for j := i + 1; j < len(occs); j++ {
				pair, cand, ok := orient(docs, occs[i], occs[j])
				if ok {
					candidates[pair] = append(candidates[pair], cand)
				}
			}
		}
	}

	pairs := make([]docPair, 0, len(candidates))
	for p := range candidates {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].left != pairs[j].left {
			return pairs[i].left < pairs[j].left
		}
		return pairs[i].right < pairs[j].right
	})

	var matches []models.Match
	for _, p := range pairs {
		left, right := docs[p.left].File, docs[p.right].File
		for _, s := range mergeCandidates(candidates[p], k) {
			matches = append(matches, models.Match{
				ID:       offset + len(matches) + 1,
				Language: lang,
				Left:     region(left, s.startL, s.endL),
				Right:    region(right, s.startR, s.endR),
			})
		}
	}
	return matches
}

// orient turns two occurrences into a candidate for their document pair, or
// reports false when the pair must not be compared.
func orient(docs []*models.FingerprintedFile, a, b occurrence) (docPair, candidate, bool) {
	fa, fb := docs[a.doc].File.Source, docs[b.doc].File.Source
	if fa.Owner == fb.Owner {
		return docPair{}, candidate{}, false
	}

	prevA := fa.Type != models.FileTypeCurrentYear
	prevB := fb.Type != models.FileTypeCurrentYear
	if prevA && prevB {
		return docPair{}, candidate{}, false
	}

	if prevA || (!prevB && b.doc < a.doc) {
		a, b = b, a
	}
	return docPair{left: a.doc, right: b.doc}, candidate{left: a.pos, right: b.pos}, true
}

// mergeCandidates joins k-gram candidates of one document pair whose regions
// touch or overlap on both sides.
func mergeCandidates(cands []candidate, k int) []span {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].left != cands[j].left {
			return cands[i].left < cands[j].left
		}
		return cands[i].right < cands[j].right
	})

	var done, open []span
	for _, c := range cands {
		endL, endR := c.left+k-1, c.right+k-1

		// spans ending before this candidate can no longer grow
		kept := open[:0]
		for _, s := range open {
			if s.endL+1 < c.left {
				done = append(done, s)
			} else {
				kept = append(kept, s)
			}
		}
		open = kept

		merged := false
		for i := range open {
			s := &open[i]
			if c.right <= s.endR+1 && endR >= s.startR-1 {
				s.endL = max(s.endL, endL)
				s.startR = min(s.startR, c.right)
				s.endR = max(s.endR, endR)
				merged = true
				break
			}
		}
		if !merged {
			open = append(open, span{startL: c.left, endL: endL, startR: c.right, endR: endR})
		}
	}
	done = append(done, open...)

	sort.Slice(done, func(i, j int) bool {
		if done[i].startL != done[j].startL {
			return done[i].startL < done[j].startL
		}
		return done[i].startR < done[j].startR
	})
	return done
}

func region(f *models.StandardizedFile, start, end int) models.Region {
	return models.Region{
		Owner:      f.Source.Owner,
		File:       f.Source.Path,
		Type:       f.Source.Type,
		StartToken: start,
		EndToken:   end,
		StartLine:  f.LineAt(start),
		EndLine:    f.LineAt(end),
	}
}
