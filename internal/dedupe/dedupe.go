// Package dedupe removes records that share a match id across the whole JSON collection.
package dedupe

import (
	"encoding/binary"
	"log"

	"github.com/bits-and-blooms/bloom/v3"

	"mcsr-analyzer/internal/mcsr"
	"mcsr-analyzer/internal/storage"
)

// Target false-positive rate of the first-pass filter. Positives are resolved exactly,
// so the rate only bounds how many unique ids end up in the exact set.
const falsePositiveRate = 0.001

// Result summarizes a dedupe pass
type Result struct {
	Scanned      int
	Removed      int
	Candidates   int     // ids the filter flagged as possibly repeated; only these are tracked exactly
	DuplicateIDs []int64 // ids that had at least one dropped copy, in first-drop order
}

// Deduplicate keeps the first occurrence of every match id, scanning users and records
// in stored order, and drops every later copy regardless of which user holds it.
// Records without an id are always kept.
//
// The first pass runs every id through a bloom filter sized to the collection. An id
// that tests positive may be repeated and becomes a candidate. Any id never flagged
// occurs once, so the second pass keeps it without touching the exact set.
func Deduplicate(c *storage.Collection) Result {
	var res Result

	candidates := candidateIDs(c)
	res.Candidates = len(candidates)

	seen := make(map[int64]struct{}, len(candidates))
	reported := make(map[int64]struct{})

	c.Each(func(username string, um *storage.UserMatches) {
		if um == nil || um.Data == nil {
			return
		}

		unique := um.Data[:0:0]
		for _, m := range um.Data {
			res.Scanned++
			if !m.HasID() {
				unique = append(unique, m)
				continue
			}

			id := *m.ID
			if _, maybe := candidates[id]; !maybe {
				unique = append(unique, m)
				continue
			}

			if _, dup := seen[id]; dup {
				log.Printf("[Dedupe] Duplicate match found and removed: ID %d (%s)", id, username)
				res.Removed++
				if _, ok := reported[id]; !ok {
					reported[id] = struct{}{}
					res.DuplicateIDs = append(res.DuplicateIDs, id)
				}
				continue
			}
			seen[id] = struct{}{}
			unique = append(unique, m)
		}
		um.Data = unique
	})

	return res
}

// candidateIDs returns every id whose filter test was positive at least once.
// Every id that really repeats is included; false positives only add extra entries.
func candidateIDs(c *storage.Collection) map[int64]struct{} {
	n := c.TotalMatches()
	if n < 1 {
		n = 1
	}
	filter := bloom.NewWithEstimates(uint(n), falsePositiveRate)
	candidates := make(map[int64]struct{})

	var key [8]byte
	c.EachMatch(func(_ string, m *mcsr.Match) {
		if !m.HasID() {
			return
		}
		binary.BigEndian.PutUint64(key[:], uint64(*m.ID))
		if filter.TestAndAdd(key[:]) {
			candidates[*m.ID] = struct{}{}
		}
	})
	return candidates
}

// HasDuplicates reports whether any non-null id appears more than once
func HasDuplicates(c *storage.Collection) bool {
	seen := make(map[int64]struct{})
	dup := false
	c.EachMatch(func(_ string, m *mcsr.Match) {
		if dup || !m.HasID() {
			return
		}
		if _, ok := seen[*m.ID]; ok {
			dup = true
			return
		}
		seen[*m.ID] = struct{}{}
	})
	return dup
}
