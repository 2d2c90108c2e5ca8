package ingestion

import (
	"github.com/bits-and-blooms/bloom/v3"
)

// duplicateDetector flags intra-batch duplicates on a natural key as rows
// are validated. A Bloom filter answers the common "definitely new" case
// without touching the hash set; only a Bloom hit falls through to the
// authoritative lookup. The set still records every key so that a filter
// false positive can never reject a genuinely new row.
type duplicateDetector struct {
	filter *bloom.BloomFilter
	seen   map[string]struct{}
}

// newDuplicateDetector sizes the filter for expectedRows at a 1% false
// positive rate; a higher FP rate only costs an extra hash-set lookup, so
// it's tuned for memory over precision.
func newDuplicateDetector(expectedRows int) *duplicateDetector {
	if expectedRows < 1 {
		expectedRows = 1
	}
	return &duplicateDetector{
		filter: bloom.NewWithEstimates(uint(expectedRows), 0.01),
		seen:   make(map[string]struct{}),
	}
}

// seenBefore reports whether key has already been observed in this batch,
// and records it for subsequent calls.
func (d *duplicateDetector) seenBefore(key string) bool {
	b := []byte(key)
	if !d.filter.Test(b) {
		d.filter.Add(b)
		d.seen[key] = struct{}{}
		return false
	}
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}
