package bench

import (
	"time"

	"github.com/pojntfx/mmap-bandwidth/pkg/region"
)

// ReadAndMeasure reads every word of r in ascending order and returns the
// time taken along with the wrapping sum of all words. Callers must use the
// checksum, otherwise the reads are dead.
func ReadAndMeasure(r *region.Region) (time.Duration, uint64) {
	words := r.Words()

	beforeRead := time.Now()

	var sum uint64
	for _, w := range words {
		sum += w
	}

	return time.Since(beforeRead), sum
}

// ExpectedChecksum is the checksum of a size byte region filled with fill.
func ExpectedChecksum(size int, fill uint64) uint64 {
	return uint64(size/region.WordSize) * fill
}
