package bench

import (
	"time"

	"github.com/pojntfx/mmap-bandwidth/pkg/region"
)

type WriteOptions struct {
	// FlushToDisk issues a synchronous flush after the fill.
	FlushToDisk bool

	// ForceEvict requests page reclamation after the flush. Ignored unless
	// FlushToDisk is set.
	ForceEvict bool

	// OnReclaimRefused is called when the kernel declines the reclamation
	// request. The write pass still succeeds.
	OnReclaimRefused func(err error)
}

// WriteAndMeasure fills every word of r with fill in ascending order and
// returns the time taken, including the flush and reclamation request when
// enabled.
func WriteAndMeasure(r *region.Region, fill uint64, opts WriteOptions) (time.Duration, error) {
	words := r.Words()

	beforeWrite := time.Now()

	for i := range words {
		words[i] = fill
	}

	if opts.FlushToDisk {
		if err := r.Flush(); err != nil {
			return time.Since(beforeWrite), err
		}

		if opts.ForceEvict {
			if err := r.RequestReclaim(); err != nil && opts.OnReclaimRefused != nil {
				opts.OnReclaimRefused(err)
			}
		}
	}

	return time.Since(beforeWrite), nil
}
