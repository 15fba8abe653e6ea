package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/inhies/go-bytesize"
)

// Sample names, in the order the protocol records them.
const (
	WriteUnmapped     = "write_unmapped"
	WriteMapped       = "write_mapped"
	ReadMapped        = "read_mapped"
	WriteAndSync      = "write_and_sync"
	WriteAndSyncFlush = "write_and_sync_flush"
	ReadFromDisk      = "read_from_disk"
	ReadUnmapped      = "read_unmapped"

	WriteAnonymous = "write_anonymous"
	ReadAnonymous  = "read_anonymous"
)

// Lifecycle conditions the backing pages are in while a pass runs.
const (
	FreshlyMapped     = "freshly-mapped-zero-filled"
	DirtyInPageCache  = "dirty-in-page-cache"
	FlushedButCached  = "flushed-but-cached"
	FlushedAndEvicted = "flushed-and-evicted"
	RemappedFromCache = "remapped-from-page-cache"
	AnonymousMemory   = "anonymous-memory"
)

// SampleCount is the number of samples a complete run records.
const SampleCount = 7

const (
	bytesPerMegabyte     = 1000 * 1000
	tooSmallToMeasureMsg = "elapsed too small to measure"
)

// summaryOrder groups writes before reads.
var summaryOrder = []string{
	WriteUnmapped,
	WriteMapped,
	WriteAndSync,
	WriteAndSyncFlush,
	ReadMapped,
	ReadFromDisk,
	ReadUnmapped,
}

type Sample struct {
	Name      string        `json:"name"`
	Condition string        `json:"condition"`
	Elapsed   time.Duration `json:"elapsedNs"`

	// Checksum is the wrapping sum of every word read; only set for reads.
	Checksum    uint64 `json:"checksum,omitempty"`
	HasChecksum bool   `json:"hasChecksum"`

	// Resident and Total are page counts observed right before a read pass.
	// Total is zero when residency was not sampled.
	Resident int `json:"resident,omitempty"`
	Total    int `json:"total,omitempty"`
}

// Millis returns the elapsed time truncated to whole milliseconds.
func (s Sample) Millis() int64 {
	return s.Elapsed.Milliseconds()
}

type Report struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	StartedAt time.Time `json:"startedAt"`
	Samples   []Sample  `json:"samples"`
	Baseline  []Sample  `json:"baseline,omitempty"`
}

// Throughput converts elapsed time for size bytes into decimal MB/s. ok is
// false when elapsed is too small to divide by.
func Throughput(size int64, elapsed time.Duration) (mbps float64, ok bool) {
	if elapsed <= 0 || size < 0 {
		return 0, false
	}

	return float64(size) / elapsed.Seconds() / bytesPerMegabyte, true
}

// Sample returns the sample with the given name.
func (r *Report) Sample(name string) (Sample, bool) {
	for _, s := range r.Samples {
		if s.Name == name {
			return s, true
		}
	}
	for _, s := range r.Baseline {
		if s.Name == name {
			return s, true
		}
	}

	return Sample{}, false
}

// WriteText renders the human-readable summary.
func (r *Report) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%v of %v:\n", bytesize.New(float64(r.Size)), r.Path); err != nil {
		return err
	}

	for _, s := range r.Baseline {
		if err := r.writeLine(w, s); err != nil {
			return err
		}
	}

	for _, name := range summaryOrder {
		s, ok := r.Sample(name)
		if !ok {
			continue
		}

		if err := r.writeLine(w, s); err != nil {
			return err
		}
	}

	return nil
}

func (r *Report) writeLine(w io.Writer, s Sample) error {
	mbps, ok := Throughput(r.Size, s.Elapsed)
	if !ok {
		_, err := fmt.Fprintf(w, " %v took %vms, %v\n", s.Name, s.Millis(), tooSmallToMeasureMsg)

		return err
	}

	_, err := fmt.Fprintf(w, " %v took %vms for a bw of %.0f MB/s\n", s.Name, s.Millis(), mbps)

	return err
}

// WriteJSON renders the report as a single JSON document.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(r)
}
