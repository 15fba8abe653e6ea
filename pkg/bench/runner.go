package bench

import (
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pojntfx/mmap-bandwidth/pkg/region"
	"github.com/pojntfx/mmap-bandwidth/pkg/report"
	"github.com/pojntfx/mmap-bandwidth/pkg/werr"
)

// Runner drives the measurement protocol over a single backing file. Every
// step depends on the page state left behind by the previous one, so steps
// run strictly in order on the calling goroutine.
type Runner struct {
	log *zap.Logger
	cfg Config
}

func NewRunner(log *zap.Logger, cfg Config) *Runner {
	if log == nil {
		log = zap.NewNop()
	}

	return &Runner{
		log: log,
		cfg: cfg,
	}
}

// Run opens the backing file at path, runs the protocol on it and closes it.
func Run(log *zap.Logger, path string, cfg Config) (*report.Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f, err := OpenBackingStore(path, cfg.Size)
	if err != nil {
		return nil, err
	}

	rep, err := NewRunner(log, cfg).Run(f)
	if err != nil {
		_ = f.Close()

		return nil, err
	}

	if err := f.Close(); err != nil {
		return nil, werr.ErrSetup.WithCauseErr(err)
	}

	return rep, nil
}

// Run records the seven samples against f, which must already be sized to
// the configured working set. No report is returned if any step fails.
func (r *Runner) Run(f *os.File) (rep *report.Report, err error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	rep = &report.Report{
		Path:      f.Name(),
		Size:      int64(r.cfg.Size),
		StartedAt: time.Now(),
		Samples:   make([]report.Sample, 0, report.SampleCount),
	}

	if r.cfg.Baseline {
		if rep.Baseline, err = r.baseline(); err != nil {
			return nil, err
		}
	}

	reg, err := r.acquire(f)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := reg.Release(); releaseErr != nil && err == nil {
			rep, err = nil, releaseErr
		}
	}()

	patterns := r.cfg.Patterns

	// Nothing forced to disk yet; the fill leaves dirty pages in the page cache.
	if err := r.write(rep, reg, report.WriteUnmapped, report.FreshlyMapped, patterns[0], WriteOptions{}); err != nil {
		return nil, err
	}

	if err := r.write(rep, reg, report.WriteMapped, report.DirtyInPageCache, patterns[1], WriteOptions{}); err != nil {
		return nil, err
	}

	r.read(rep, reg, report.ReadMapped, report.DirtyInPageCache)

	if err := r.write(rep, reg, report.WriteAndSync, report.DirtyInPageCache, patterns[2], WriteOptions{
		FlushToDisk: true,
	}); err != nil {
		return nil, err
	}

	if err := r.write(rep, reg, report.WriteAndSyncFlush, report.FlushedButCached, patterns[3], WriteOptions{
		FlushToDisk: true,
		ForceEvict:  true,
	}); err != nil {
		return nil, err
	}

	// The kernel may have kept some or all pages; whatever state results is measured as is.
	r.read(rep, reg, report.ReadFromDisk, report.FlushedAndEvicted)

	// Unmapping leaves the pages in the page cache, remapping gives fresh page table entries.
	if err := reg.Release(); err != nil {
		return nil, errors.Wrap(err, "could not unmap before "+report.ReadUnmapped)
	}

	if reg, err = r.acquire(f); err != nil {
		return nil, errors.Wrap(err, "could not remap before "+report.ReadUnmapped)
	}

	r.read(rep, reg, report.ReadUnmapped, report.RemappedFromCache)

	return rep, nil
}

func (r *Runner) acquire(f *os.File) (*region.Region, error) {
	reg, err := region.Acquire(f, r.cfg.Size)
	if err != nil {
		return nil, err
	}

	r.log.Info("Mapped backing file", zap.String("path", f.Name()), zap.String("addr", fmt.Sprintf("%#x", reg.Addr())), zap.Int("size", reg.Len()))

	return reg, nil
}

// baseline measures plain virtual memory with an anonymous mapping of the same size.
func (r *Runner) baseline() ([]report.Sample, error) {
	reg, err := region.AcquireAnonymous(r.cfg.Size)
	if err != nil {
		return nil, errors.Wrap(err, "could not map anonymous baseline")
	}
	defer reg.Release()

	r.log.Info("Mapped anonymous memory", zap.String("addr", fmt.Sprintf("%#x", reg.Addr())), zap.Int("size", reg.Len()))

	rep := &report.Report{}
	if err := r.write(rep, reg, report.WriteAnonymous, report.AnonymousMemory, r.cfg.Patterns[0], WriteOptions{}); err != nil {
		return nil, err
	}

	r.read(rep, reg, report.ReadAnonymous, report.AnonymousMemory)

	return rep.Samples, nil
}

func (r *Runner) write(rep *report.Report, reg *region.Region, name, condition string, fill uint64, opts WriteOptions) error {
	opts.OnReclaimRefused = func(err error) {
		r.log.Debug("Page reclamation request declined", zap.String("sample", name), zap.Error(err))
	}

	elapsed, err := WriteAndMeasure(reg, fill, opts)
	if err != nil {
		return errors.Wrapf(err, "could not complete %s", name)
	}

	rep.Samples = append(rep.Samples, report.Sample{
		Name:      name,
		Condition: condition,
		Elapsed:   elapsed,
	})

	r.log.Info("Wrote region", zap.String("sample", name), zap.String("addr", fmt.Sprintf("%#x", reg.Addr())), zap.String("fill", fmt.Sprintf("%#016x", fill)), zap.Duration("elapsed", elapsed))

	return nil
}

func (r *Runner) read(rep *report.Report, reg *region.Region, name, condition string) {
	sample := report.Sample{
		Name:      name,
		Condition: condition,
	}

	if resident, total, err := reg.Residency(); err == nil {
		sample.Resident, sample.Total = resident, total
	} else {
		r.log.Debug("Could not read page residency", zap.String("sample", name), zap.Error(err))
	}

	sample.Elapsed, sample.Checksum = ReadAndMeasure(reg)
	sample.HasChecksum = true

	rep.Samples = append(rep.Samples, sample)

	r.log.Info("Read region", zap.String("sample", name), zap.String("addr", fmt.Sprintf("%#x", reg.Addr())), zap.Uint64("checksum", sample.Checksum), zap.Int("resident", sample.Resident), zap.Int("pages", sample.Total), zap.Duration("elapsed", sample.Elapsed))
}
