package bench

import (
	"os"

	"github.com/cockroachdb/errors"

	"github.com/pojntfx/mmap-bandwidth/pkg/werr"
)

// OpenBackingStore opens or creates path for reading and writing and sizes it
// to exactly size bytes.
func OpenBackingStore(path string, size int) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, werr.ErrSetup.WithCauseErr(err)
	}

	if err := f.Truncate(int64(size)); err != nil {
		_ = f.Close()

		return nil, werr.ErrSetup.WithCauseErr(errors.Wrapf(err, "failed to size %s to %d bytes", path, size))
	}

	return f, nil
}
