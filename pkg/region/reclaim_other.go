//go:build !linux

package region

import (
	"os"

	"github.com/pojntfx/mmap-bandwidth/pkg/werr"
)

// requestReclaim is a no-op where no page-out advice exists.
func requestReclaim(b []byte) error {
	return nil
}

func residency(b []byte) (int, int, error) {
	pageSize := os.Getpagesize()

	return 0, (len(b) + pageSize - 1) / pageSize, werr.ErrNotSupported
}
