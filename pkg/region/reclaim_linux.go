//go:build linux

package region

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/pojntfx/mmap-bandwidth/pkg/werr"
)

// requestReclaim uses MADV_PAGEOUT (Linux 5.4+). Older kernels answer EINVAL.
func requestReclaim(b []byte) error {
	if len(b) == 0 {
		return nil
	}

	if err := unix.Madvise(b, unix.MADV_PAGEOUT); err != nil {
		return werr.ErrReclaimAdvisory.WithCauseErr(err)
	}

	return nil
}

func residency(b []byte) (int, int, error) {
	if len(b) == 0 {
		return 0, 0, nil
	}

	pageSize := unix.Getpagesize()
	vec := make([]byte, (len(b)+pageSize-1)/pageSize)
	if _, _, errno := unix.Syscall(unix.SYS_MINCORE, uintptr(unsafe.Pointer(&b[0])), uintptr(len(b)), uintptr(unsafe.Pointer(&vec[0]))); errno != 0 {
		return 0, len(vec), werr.ErrNotSupported.WithCauseErr(errno)
	}

	resident := 0
	for _, state := range vec {
		resident += int(state & 0x1)
	}

	return resident, len(vec), nil
}
