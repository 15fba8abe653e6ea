// Package region maps a backing file into memory and exposes the mapping as
// a word-addressable buffer. It is the only package that turns a raw mapping
// address into a Go slice; callers never see pointers.
package region

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/edsrzf/mmap-go"

	"github.com/pojntfx/mmap-bandwidth/pkg/werr"
)

// WordSize is the width of a single fill/read unit in bytes.
const WordSize = 8

// Region is one mapping of exactly Len() bytes. After Release it must not be used.
type Region struct {
	m         mmap.MMap
	anonymous bool
}

// Acquire establishes a shared, read-write mapping of the first size bytes of
// f at an address chosen by the kernel.
func Acquire(f *os.File, size int) (*Region, error) {
	if f == nil {
		return nil, werr.ErrMapping.WithCauseErrMsg("nil backing file")
	}

	if err := checkSize(size); err != nil {
		return nil, err
	}

	m, err := mmap.MapRegion(f, size, mmap.RDWR, 0, 0)
	if err != nil {
		return nil, werr.ErrMapping.WithCauseErr(err)
	}

	return &Region{m: m}, nil
}

// AcquireAnonymous establishes a read-write mapping of size bytes that is not
// backed by any file. It serves as the plain virtual memory baseline.
func AcquireAnonymous(size int) (*Region, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}

	m, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, werr.ErrMapping.WithCauseErr(err)
	}

	return &Region{m: m, anonymous: true}, nil
}

func checkSize(size int) error {
	if size <= 0 {
		return werr.ErrMapping.WithCauseErrMsg(fmt.Sprintf("invalid mapping size %d", size))
	}

	if size%WordSize != 0 {
		return werr.ErrMapping.WithCauseErrMsg(fmt.Sprintf("mapping size %d is not a multiple of %d", size, WordSize))
	}

	return nil
}

// Release unmaps the region. Calling it more than once is a no-op.
func (r *Region) Release() error {
	if r == nil || r.m == nil {
		return nil
	}

	err := r.m.Unmap()
	r.m = nil

	if err != nil {
		return werr.ErrMapping.WithCauseErr(err)
	}

	return nil
}

// Words returns the mapping as a slice of 64-bit words. Mappings are page
// aligned, so the first word is always naturally aligned.
func (r *Region) Words() []uint64 {
	if r == nil || len(r.m) == 0 {
		return nil
	}

	return unsafe.Slice((*uint64)(unsafe.Pointer(&r.m[0])), len(r.m)/WordSize)
}

// Addr returns the base address of the mapping, for diagnostics only.
func (r *Region) Addr() uintptr {
	if r == nil || len(r.m) == 0 {
		return 0
	}

	return uintptr(unsafe.Pointer(&r.m[0]))
}

func (r *Region) Len() int {
	if r == nil {
		return 0
	}

	return len(r.m)
}

// Anonymous reports whether the region is backed by anonymous memory.
func (r *Region) Anonymous() bool {
	return r != nil && r.anonymous
}

// Flush blocks until every dirty page of the region has been written to the
// backing file.
func (r *Region) Flush() error {
	if r.anonymous || len(r.m) == 0 {
		return nil
	}

	if err := r.m.Flush(); err != nil {
		return werr.ErrFlush.WithCauseErr(err)
	}

	return nil
}

// RequestReclaim asks the kernel to drop the region's clean pages from the
// page cache. The kernel may ignore it; callers must not rely on the pages
// being gone afterwards.
func (r *Region) RequestReclaim() error {
	if r.anonymous || len(r.m) == 0 {
		return nil
	}

	return requestReclaim(r.m)
}

// Residency reports how many of the region's pages are resident in memory.
func (r *Region) Residency() (resident int, total int, err error) {
	return residency(r.m)
}
