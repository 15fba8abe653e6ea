package main

import (
	"fmt"
	"math"

	"github.com/inhies/go-bytesize"

	"github.com/pojntfx/mmap-bandwidth/pkg/werr"
)

// workingSetSize converts the -size flag to a byte count the mapping can hold.
func workingSetSize(b bytesize.ByteSize) (int, error) {
	v := float64(b)

	if v != math.Trunc(v) {
		return 0, werr.ErrConfig.WithCauseErrMsg(fmt.Sprintf("size %v is not a whole number of bytes", b))
	}

	if v >= float64(math.MaxInt) || v <= float64(math.MinInt) {
		return 0, werr.ErrConfig.WithCauseErrMsg(fmt.Sprintf("size %v does not fit the address space", b))
	}

	return int(v), nil
}
