package bench

import (
	"fmt"

	"github.com/pojntfx/mmap-bandwidth/pkg/region"
	"github.com/pojntfx/mmap-bandwidth/pkg/werr"
)

const (
	MB = 1024 * 1024
	GB = 1024 * MB
)

// Fill patterns only label which pass produced the file's contents.
const (
	PatternAmp    uint64 = 0x2626262626262626
	PatternDollar uint64 = 0x2424242424242424
	PatternHash   uint64 = 0x2323232323232323
	PatternPerc   uint64 = 0x2525252525252525
)

type Config struct {
	// Size is the working set in bytes; the backing file is sized to it.
	Size int

	// Patterns are written by the four write passes, in order.
	Patterns [4]uint64

	// Baseline adds an anonymous memory write and read before the protocol.
	Baseline bool
}

func DefaultConfig() Config {
	return Config{
		Size:     DefaultSize,
		Patterns: [4]uint64{PatternAmp, PatternDollar, PatternHash, PatternPerc},
	}
}

func (c Config) Validate() error {
	if c.Size <= 0 {
		return werr.ErrConfig.WithCauseErrMsg(fmt.Sprintf("size must be positive, got %d", c.Size))
	}

	if c.Size%region.WordSize != 0 {
		return werr.ErrConfig.WithCauseErrMsg(fmt.Sprintf("size %d is not a multiple of %d", c.Size, region.WordSize))
	}

	return nil
}

// LastPattern is the pattern the backing file holds after a complete run.
func (c Config) LastPattern() uint64 {
	return c.Patterns[len(c.Patterns)-1]
}
