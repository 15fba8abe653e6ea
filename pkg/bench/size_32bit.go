//go:build 386 || arm || mips || mipsle

package bench

// DefaultSize is the working set used when none is configured. An int
// cannot address 8 GiB here.
const DefaultSize = 1 * GB
