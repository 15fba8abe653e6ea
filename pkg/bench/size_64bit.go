//go:build !(386 || arm || mips || mipsle)

package bench

// DefaultSize is the working set used when none is configured.
const DefaultSize = 8 * GB
