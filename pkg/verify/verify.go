// Package verify checks that a backing file holds a single fill pattern
// throughout, as it should after a completed benchmark run.
package verify

import (
	"context"
	"fmt"
	"os"

	"github.com/pojntfx/mmap-bandwidth/pkg/werr"
)

type Result struct {
	Blocks     int64
	Mismatched []int64
}

// Pattern hashes path in blockSize chunks and compares every chunk against
// the hash of a chunk filled with fill.
func Pattern(ctx context.Context, path string, fill uint64, blockSize int64, parallel int64) (*Result, error) {
	if blockSize <= 0 || blockSize%8 != 0 {
		return nil, werr.ErrConfig.WithCauseErrMsg(fmt.Sprintf("block size %d must be a positive multiple of 8", blockSize))
	}

	s, err := os.Stat(path)
	if err != nil {
		return nil, werr.ErrVerify.WithCauseErr(err)
	}

	hashes, err := GetHashesForBlocks(ctx, parallel, path, blockSize)
	if err != nil {
		return nil, werr.ErrVerify.WithCauseErr(err)
	}

	full := patternHash(fill, blockSize)
	tail := full
	if rem := s.Size() % blockSize; rem != 0 {
		tail = patternHash(fill, rem)
	}

	res := &Result{Blocks: int64(len(hashes))}
	for i, hash := range hashes {
		want := full
		if i == len(hashes)-1 {
			want = tail
		}

		if hash != want {
			res.Mismatched = append(res.Mismatched, int64(i))
		}
	}

	if len(res.Mismatched) > 0 {
		return res, werr.ErrVerify.WithCauseErrMsg(fmt.Sprintf("%d of %d blocks of %s do not hold %#016x", len(res.Mismatched), res.Blocks, path, fill))
	}

	return res, nil
}
