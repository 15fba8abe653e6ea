package verify

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"io"
	"math"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"
)

// GetHashesForBlocks returns the CRC-32 of every blocksize chunk of file,
// hashing up to parallel blocks at once. The last block may be short.
func GetHashesForBlocks(
	ctx context.Context,
	parallel int64,
	file string,
	blocksize int64,
) ([]uint32, error) {
	if parallel <= 0 || blocksize <= 0 {
		return nil, errors.Newf("parallelism %d and block size %d must be positive", parallel, blocksize)
	}

	s, err := os.Stat(file)
	if err != nil {
		return nil, errors.Wrapf(err, "could not stat %s", file)
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", file)
	}
	defer f.Close()

	var wg sync.WaitGroup
	blocks := int64(math.Ceil(float64(s.Size()) / float64(blocksize)))
	hashes := make([]uint32, blocks)

	var (
		errLock  sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		errLock.Lock()
		defer errLock.Unlock()

		if firstErr == nil {
			firstErr = err
		}
	}

	lock := semaphore.NewWeighted(parallel)
	calculateHash := func(j int64) {
		defer func() {
			lock.Release(1)

			wg.Done()
		}()

		hash := crc32.NewIEEE()

		if _, err := io.CopyN(hash, io.NewSectionReader(f, j*blocksize, blocksize), blocksize); err != nil && !errors.Is(err, io.EOF) {
			setErr(errors.Wrapf(err, "could not hash block %d of %s", j, file))

			return
		}

		hashes[j] = hash.Sum32()
	}

	for i := int64(0); i < blocks; i++ {
		if err := ctx.Err(); err != nil {
			setErr(err)

			break
		}

		if err := lock.Acquire(ctx, 1); err != nil {
			setErr(err)

			break
		}

		wg.Add(1)
		go calculateHash(i)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	return hashes, nil
}

// patternHash is the CRC-32 of length bytes filled with fill in native word order.
func patternHash(fill uint64, length int64) uint32 {
	word := make([]byte, 8)
	binary.NativeEndian.PutUint64(word, fill)

	hash := crc32.NewIEEE()
	for i := int64(0); i < length; i += 8 {
		n := int64(8)
		if rem := length - i; rem < n {
			n = rem
		}

		_, _ = hash.Write(word[:n])
	}

	return hash.Sum32()
}
