// Copryright (C) 2019 Yawning Angel
//
// This work is licensed under the Creative Commons Attribution-NonCommercial-
// NoDerivatives 4.0 International License. To view a copy of this license,
// visit http://creativecommons.org/licenses/by-nc-nd/4.0/ or send a letter to
// Creative Commons, PO Box 1866, Mountain View, CA 94042, USA.

package ctr

import (
	"crypto/cipher"
	"runtime"

	"golang.org/x/sync/errgroup"
)

const (
	chunkBlocks = 256
	chunkSize   = chunkBlocks * BlockSize

	// Messages shorter than this are not worth the goroutines.
	parallelThreshold = 4 * chunkSize
)

// XORKeyStreamParallel is XORKeyStream, with the keystream generation
// split into chunks that are processed concurrently.  The output is
// identical to XORKeyStream's.  The block cipher MUST be safe for
// concurrent use.
func XORKeyStreamParallel(b cipher.Block, j0 *Counter, dst, src []byte) {
	if len(src) < parallelThreshold || runtime.GOMAXPROCS(0) == 1 {
		XORKeyStream(b, j0, dst, src)
		return
	}
	if len(dst) < len(src) {
		panic("ctr: output smaller than input")
	}

	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for off, i := 0, uint32(0); off < len(src); off, i = off+chunkSize, i+1 {
		end := min(off+chunkSize, len(src))
		d, s := dst[off:end], src[off:end]

		start := *j0
		start.Add32(i * chunkBlocks)
		eg.Go(func() error {
			XORKeyStream(b, &start, d, s)
			return nil
		})
	}

	_ = eg.Wait()
}
