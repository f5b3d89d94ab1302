// Copryright (C) 2019 Yawning Angel
//
// This work is licensed under the Creative Commons Attribution-NonCommercial-
// NoDerivatives 4.0 International License. To view a copy of this license,
// visit http://creativecommons.org/licenses/by-nc-nd/4.0/ or send a letter to
// Creative Commons, PO Box 1866, Mountain View, CA 94042, USA.

// Package ctr implements the GCM counter mode keystream.
package ctr

import (
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"

	"gitlab.com/yawning/sm4gcm.git/internal/ghash"
)

// BlockSize is the counter block size in bytes.
const BlockSize = 16

// StandardNonceSize is the nonce size that maps directly onto J0.
const StandardNonceSize = 12

// Counter is a counter block.  The final 4 bytes are a big endian counter
// that wraps modulo 2^32, the first 12 bytes are never modified.
type Counter [BlockSize]byte

// Inc32 increments the counter by one.
func (c *Counter) Inc32() {
	c.Add32(1)
}

// Add32 adds n to the counter.
func (c *Counter) Add32(n uint32) {
	binary.BigEndian.PutUint32(c[12:], binary.BigEndian.Uint32(c[12:])+n)
}

// DeriveJ0 derives the pre-counter block J0 from a non-empty nonce.
//
// 96 bit nonces are always nonce || 0x00000001.  Otherwise J0 is the GHASH
// of the nonce under h, or when legacy is set, the nonce truncated or zero
// padded to a block.
func DeriveJ0(h *[ghash.BlockSize]byte, nonce []byte, legacy bool) Counter {
	var j0 Counter

	switch {
	case len(nonce) == StandardNonceSize:
		copy(j0[:], nonce)
		j0[BlockSize-1] = 1
	case legacy:
		copy(j0[:], nonce)
	default:
		g := ghash.New(h)
		g.UpdatePadded(nonce)
		j0 = g.Sum(0, uint64(len(nonce)))
		g.Reset()
	}

	return j0
}

// XORKeyStream XORs src with the keystream starting at inc32(*j0) and
// writes the result to dst.  Dst and src may overlap entirely or not at
// all.  Encryption and decryption are the same operation.
func XORKeyStream(b cipher.Block, j0 *Counter, dst, src []byte) {
	if len(dst) < len(src) {
		panic("ctr: output smaller than input")
	}

	var ks [BlockSize]byte
	ctr := *j0
	for len(src) > 0 {
		ctr.Inc32()
		b.Encrypt(ks[:], ctr[:])

		// The final partial block uses a truncated keystream block.
		n := subtle.XORBytes(dst, src, ks[:])
		dst, src = dst[n:], src[n:]
	}
}
