// Copryright (C) 2019 Yawning Angel
//
// This work is licensed under the Creative Commons Attribution-NonCommercial-
// NoDerivatives 4.0 International License. To view a copy of this license,
// visit http://creativecommons.org/licenses/by-nc-nd/4.0/ or send a letter to
// Creative Commons, PO Box 1866, Mountain View, CA 94042, USA.

// Package ghash implements the GCM universal hash over GF(2^128).
//
// The multiplication is the bit-serial algorithm from NIST SP 800-38D
// (Algorithm 1), written without data dependent branches.  It is slow,
// but it is easy to audit.
package ghash

import "encoding/binary"

// BlockSize is the GHASH block size in bytes.
const BlockSize = 16

// r is the reduction constant for x^128 + x^7 + x^2 + x + 1.
const r = 0xe1

// Mul returns x * y in GF(2^128), using GCM's bit ordering.
func Mul(x, y *[BlockSize]byte) [BlockSize]byte {
	var z [BlockSize]byte
	v := *y

	for i := 0; i < 128; i++ {
		// z ^= v if bit i of x is set.
		m := -((x[i>>3] >> (7 - uint(i&7))) & 1)
		for j := range z {
			z[j] ^= v[j] & m
		}

		// v = v * x, reducing when a bit falls off the end.
		lsb := v[BlockSize-1] & 1
		for j := BlockSize - 1; j > 0; j-- {
			v[j] = v[j]>>1 | v[j-1]<<7
		}
		v[0] = v[0]>>1 ^ (r & -lsb)
	}

	return z
}

// Hash is a GHASH accumulator, keyed with the hash subkey H.
type Hash struct {
	h [BlockSize]byte
	y [BlockSize]byte
}

// New returns a new accumulator keyed with h.
func New(h *[BlockSize]byte) *Hash {
	return &Hash{
		h: *h,
	}
}

// UpdatePadded absorbs data, zero padding the final partial block.  Each
// call starts on a fresh block boundary.
func (g *Hash) UpdatePadded(data []byte) {
	for len(data) >= BlockSize {
		g.block(data[:BlockSize])
		data = data[BlockSize:]
	}
	if len(data) > 0 {
		var tmp [BlockSize]byte
		copy(tmp[:], data)
		g.block(tmp[:])
	}
}

// Sum absorbs the length block for the given associated data and
// ciphertext byte counts and returns the accumulator.  The Hash MUST NOT be
// updated after calling Sum.
func (g *Hash) Sum(adLen, ctLen uint64) [BlockSize]byte {
	var lenBlock [BlockSize]byte
	binary.BigEndian.PutUint64(lenBlock[0:], adLen*8)
	binary.BigEndian.PutUint64(lenBlock[8:], ctLen*8)
	g.block(lenBlock[:])

	return g.y
}

// Reset clears the hash subkey and the accumulator.
func (g *Hash) Reset() {
	for i := range g.h {
		g.h[i] = 0
		g.y[i] = 0
	}
}

func (g *Hash) block(b []byte) {
	for i := range g.y {
		g.y[i] ^= b[i]
	}
	g.y = Mul(&g.y, &g.h)
}
