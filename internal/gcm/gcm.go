// Copryright (C) 2019 Yawning Angel
//
// This work is licensed under the Creative Commons Attribution-NonCommercial-
// NoDerivatives 4.0 International License. To view a copy of this license,
// visit http://creativecommons.org/licenses/by-nc-nd/4.0/ or send a letter to
// Creative Commons, PO Box 1866, Mountain View, CA 94042, USA.

// Package gcm provides the portable SM4-GCM implementations.
package gcm

import (
	"crypto/cipher"
	"crypto/subtle"

	"gitlab.com/yawning/slice.git"

	"gitlab.com/yawning/sm4gcm.git/internal/api"
	"gitlab.com/yawning/sm4gcm.git/internal/ctr"
	"gitlab.com/yawning/sm4gcm.git/internal/ghash"
)

var (
	// Generic is the factory for the sequential implementation.
	Generic api.Factory = &factory{
		name:      "generic",
		keyStream: ctr.XORKeyStream,
	}

	// Parallel is the factory for the implementation that generates the
	// keystream for large messages concurrently.
	Parallel api.Factory = &factory{
		name:      "parallel",
		keyStream: ctr.XORKeyStreamParallel,
	}
)

type keyStreamFunc func(b cipher.Block, j0 *ctr.Counter, dst, src []byte)

type factory struct {
	name      string
	keyStream keyStreamFunc
}

func (f *factory) Name() string {
	return f.name
}

func (f *factory) New(b cipher.Block, legacy bool) api.Instance {
	inst := &instance{
		block:     b,
		keyStream: f.keyStream,
		legacy:    legacy,
	}
	b.Encrypt(inst.h[:], inst.h[:])

	return inst
}

type instance struct {
	block     cipher.Block
	keyStream keyStreamFunc
	h         [ghash.BlockSize]byte
	legacy    bool
}

func (inst *instance) Reset() {
	if r, ok := inst.block.(interface{ Reset() }); ok {
		r.Reset()
	}
	for i := range inst.h {
		inst.h[i] = 0
	}
}

func (inst *instance) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	ret, out := slice.ForAppend(dst, len(plaintext)+api.TagSize)
	ciphertext, tag := out[:len(plaintext)], out[len(plaintext):]

	j0 := ctr.DeriveJ0(&inst.h, nonce, inst.legacy)
	inst.keyStream(inst.block, &j0, ciphertext, plaintext)
	inst.computeTag(tag, &j0, ciphertext, additionalData)

	return ret
}

func (inst *instance) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, bool) {
	ptLen := len(ciphertext) - api.TagSize
	ciphertext, tag := ciphertext[:ptLen], ciphertext[ptLen:]

	j0 := ctr.DeriveJ0(&inst.h, nonce, inst.legacy)

	var tagCmp [api.TagSize]byte
	inst.computeTag(tagCmp[:], &j0, ciphertext, additionalData)
	if subtle.ConstantTimeCompare(tag, tagCmp[:]) != 1 {
		return nil, false
	}

	ret, out := slice.ForAppend(dst, ptLen)
	inst.keyStream(inst.block, &j0, out, ciphertext)

	return ret, true
}

// computeTag writes GHASH_H(A, C) ^ E_K(J0) to dst.
func (inst *instance) computeTag(dst []byte, j0 *ctr.Counter, ciphertext, additionalData []byte) {
	g := ghash.New(&inst.h)
	g.UpdatePadded(additionalData)
	g.UpdatePadded(ciphertext)
	s := g.Sum(uint64(len(additionalData)), uint64(len(ciphertext)))
	g.Reset()

	inst.block.Encrypt(dst, j0[:])
	subtle.XORBytes(dst, dst, s[:])
}
