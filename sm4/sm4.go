// Copryright (C) 2019 Yawning Angel
//
// This work is licensed under the Creative Commons Attribution-NonCommercial-
// NoDerivatives 4.0 International License. To view a copy of this license,
// visit http://creativecommons.org/licenses/by-nc-nd/4.0/ or send a letter to
// Creative Commons, PO Box 1866, Mountain View, CA 94042, USA.

// Package sm4 implements the SM4 block cipher (GB/T 32907-2016).
//
// Two round function variants are provided.  Standard is the published
// algorithm and interoperates with every other SM4 implementation.  Legacy
// reuses the key schedule's linear transform (rotations 13 and 23) inside
// the round function, which is what some deployed code does; ciphertexts
// produced by the two variants are not compatible.
package sm4

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"math/bits"
)

const (
	// KeySize is the SM4 key size in bytes.
	KeySize = 16

	// BlockSize is the SM4 block size in bytes.
	BlockSize = 16

	// Rounds is the number of SM4 rounds, and the length of the key
	// schedule.
	Rounds = 32
)

var (
	// ErrInvalidKeySize is the error returned when the key size is invalid.
	ErrInvalidKeySize = errors.New("sm4: invalid key size")

	// ErrInvalidBlockSize is the error returned when a one-shot block
	// operation is handed something other than a single block.
	ErrInvalidBlockSize = errors.New("sm4: invalid block size")
)

// Variant selects the round function's linear transform.
type Variant int

const (
	// Standard is GB/T 32907-2016 SM4.
	Standard Variant = iota

	// Legacy uses L' (the key schedule transform) in the round function.
	Legacy
)

func (v Variant) String() string {
	switch v {
	case Standard:
		return "standard"
	case Legacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// RoundKeys is an expanded SM4 key schedule.
type RoundKeys [Rounds]uint32

// ExpandKey derives the round key schedule from a 128-bit master key.
// The schedule is identical for every Variant.
func ExpandKey(key []byte) (RoundKeys, error) {
	var rk RoundKeys
	if len(key) != KeySize {
		return rk, ErrInvalidKeySize
	}
	expandKey(&rk, key)

	return rk, nil
}

func expandKey(rk *RoundKeys, key []byte) {
	var k [4]uint32
	for i := range k {
		k[i] = binary.BigEndian.Uint32(key[4*i:]) ^ fk[i]
	}

	k0, k1, k2, k3 := k[0], k[1], k[2], k[3]
	for i := 0; i < Rounds; i++ {
		k0, k1, k2, k3 = k1, k2, k3, k0^tPrime(k1^k2^k3^ck[i])
		rk[i] = k3
	}
}

func tau(a uint32) uint32 {
	return uint32(sbox[a>>24])<<24 |
		uint32(sbox[(a>>16)&0xff])<<16 |
		uint32(sbox[(a>>8)&0xff])<<8 |
		uint32(sbox[a&0xff])
}

// l is the round function's linear transform.
func l(b uint32) uint32 {
	return b ^ bits.RotateLeft32(b, 2) ^ bits.RotateLeft32(b, 10) ^ bits.RotateLeft32(b, 18) ^ bits.RotateLeft32(b, 24)
}

// lPrime is the key schedule's linear transform.
func lPrime(b uint32) uint32 {
	return b ^ bits.RotateLeft32(b, 13) ^ bits.RotateLeft32(b, 23)
}

func t(a uint32) uint32 {
	return l(tau(a))
}

func tPrime(a uint32) uint32 {
	return lPrime(tau(a))
}

// Cipher is a keyed SM4 instance.  It is safe for concurrent use.
type Cipher struct {
	rk      RoundKeys
	variant Variant
	round   func(uint32) uint32
}

// BlockSize returns the SM4 block size in bytes.
func (c *Cipher) BlockSize() int {
	return BlockSize
}

// Encrypt encrypts the first block in src into dst.  Dst and src may
// overlap entirely or not at all.
func (c *Cipher) Encrypt(dst, src []byte) {
	c.crypt(dst, src, false)
}

// Decrypt decrypts the first block in src into dst.  Dst and src may
// overlap entirely or not at all.
func (c *Cipher) Decrypt(dst, src []byte) {
	c.crypt(dst, src, true)
}

// Variant returns the round function variant.
func (c *Cipher) Variant() Variant {
	return c.variant
}

// Reset clears the key schedule.  The instance MUST NOT be used after
// calling Reset.
func (c *Cipher) Reset() {
	for i := range c.rk {
		c.rk[i] = 0
	}
}

func (c *Cipher) crypt(dst, src []byte, decrypt bool) {
	if len(src) < BlockSize {
		panic("sm4: input not full block")
	}
	if len(dst) < BlockSize {
		panic("sm4: output not full block")
	}

	x0 := binary.BigEndian.Uint32(src[0:])
	x1 := binary.BigEndian.Uint32(src[4:])
	x2 := binary.BigEndian.Uint32(src[8:])
	x3 := binary.BigEndian.Uint32(src[12:])

	for i := 0; i < Rounds; i++ {
		k := c.rk[i]
		if decrypt {
			k = c.rk[Rounds-1-i]
		}
		x0, x1, x2, x3 = x1, x2, x3, x0^c.round(x1^x2^x3^k)
	}

	// R: reverse the final four words.
	binary.BigEndian.PutUint32(dst[0:], x3)
	binary.BigEndian.PutUint32(dst[4:], x2)
	binary.BigEndian.PutUint32(dst[8:], x1)
	binary.BigEndian.PutUint32(dst[12:], x0)
}

// NewCipher creates a new Standard SM4 cipher.Block with the provided key.
func NewCipher(key []byte) (cipher.Block, error) {
	c, err := NewCipherVariant(key, Standard)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// NewCipherVariant creates a new SM4 instance using the specified round
// function variant.
func NewCipherVariant(key []byte, v Variant) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	c := &Cipher{
		variant: v,
	}
	switch v {
	case Standard:
		c.round = t
	case Legacy:
		c.round = tPrime
	default:
		return nil, errors.New("sm4: unknown variant")
	}
	expandKey(&c.rk, key)

	return c, nil
}

// EncryptBlock encrypts a single block with Standard SM4.
func EncryptBlock(key, block []byte) ([]byte, error) {
	return oneShot(key, block, false)
}

// DecryptBlock decrypts a single block with Standard SM4.
func DecryptBlock(key, block []byte) ([]byte, error) {
	return oneShot(key, block, true)
}

func oneShot(key, block []byte, decrypt bool) ([]byte, error) {
	if len(block) != BlockSize {
		return nil, ErrInvalidBlockSize
	}
	c, err := NewCipherVariant(key, Standard)
	if err != nil {
		return nil, err
	}
	defer c.Reset()

	dst := make([]byte, BlockSize)
	c.crypt(dst, block, decrypt)

	return dst, nil
}
