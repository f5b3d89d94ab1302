// Copryright (C) 2019 Yawning Angel
//
// This work is licensed under the Creative Commons Attribution-NonCommercial-
// NoDerivatives 4.0 International License. To view a copy of this license,
// visit http://creativecommons.org/licenses/by-nc-nd/4.0/ or send a letter to
// Creative Commons, PO Box 1866, Mountain View, CA 94042, USA.

// Package api provides the SM4-GCM implementation abstract interface.
package api

import "crypto/cipher"

const (
	// BlockSize is the SM4 block size in bytes.
	BlockSize = 16

	// TagSize is the authentication tag size in bytes.
	TagSize = 16
)

// Factory is a Instance factory.
type Factory interface {
	// Name returns the name of the implementation.
	Name() string

	// New constructs a new keyed instance around the block cipher.  If
	// legacy is set, nonces that are not 96 bits are zero padded or
	// truncated to form J0, instead of being hashed.
	New(b cipher.Block, legacy bool) Instance
}

// Instance is a keyed SM4-GCM instance.
type Instance interface {
	// Reset attempts to clear the instance of sensitive data.
	Reset()

	// Seal encrypts and authenticates plaintext and additional data and
	// appends the result to dst, returning the updated slice.
	Seal(dst, nonce, plaintext, additionalData []byte) []byte

	// Open authenticates ciphertext and the additional data and, if
	// successful, decrypts the ciphertext and appends the resulting
	// plaintext to dst.  Nothing is decrypted if authentication fails.
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, bool)
}
