// Copryright (C) 2019 Yawning Angel
//
// This work is licensed under the Creative Commons Attribution-NonCommercial-
// NoDerivatives 4.0 International License. To view a copy of this license,
// visit http://creativecommons.org/licenses/by-nc-nd/4.0/ or send a letter to
// Creative Commons, PO Box 1866, Mountain View, CA 94042, USA.

// Package sm4gcm implements the SM4-GCM AEAD algorithm.
package sm4gcm

import (
	"crypto/cipher"
	"errors"
	"math"

	"gitlab.com/yawning/sm4gcm.git/internal/api"
	"gitlab.com/yawning/sm4gcm.git/internal/gcm"
	"gitlab.com/yawning/sm4gcm.git/sm4"
)

const (
	// KeySize is the SM4-GCM key size in bytes.
	KeySize = sm4.KeySize

	// NonceSize is the SM4-GCM standard nonce size in bytes.
	NonceSize = 12

	// TagSize is the SM4-GCM authentication tag size in bytes.
	TagSize = api.TagSize

	// The 32 bit counter caps a message at 2^32 - 2 blocks.
	maxTextBytes = (1<<32 - 2) * api.BlockSize
	maxADBytes   = math.MaxUint64 >> 3

	// The legacy length block only has room for 32 bit bit lengths.
	maxLegacyBytes = math.MaxUint32 >> 3
)

var (
	// ErrNoImplementations is the error returned when there are no working
	// implementations.
	ErrNoImplementations = errors.New("sm4gcm: no working implementations")

	// ErrInvalidKeySize is the error returned when the key size is invalid.
	ErrInvalidKeySize = errors.New("sm4gcm: invalid key size")

	// ErrInvalidNonceSize is the error returned/paniced when the nonce size
	// is invalid.
	ErrInvalidNonceSize = errors.New("sm4gcm: invalid nonce size")

	// ErrOpen is the error returned when the message authentication fails
	// durring an Open call.
	ErrOpen = errors.New("sm4gcm: message authentication failure")

	// ErrOversized is the error returned/paniced when the plaintext,
	// ciphertext and or additional data are beyond the maximum allowed.
	ErrOversized = errors.New("sm4gcm: data is over limit")

	chosenFactory      api.Factory
	supportedFactories []api.Factory
)

type aeadInstance struct {
	inner     api.Instance
	nonceSize int
	legacy    bool
}

func (aead *aeadInstance) NonceSize() int {
	return aead.nonceSize
}

func (aead *aeadInstance) Overhead() int {
	return TagSize
}

func (aead *aeadInstance) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	if len(nonce) != aead.nonceSize {
		panic(ErrInvalidNonceSize)
	}
	if err := CheckLimits(len(plaintext), len(additionalData), aead.legacy); err != nil {
		panic(err)
	}

	return aead.inner.Seal(dst, nonce, plaintext, additionalData)
}

func (aead *aeadInstance) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != aead.nonceSize {
		return nil, ErrInvalidNonceSize
	}
	if len(ciphertext) < TagSize {
		return nil, ErrOpen
	}
	if err := CheckLimits(len(ciphertext)-TagSize, len(additionalData), aead.legacy); err != nil {
		return nil, err
	}

	dst, ok := aead.inner.Open(dst, nonce, ciphertext, additionalData)
	if !ok {
		return nil, ErrOpen
	}

	return dst, nil
}

// Reset attempts to clear the instance of sensitive data.  The instance
// MUST NOT be used after calling Reset.
func (aead *aeadInstance) Reset() {
	aead.inner.Reset()
}

// New creates a new SM4-GCM instance with the provided key, and the
// standard 96 bit nonce.
func New(key []byte) (cipher.AEAD, error) {
	return wrapAEAD(newAEAD(key, NonceSize, sm4.Standard))
}

// NewWithNonceSize creates a new SM4-GCM instance with the provided key,
// that accepts nonces of the given length.  Nonces that are not 96 bits
// are hashed to form the initial counter, as in NIST SP 800-38D.
//
// Only use this for compatibility with existing protocols.
func NewWithNonceSize(key []byte, size int) (cipher.AEAD, error) {
	return wrapAEAD(newAEAD(key, size, sm4.Standard))
}

// NewLegacy creates a new SM4-GCM instance that is bit compatible with the
// non-standard construction some deployed code uses: the SM4 round
// function uses the key schedule's linear transform, nonces that are not
// 96 bits are truncated or zero padded to form the initial counter, and
// the associated data and message are each limited to 2^32 - 1 bits.
//
// Ciphertexts are NOT interoperable with standard SM4-GCM.
func NewLegacy(key []byte, size int) (cipher.AEAD, error) {
	return wrapAEAD(newAEAD(key, size, sm4.Legacy))
}

func wrapAEAD(aead *aeadInstance, err error) (cipher.AEAD, error) {
	if err != nil {
		return nil, err
	}

	return aead, nil
}

func newAEAD(key []byte, nonceSize int, v sm4.Variant) (*aeadInstance, error) {
	if chosenFactory == nil {
		return nil, ErrNoImplementations
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	if nonceSize <= 0 {
		return nil, ErrInvalidNonceSize
	}

	b, err := sm4.NewCipherVariant(key, v)
	if err != nil {
		return nil, err
	}

	legacy := v == sm4.Legacy
	return &aeadInstance{
		inner:     chosenFactory.New(b, legacy),
		nonceSize: nonceSize,
		legacy:    legacy,
	}, nil
}

// SealDetached encrypts and authenticates plaintext and additional data
// with standard SM4-GCM, returning the ciphertext and tag separately.  The
// nonce may be any non-empty length, but 96 bits is strongly recommended.
//
// A (key, nonce) pair MUST NOT be used to seal more than one message.
func SealDetached(key, nonce, plaintext, additionalData []byte) ([]byte, []byte, error) {
	aead, err := newAEAD(key, len(nonce), sm4.Standard)
	if err != nil {
		return nil, nil, err
	}
	defer aead.Reset()

	if err = CheckLimits(len(plaintext), len(additionalData), false); err != nil {
		return nil, nil, err
	}

	sealed := aead.inner.Seal(nil, nonce, plaintext, additionalData)
	ptLen := len(plaintext)

	return sealed[:ptLen:ptLen], sealed[ptLen:], nil
}

// OpenDetached authenticates and decrypts a ciphertext and tag produced by
// SealDetached.  The plaintext is only returned if authentication
// succeeds.
func OpenDetached(key, nonce, ciphertext, tag, additionalData []byte) ([]byte, error) {
	aead, err := newAEAD(key, len(nonce), sm4.Standard)
	if err != nil {
		return nil, err
	}
	defer aead.Reset()

	if len(tag) != TagSize {
		return nil, ErrOpen
	}

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	return aead.Open(nil, nonce, sealed, additionalData)
}

// CheckLimits returns ErrOversized if a textLen byte message with adLen
// bytes of additional data can not be sealed or opened, for the standard
// or the legacy construction.
func CheckLimits(textLen, adLen int, legacy bool) error {
	// GCM encodes the lengths as uint64s, in bits.
	tLen, aLen := uint64(textLen), uint64(adLen)
	if tLen > maxTextBytes || aLen > maxADBytes {
		return ErrOversized
	}
	if legacy && (tLen > maxLegacyBytes || aLen > maxLegacyBytes) {
		return ErrOversized
	}

	return nil
}

func init() {
	supportedFactories = append(supportedFactories, gcm.Parallel, gcm.Generic)

	if len(supportedFactories) > 0 {
		chosenFactory = supportedFactories[0]
	}
}
