// Copryright (C) 2019 Yawning Angel
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package gcm

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/yawning/sm4gcm.git/internal/api"
	"gitlab.com/yawning/sm4gcm.git/sm4"
)

var factories = []api.Factory{Generic, Parallel}

func newInstance(t *testing.T, f api.Factory, key []byte, v sm4.Variant) api.Instance {
	b, err := sm4.NewCipherVariant(key, v)
	require.NoError(t, err, "sm4.NewCipherVariant()")
	return f.New(b, v == sm4.Legacy)
}

func TestFactoriesAgree(t *testing.T) {
	require := require.New(t)

	key := make([]byte, sm4.KeySize)
	nonce := make([]byte, 12)
	aad := make([]byte, 33)
	plaintext := make([]byte, 50000)
	for _, b := range [][]byte{key, nonce, aad, plaintext} {
		_, _ = rand.Read(b)
	}

	for _, v := range []sm4.Variant{sm4.Standard, sm4.Legacy} {
		var sealed [][]byte
		for _, f := range factories {
			inst := newInstance(t, f, key, v)
			s := inst.Seal(nil, nonce, plaintext, aad)
			require.Len(s, len(plaintext)+api.TagSize, "Seal(%s, %v) - length", f.Name(), v)
			sealed = append(sealed, s)
		}
		require.Equal(sealed[0], sealed[1], "Seal(%v) - factories agree", v)
	}
}

func TestOpenVerifiesFirst(t *testing.T) {
	for _, f := range factories {
		t.Run(f.Name(), func(t *testing.T) {
			require := require.New(t)

			key := make([]byte, sm4.KeySize)
			nonce := make([]byte, 8)
			plaintext := make([]byte, 64)
			_, _ = rand.Read(key)
			_, _ = rand.Read(nonce)
			_, _ = rand.Read(plaintext)

			inst := newInstance(t, f, key, sm4.Standard)
			sealed := inst.Seal(nil, nonce, plaintext, nil)

			opened, ok := inst.Open(nil, nonce, sealed, nil)
			require.True(ok, "Open()")
			require.Equal(plaintext, opened, "Open() - round trips")

			sealed[len(sealed)-1] ^= 0x01
			dst := make([]byte, 0, len(plaintext))
			opened, ok = inst.Open(dst, nonce, sealed, nil)
			require.False(ok, "Open() - bad tag")
			require.Nil(opened, "Open() - bad tag, no output")
			require.Equal(make([]byte, len(plaintext)), dst[:len(plaintext)], "Open() - bad tag, dst untouched")
		})
	}
}

func TestReset(t *testing.T) {
	require := require.New(t)

	key := make([]byte, sm4.KeySize)
	_, _ = rand.Read(key)

	b, err := sm4.NewCipherVariant(key, sm4.Standard)
	require.NoError(err, "sm4.NewCipherVariant()")

	inst := Generic.New(b, false).(*instance)
	require.NotEqual([16]byte{}, inst.h, "New() - H derived")

	var zero, before, after [16]byte
	b.Encrypt(before[:], zero[:])

	inst.Reset()
	require.Equal([16]byte{}, inst.h, "Reset() - H cleared")

	b.Encrypt(after[:], zero[:])
	require.NotEqual(before, after, "Reset() - key schedule cleared")
}
