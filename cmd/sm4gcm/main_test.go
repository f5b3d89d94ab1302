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

package main

import (
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	sm4gcm "gitlab.com/yawning/sm4gcm.git"
	"gitlab.com/yawning/sm4gcm.git/merkle"
)

const testKey = "0123456789abcdeffedcba9876543210"

func runApp(t *testing.T, stdin []byte, args ...string) ([]byte, error) {
	app := newApp()
	app.Reader = bytes.NewReader(stdin)
	app.ErrWriter = io.Discard

	var stdout bytes.Buffer
	app.Writer = &stdout

	err := app.Run(append([]string{"sm4gcm", "--log-level", "debug"}, args...))
	return stdout.Bytes(), err
}

func TestSealOpen(t *testing.T) {
	for _, legacy := range []bool{false, true} {
		name := "Standard"
		if legacy {
			name = "Legacy"
		}
		t.Run(name, func(t *testing.T) {
			require := require.New(t)

			dir := t.TempDir()
			ptPath := filepath.Join(dir, "plaintext")
			ctPath := filepath.Join(dir, "sealed")
			outPath := filepath.Join(dir, "opened")

			plaintext := []byte("the quick brown fox jumps over the lazy dog\n")
			require.NoError(os.WriteFile(ptPath, plaintext, 0o600), "WriteFile()")

			args := []string{"--key", testKey, "--aad", "header"}
			if legacy {
				args = append(args, "--legacy")
			}

			_, err := runApp(t, nil, append([]string{"seal", "--in", ptPath, "--out", ctPath}, args...)...)
			require.NoError(err, "seal")

			sealed, err := os.ReadFile(ctPath)
			require.NoError(err, "ReadFile(sealed)")
			require.Len(sealed, sm4gcm.NonceSize+len(plaintext)+sm4gcm.TagSize, "seal - output length")

			_, err = runApp(t, nil, append([]string{"open", "--in", ctPath, "--out", outPath}, args...)...)
			require.NoError(err, "open")

			opened, err := os.ReadFile(outPath)
			require.NoError(err, "ReadFile(opened)")
			require.Equal(plaintext, opened, "open - round trips")

			// Wrong associated data.
			_, err = runApp(t, nil, "open", "--key", testKey, "--aad", "other", "--in", ctPath)
			require.ErrorIs(err, sm4gcm.ErrOpen, "open - wrong aad")

			// Truncated input.
			_, err = runApp(t, sealed[:10], "open", "--key", testKey)
			require.ErrorIs(err, sm4gcm.ErrOpen, "open - truncated")
		})
	}
}

func TestRunErrors(t *testing.T) {
	require := require.New(t)

	newTestApp := func(stdin []byte) (*cli.App, *bytes.Buffer) {
		var stderr bytes.Buffer
		app := newApp()
		app.Reader = bytes.NewReader(stdin)
		app.Writer = io.Discard
		app.ErrWriter = &stderr
		return app, &stderr
	}

	app, stderr := newTestApp(nil)
	require.Equal(1, run(app, []string{"sm4gcm", "--log-level", "bogus", "root"}), "run() - bad log level")
	require.Contains(stderr.String(), "invalid log level", "run() - bad log level is reported")

	sealed, err := runApp(t, []byte("payload"), "seal", "--key", testKey)
	require.NoError(err, "seal")

	app, stderr = newTestApp(sealed)
	require.Equal(1, run(app, []string{"sm4gcm", "open", "--key", testKey, "--aad", "other"}), "run() - open failure")
	require.Equal(1, strings.Count(stderr.String(), "message authentication failure"), "run() - open failure logged once")

	app, _ = newTestApp([]byte("payload"))
	require.Equal(0, run(app, []string{"sm4gcm", "seal", "--key", testKey, "--legacy"}), "run() - success")
}

func TestSealStdio(t *testing.T) {
	require := require.New(t)

	nonce := "000102030405060708090a0b"
	plaintext := []byte("stdin to stdout")

	sealed, err := runApp(t, plaintext, "seal", "--key", testKey, "--nonce", nonce)
	require.NoError(err, "seal")

	key, _ := hex.DecodeString(testKey)
	n, _ := hex.DecodeString(nonce)
	ct, tag, err := sm4gcm.SealDetached(key, n, plaintext, nil)
	require.NoError(err, "SealDetached()")
	require.Equal(append(append(n, ct...), tag...), sealed, "seal - stdout format")

	opened, err := runApp(t, sealed, "open", "--key", testKey)
	require.NoError(err, "open")
	require.Equal(plaintext, opened, "open - stdout")

	_, err = runApp(t, plaintext, "seal", "--key", testKey, "--nonce", "0001")
	require.ErrorIs(err, sm4gcm.ErrInvalidNonceSize, "seal - short nonce")
	_, err = runApp(t, plaintext, "seal", "--key", "00")
	require.ErrorIs(err, sm4gcm.ErrInvalidKeySize, "seal - short key")
	_, err = runApp(t, plaintext, "seal", "--key", "zz")
	require.Error(err, "seal - bad hex key")
}

func TestRoot(t *testing.T) {
	require := require.New(t)

	lines := []string{"leaf-data-2", "leaf-data-0", "leaf-data-1"}
	input := []byte(strings.Join(lines, "\n") + "\n")

	var leaves [][]byte
	for _, l := range lines {
		leaves = append(leaves, []byte(l))
	}

	for name, h := range hashFuncs {
		out, err := runApp(t, input, "root", "--hash", name)
		require.NoError(err, "root --hash %s", name)
		require.Equal(hex.EncodeToString(merkle.New(h, leaves).Root())+"\n", string(out), "root --hash %s", name)

		out, err = runApp(t, input, "root", "--hash", name, "--sorted")
		require.NoError(err, "root --hash %s --sorted", name)
		require.Equal(hex.EncodeToString(merkle.NewSorted(h, leaves).Root())+"\n", string(out), "root --hash %s --sorted", name)
	}

	_, err := runApp(t, input, "root", "--hash", "md5")
	require.Error(err, "root - unknown hash")
}
