// Copryright (C) 2019 Yawning Angel
//
// This work is licensed under the Creative Commons Attribution-NonCommercial-
// NoDerivatives 4.0 International License. To view a copy of this license,
// visit http://creativecommons.org/licenses/by-nc-nd/4.0/ or send a letter to
// Creative Commons, PO Box 1866, Mountain View, CA 94042, USA.

package main

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	sm4gcm "gitlab.com/yawning/sm4gcm.git"
)

func aeadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "key",
			Usage:    "hex encoded 128 bit key",
			EnvVars:  []string{"SM4GCM_KEY"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "in",
			Aliases: []string{"i"},
			Usage:   "input file, - for stdin",
			Value:   "-",
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "output file, - for stdout",
			Value:   "-",
		},
		&cli.StringFlag{
			Name:  "aad",
			Usage: "associated data to authenticate",
		},
		&cli.BoolFlag{
			Name:    "legacy",
			Usage:   "use the legacy, non-interoperable SM4-GCM variant",
			EnvVars: []string{"SM4GCM_LEGACY"},
		},
	}
}

func newSealCommand() *cli.Command {
	return &cli.Command{
		Name:      "seal",
		Usage:     "encrypt and authenticate a file",
		UsageText: "seal --key KEY [--nonce NONCE] [--aad AAD] [--in FILE] [--out FILE]",
		Description: `writes nonce || ciphertext || tag.  A random nonce is used unless
one is given; a nonce MUST NOT be reused with the same key.`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "nonce",
				Usage: "hex encoded 96 bit nonce (default: random)",
			},
		}, aeadFlags()...),
		Action: sealCmd,
	}
}

func newOpenCommand() *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "authenticate and decrypt a file written by seal",
		UsageText: "open --key KEY [--aad AAD] [--in FILE] [--out FILE]",
		Flags:     aeadFlags(),
		Action:    openCmd,
	}
}

func newAEAD(c *cli.Context) (cipher.AEAD, error) {
	key, err := hex.DecodeString(c.String("key"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}

	var aead cipher.AEAD
	if c.Bool("legacy") {
		aead, err = sm4gcm.NewLegacy(key, sm4gcm.NonceSize)
	} else {
		aead, err = sm4gcm.New(key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	return aead, nil
}

func sealCmd(c *cli.Context) error {
	aead, err := newAEAD(c)
	if err != nil {
		return err
	}

	nonce := make([]byte, sm4gcm.NonceSize)
	if c.IsSet("nonce") {
		if nonce, err = hex.DecodeString(c.String("nonce")); err != nil {
			return fmt.Errorf("failed to decode nonce: %w", err)
		}
		if len(nonce) != sm4gcm.NonceSize {
			return fmt.Errorf("nonce must be %d bytes: %w", sm4gcm.NonceSize, sm4gcm.ErrInvalidNonceSize)
		}
	} else if _, err = rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	plaintext, err := readInput(c, c.String("in"))
	if err != nil {
		return err
	}

	aad := []byte(c.String("aad"))
	if err = sm4gcm.CheckLimits(len(plaintext), len(aad), c.Bool("legacy")); err != nil {
		return fmt.Errorf("failed to seal %d bytes: %w", len(plaintext), err)
	}

	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, aad)

	if err = writeOutput(c, c.String("out"), out); err != nil {
		return err
	}

	logger.Info().
		Int("plaintext_bytes", len(plaintext)).
		Bool("legacy", c.Bool("legacy")).
		Msg("sealed")
	return nil
}

func openCmd(c *cli.Context) error {
	aead, err := newAEAD(c)
	if err != nil {
		return err
	}

	sealed, err := readInput(c, c.String("in"))
	if err != nil {
		return err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return fmt.Errorf("input too short: %w", sm4gcm.ErrOpen)
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(c.String("aad")))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", c.String("in"), err)
	}

	if err = writeOutput(c, c.String("out"), plaintext); err != nil {
		return err
	}

	logger.Info().Int("plaintext_bytes", len(plaintext)).Msg("opened")
	return nil
}

func readInput(c *cli.Context, path string) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(c.App.Reader)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input %s: %w", path, err)
	}

	logger.Debug().Str("path", path).Int("bytes", len(b)).Msg("read input")
	return b, nil
}

func writeOutput(c *cli.Context, path string, b []byte) error {
	var err error
	if path == "-" {
		_, err = c.App.Writer.Write(b)
	} else {
		err = os.WriteFile(path, b, 0o600)
	}
	if err != nil {
		return fmt.Errorf("failed to write output %s: %w", path, err)
	}

	logger.Debug().Str("path", path).Int("bytes", len(b)).Msg("wrote output")
	return nil
}
