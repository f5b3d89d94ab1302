// Copryright (C) 2019 Yawning Angel
//
// This work is licensed under the Creative Commons Attribution-NonCommercial-
// NoDerivatives 4.0 International License. To view a copy of this license,
// visit http://creativecommons.org/licenses/by-nc-nd/4.0/ or send a letter to
// Creative Commons, PO Box 1866, Mountain View, CA 94042, USA.

package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"gitlab.com/yawning/sm4gcm.git/merkle"
)

var hashFuncs = map[string]merkle.HashFunc{
	"sm3":     merkle.SM3,
	"sha256":  merkle.SHA256,
	"blake2b": merkle.BLAKE2b256,
	"sha3":    merkle.SHA3_256,
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:      "root",
		Usage:     "print the Merkle root of a file's lines",
		UsageText: "root [--hash sm3|sha256|blake2b|sha3] [--sorted] [--in FILE]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "in",
				Aliases: []string{"i"},
				Usage:   "input file, - for stdin",
				Value:   "-",
			},
			&cli.StringFlag{
				Name:    "hash",
				Usage:   "hash function: " + strings.Join(hashNames(), ", "),
				Value:   "sm3",
				EnvVars: []string{"SM4GCM_HASH"},
			},
			&cli.BoolFlag{
				Name:  "sorted",
				Usage: "sort and de-duplicate the lines first",
			},
		},
		Action: rootCmd,
	}
}

func hashNames() []string {
	names := make([]string, 0, len(hashFuncs))
	for k := range hashFuncs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func rootCmd(c *cli.Context) error {
	h, ok := hashFuncs[c.String("hash")]
	if !ok {
		return fmt.Errorf("unknown hash function: %q", c.String("hash"))
	}

	b, err := readInput(c, c.String("in"))
	if err != nil {
		return err
	}

	var leaves [][]byte
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(nil, len(b)+1)
	for sc.Scan() {
		leaves = append(leaves, append([]byte{}, sc.Bytes()...))
	}
	if err = sc.Err(); err != nil {
		return fmt.Errorf("failed to split input: %w", err)
	}

	var t *merkle.Tree
	if c.Bool("sorted") {
		t = merkle.NewSorted(h, leaves)
	} else {
		t = merkle.New(h, leaves)
	}

	logger.Info().
		Int("leaves", t.Len()).
		Str("hash", c.String("hash")).
		Bool("sorted", c.Bool("sorted")).
		Msg("built tree")

	_, err = fmt.Fprintln(c.App.Writer, hex.EncodeToString(t.Root()))
	return err
}
