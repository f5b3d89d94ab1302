// Copryright (C) 2019 Yawning Angel
//
// This work is licensed under the Creative Commons Attribution-NonCommercial-
// NoDerivatives 4.0 International License. To view a copy of this license,
// visit http://creativecommons.org/licenses/by-nc-nd/4.0/ or send a letter to
// Creative Commons, PO Box 1866, Mountain View, CA 94042, USA.

// Command sm4gcm seals and opens files with SM4-GCM, and computes Merkle
// roots over newline separated records.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// Version is set at link time.
var Version = "dev"

var logger = zerolog.Nop()

func newApp() *cli.App {
	return &cli.App{
		Name:    "sm4gcm",
		Usage:   "SM4-GCM file encryption and Merkle roots",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error, disabled)",
				Value:   "info",
				EnvVars: []string{"SM4GCM_LOG_LEVEL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			newSealCommand(),
			newOpenCommand(),
			newRootCommand(),
		},
	}
}

func setupLogger(c *cli.Context) error {
	// Errors from here on are reported at the default level.
	logger = newLogger(c.App.ErrWriter, zerolog.InfoLevel)

	lvl, err := zerolog.ParseLevel(c.String("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	logger = newLogger(c.App.ErrWriter, lvl)
	return nil
}

func newLogger(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func run(app *cli.App, args []string) int {
	if err := app.Run(args); err != nil {
		logger.Error().Err(err).Msg("sm4gcm failed")
		return 1
	}

	return 0
}

func main() {
	app := newApp()
	app.ErrWriter = os.Stderr
	os.Exit(run(app, os.Args))
}
