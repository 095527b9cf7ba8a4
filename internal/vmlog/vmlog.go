// Package vmlog configures the structured logger used by the VM's
// failure path and by the program container's teardown/collection
// diagnostics. It exists so pkg/vm and pkg/program don't each hand-roll
// their own zerolog setup, and so cmd/cinder can swap in a
// console-pretty writer for interactive use without the library packages
// caring.
package vmlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// base is the process-wide logger. Library code should call L() rather
// than holding onto a *zerolog.Logger, so a call to Configure after
// library initialization still takes effect.
var base = zerolog.New(io.Discard).With().Timestamp().Logger()

// Configure points the package logger at w, encoding output with the
// given level. cmd/cinder calls this once during startup; tests leave it
// discarding output.
func Configure(w io.Writer, level zerolog.Level) {
	base = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ConfigureConsole is a convenience wrapper around Configure for
// interactive CLI use: human-readable, colored, writing to os.Stderr.
func ConfigureConsole(level zerolog.Level) {
	Configure(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}, level)
}

// L returns the current package logger.
func L() *zerolog.Logger { return &base }
