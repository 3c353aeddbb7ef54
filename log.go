package gofib

import (
	"os"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stderr).With().Timestamp().Str("pkg", "gofib").Logger()

// SetLogger replaces the package logger. Call before any reactor runs;
// the logger is read without synchronization afterwards.
func SetLogger(l zerolog.Logger) {
	logger = l
}
