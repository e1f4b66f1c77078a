package utils

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger returns the logger for one pipeline component. Level comes from
// KESTREL_LOG_LEVEL (debug, info, warn, error); the default is info.
// Output goes to stderr so proof bytes on stdout stay clean.
func NewLogger(component string) zerolog.Logger {
	level := zerolog.InfoLevel
	if raw := os.Getenv("KESTREL_LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}
	return zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
