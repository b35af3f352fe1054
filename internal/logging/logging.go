package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. Level comes from
// DAITCHAT_LOG_LEVEL when set; the pretty console writer is only used on
// a terminal-ish stderr, JSON otherwise.
func Setup(pretty bool) {
	level := zerolog.InfoLevel
	if raw := os.Getenv("DAITCHAT_LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		})
	}
}
