// Package logging configures the process-wide zerolog logger: one
// timestamped, leveled logger written to stderr, set up the same way the
// HVAC controller's logging package builds its MultiLevelWriter, generalized
// from a single log file to stderr since the daemon runs under systemd and
// relies on the journal for persistence rather than a file of its own.
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global zerolog logger to the given level, with a timestamp
// field on every entry. Call once at startup before any other package logs.
func Init(level zerolog.Level) {
	writer := zerolog.MultiLevelWriter(os.Stderr)
	log.Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()

	log.Debug().Str("level", level.String()).Msg("logging initialized")
}
