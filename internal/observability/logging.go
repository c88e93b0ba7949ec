package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/emogotchi/emogotchi-backend/internal/sysutil"
)

// SetupLogger configures the global zerolog logger: level, JSON or console
// output, and a "service" field naming the process role. A nil w writes to
// stderr.
func SetupLogger(w io.Writer, level string, pretty bool, role Role) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	sysutil.SetLogLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Str("service", string(role)).Logger()
	return log.Logger
}
