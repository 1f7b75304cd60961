// Package logging provides the process-wide structured logger used at the
// ambient boundary: startup, configuration load, chain health probes,
// nonce-reservation warnings, background cache refresh, and debug-level
// request/settlement traces in the gin middleware. The facilitator core and
// the scheme mechanisms do not import this package — they stay silent,
// error-return only, per the facilitator core's propagation policy.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// L is the process-wide logger, defaulting to human-readable console output
// at info level. Replace it via Init at process startup.
var L = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
	With().Timestamp().Logger()

// Init reconfigures L to write JSON lines to w at the given level, the
// shape production deployments want (the console writer above is for local
// development, mirroring CedrosPay-server's own dev/prod logger split).
func Init(w io.Writer, level zerolog.Level) {
	L = zerolog.New(w).Level(level).With().Timestamp().Logger()
}
