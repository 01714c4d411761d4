// Package logging provides the engine's tagged, leveled loggers.
//
// Every subsystem gets a zerolog logger carrying a "component" field set
// to a bracketed tag (e.g. "[DECODER]"), matching the message style the
// rest of this codebase's lineage uses, while gaining zerolog's
// warn/error/info level discrimination.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.Mutex
	debug  bool
	output io.Writer = os.Stderr
)

// SetDebug toggles whether Debug-level messages are emitted by loggers
// created after this call; loggers already returned by For keep their
// level.
func SetDebug(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	debug = enabled
}

// SetOutput redirects all loggers created after this call to w. Tests
// use this to capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// For returns a logger tagged with the given component name, e.g.
// logging.For("DECODER").Warn().Msg("skipping corrupt packet")
func For(component string) zerolog.Logger {
	mu.Lock()
	w := output
	dbg := debug
	mu.Unlock()

	level := zerolog.InfoLevel
	if dbg {
		level = zerolog.DebugLevel
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", "["+component+"]").
		Logger().
		Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true})
}
