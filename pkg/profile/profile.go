package profile

import (
	"os"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultOutputPath is where the report is written unless overridden by the
// CALLWATCH_OUTPUT environment variable.
const DefaultOutputPath = "dangerous_api_profile.json"

// Environment variables honored by the runtime.
const (
	// EnvOutput overrides the report output path.
	EnvOutput = "CALLWATCH_OUTPUT"

	// EnvCapacity overrides the default table capacity.
	EnvCapacity = "CALLWATCH_CAPACITY"
)

var (
	initOnce     sync.Once
	flushOnce    sync.Once
	defaultTable *Table

	loggerMu sync.Mutex
	logger   = zerolog.New(os.Stderr).With().Timestamp().Str("component", "callwatch-runtime").Logger()
)

// SetLogger replaces the runtime's operational logger. Report output itself
// always goes to the report file and stdout.
func SetLogger(l zerolog.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

func runtimeLogger() zerolog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	return logger
}

// Default returns the process-wide table, creating it on first use.
func Default() *Table {
	initOnce.Do(func() {
		capacity := DefaultCapacity
		if v := os.Getenv(EnvCapacity); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				capacity = n
			}
		}
		defaultTable = NewTable(capacity)
	})
	return defaultTable
}

// Log is the entry point invoked by instrumented call sites. It records one
// call of api from caller in the process-wide table. Safe for concurrent use
// from any number of goroutines with no caller-side coordination.
func Log(api, caller string) {
	Default().Record(api, caller)
}

// OutputPath returns the report destination, honoring EnvOutput.
func OutputPath() string {
	if path := os.Getenv(EnvOutput); path != "" {
		return path
	}
	return DefaultOutputPath
}

// Flush writes the report and console summary exactly once; later calls are
// no-ops. The instrumenter arranges for this to run when main returns, so it
// does not fire on crash or forced termination.
//
// Flush is not synchronized against Record calls still executing on other
// goroutines during shutdown; such calls may or may not be included.
func Flush() {
	flushOnce.Do(flush)
}

func flush() {
	r := BuildReport(Default().Snapshot())
	path := OutputPath()
	l := runtimeLogger()

	if err := WriteReportFile(path, r); err != nil {
		// Non-fatal: surface the error and abandon the report for this run.
		l.Error().Err(err).Str("path", path).Msg("could not write profile report")
		return
	}

	if dropped := Default().Dropped(); dropped > 0 {
		l.Warn().Uint64("dropped", dropped).Msg("observations dropped at table capacity")
	}

	WriteConsoleSummary(os.Stdout, r, path)
}
