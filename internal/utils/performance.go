package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// OperationTimer provides a defer-friendly way to measure operation duration.
// Council evaluations are dominated by external reasoning calls, so slow
// operations are logged at warn for visibility.
//
// Usage:
//
//	defer utils.OperationTimer("evaluate_council", log)()
func OperationTimer(operation string, log zerolog.Logger) func() {
	start := time.Now()

	return func() {
		duration := time.Since(start)

		event := log.Debug()
		if duration > 30*time.Second {
			event = log.Warn()
		}
		event.
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")
	}
}
