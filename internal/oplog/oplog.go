package oplog

import (
	"aibook/internal/logging"
	"aibook/internal/metrics"
)

// Run dispatches a user intent with metrics and logging around it.
func Run(intent string, f func() error) error {
	metrics.IncIntent(intent)
	err := f()
	if err != nil {
		metrics.IncIntentError(intent)
		logging.Error(intent+"_error", map[string]any{"error": err.Error()})
	} else {
		logging.Info(intent+"_ok", nil)
	}
	return err
}
