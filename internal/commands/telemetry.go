package commands

import (
	"context"
	"time"

	command "github.com/goliatone/go-command"

	"github.com/goliatone/go-postindex/internal/logging"
	"github.com/goliatone/go-postindex/pkg/interfaces"
)

// TelemetryStatus classifies a command outcome.
type TelemetryStatus string

const (
	TelemetryStatusSuccess      TelemetryStatus = "success"
	TelemetryStatusFailed       TelemetryStatus = "failed"
	TelemetryStatusContextError TelemetryStatus = "context_error"
)

// TelemetryInfo describes one command execution.
type TelemetryInfo struct {
	Command   string
	Operation string
	Fields    map[string]any
	Duration  time.Duration
	Error     error
	Status    TelemetryStatus
}

// Telemetry is invoked after each command execution.
type Telemetry[T command.Message] func(ctx context.Context, msg T, info TelemetryInfo)

// LogTelemetry returns a Telemetry that logs outcomes with their duration.
func LogTelemetry[T command.Message](logger interfaces.Logger) Telemetry[T] {
	if logger == nil {
		logger = logging.NoOp()
	}
	return func(_ context.Context, _ T, info TelemetryInfo) {
		entry := logging.WithFields(logger, info.Fields)
		switch info.Status {
		case TelemetryStatusSuccess:
			entry.Info("command.execute.success", "duration", info.Duration)
		case TelemetryStatusContextError:
			entry.Error("command.execute.context_error", "duration", info.Duration, "error", info.Error)
		default:
			entry.Error("command.execute.failed", "duration", info.Duration, "error", info.Error)
		}
	}
}
