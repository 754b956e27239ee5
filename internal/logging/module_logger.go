package logging

import (
	"context"
	"maps"
	"strings"

	"github.com/goliatone/go-postindex/pkg/interfaces"
)

const (
	rootModule      = "postindex"
	storeModule     = "postindex.store"
	reconcileModule = "postindex.reconcile"
	schedulerModule = "postindex.scheduler"
	queryModule     = "postindex.query"
	httpModule      = "postindex.http"
)

const (
	fieldDocument = "document"
	fieldAction   = "action"
)

// ModuleLogger returns a module-scoped logger, defaulting to a no-op
// implementation when no provider is supplied. The module identifier is
// attached as a structured field so entries can be filtered by subsystem.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}
	return WithFields(logger, map[string]any{"module": module})
}

// RootLogger returns the top-level module logger.
func RootLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, rootModule)
}

// StoreLogger returns the logger namespace reserved for the document store.
func StoreLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, storeModule)
}

// ReconcileLogger returns the logger namespace reserved for reconciliation passes.
func ReconcileLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, reconcileModule)
}

// SchedulerLogger returns the logger namespace reserved for the sync scheduler.
func SchedulerLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, schedulerModule)
}

// QueryLogger returns the logger namespace reserved for the read path.
func QueryLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, queryModule)
}

// HTTPLogger returns the logger namespace reserved for the JSON API.
func HTTPLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, httpModule)
}

// WithFields attaches structured fields when the logger supports the optional
// FieldsLogger extension. Loggers without it are returned unchanged.
func WithFields(logger interfaces.Logger, fields map[string]any) interfaces.Logger {
	if logger == nil || len(fields) == 0 {
		return logger
	}
	if fieldsLogger, ok := logger.(interfaces.FieldsLogger); ok {
		return fieldsLogger.WithFields(maps.Clone(fields))
	}
	return logger
}

// WithDocumentContext enriches logger with the document filename and the
// action being applied to it. Empty values are skipped.
func WithDocumentContext(logger interfaces.Logger, filename, action string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(filename); trimmed != "" {
		fields[fieldDocument] = trimmed
	}
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		fields[fieldAction] = trimmed
	}
	return WithFields(logger, fields)
}

// NoOp returns a logger that drops every entry.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var (
	_ interfaces.Logger       = noopLogger{}
	_ interfaces.FieldsLogger = noopLogger{}
)

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger { return n }

func (n noopLogger) WithContext(context.Context) interfaces.Logger { return n }
