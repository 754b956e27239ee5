// Package postscmd exposes sync and verify as go-command handlers.
package postscmd

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	command "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-postindex/internal/commands"
	"github.com/goliatone/go-postindex/internal/logging"
	"github.com/goliatone/go-postindex/internal/markdown"
	"github.com/goliatone/go-postindex/internal/reconcile"
	"github.com/goliatone/go-postindex/pkg/interfaces"
)

const (
	syncOperation   = "posts.sync_directory"
	verifyOperation = "posts.verify_directory"

	textCodeSyncBusy       = "SYNC_IN_PROGRESS"
	textCodeVerifyFailed   = "VERIFY_FAILED"
	textCodeDirectoryEmpty = "DIRECTORY_EMPTY"
)

var extensionPattern = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)

// ErrVerificationFailed is returned when at least one post fails verification.
var ErrVerificationFailed = errors.New("postscmd: verification failed")

// Reconciler runs a reconciliation pass.
type Reconciler interface {
	Reconcile(ctx context.Context, dir string) (*reconcile.Result, error)
}

// Verifier lints a posts directory.
type Verifier interface {
	VerifyDirectory(dir, extension string) (markdown.VerifyReport, error)
}

var (
	_ command.Commander[SyncDirectoryCommand]   = (*SyncDirectoryHandler)(nil)
	_ command.Commander[VerifyDirectoryCommand] = (*VerifyDirectoryHandler)(nil)
	_ command.CronCommand                       = (*SyncDirectoryHandler)(nil)
)

// SyncCron describes how the sync handler runs when driven by a cron
// scheduler: which directory to reconcile and the cron registration options.
type SyncCron struct {
	Directory string
	Config    command.HandlerConfig
}

// SyncDirectoryHandler reconciles a directory through the shared handler.
type SyncDirectoryHandler struct {
	inner *commands.Handler[SyncDirectoryCommand]
	cron  SyncCron
}

// NewSyncDirectoryHandler binds the handler to r. onResult, when set,
// receives every completed pass result including failed ones.
func NewSyncDirectoryHandler(r Reconciler, logger interfaces.Logger, onResult func(*reconcile.Result), opts ...commands.HandlerOption[SyncDirectoryCommand]) *SyncDirectoryHandler {
	if logger == nil {
		logger = logging.NoOp()
	}

	exec := func(ctx context.Context, msg SyncDirectoryCommand) error {
		result, err := r.Reconcile(ctx, msg.Directory)
		if result != nil && onResult != nil {
			onResult(result)
		}
		if errors.Is(err, reconcile.ErrReconcileInProgress) {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "sync already running").
				WithTextCode(textCodeSyncBusy)
		}
		return err
	}

	handlerOpts := append([]commands.HandlerOption[SyncDirectoryCommand]{
		commands.WithLogger[SyncDirectoryCommand](logger),
		commands.WithOperation[SyncDirectoryCommand](syncOperation),
		commands.WithMessageFields(func(msg SyncDirectoryCommand) map[string]any {
			return map[string]any{"directory": msg.Directory}
		}),
		commands.WithTelemetry(commands.LogTelemetry[SyncDirectoryCommand](logger)),
	}, opts...)

	return &SyncDirectoryHandler{inner: commands.NewHandler(exec, handlerOpts...)}
}

// Execute implements command.Commander[SyncDirectoryCommand].
func (h *SyncDirectoryHandler) Execute(ctx context.Context, msg SyncDirectoryCommand) error {
	return h.inner.Execute(ctx, msg)
}

// WithCron sets the directory and options used by CronHandler and CronOptions.
func (h *SyncDirectoryHandler) WithCron(cron SyncCron) *SyncDirectoryHandler {
	h.cron = cron
	return h
}

// CronHandler satisfies command.CronCommand. A tick that finds a pass
// already running is not an error.
func (h *SyncDirectoryHandler) CronHandler() func() error {
	return func() error {
		err := h.Execute(context.Background(), SyncDirectoryCommand{Directory: h.cron.Directory})
		if errors.Is(err, reconcile.ErrReconcileInProgress) {
			return nil
		}
		return err
	}
}

// CronOptions satisfies command.CronCommand.
func (h *SyncDirectoryHandler) CronOptions() command.HandlerConfig {
	return h.cron.Config
}

// VerifyDirectoryHandler lints a directory through the shared handler.
type VerifyDirectoryHandler struct {
	inner *commands.Handler[VerifyDirectoryCommand]
}

// NewVerifyDirectoryHandler binds the handler to v. onReport, when set,
// receives the report before the outcome is decided.
func NewVerifyDirectoryHandler(v Verifier, logger interfaces.Logger, onReport func(markdown.VerifyReport), opts ...commands.HandlerOption[VerifyDirectoryCommand]) *VerifyDirectoryHandler {
	if logger == nil {
		logger = logging.NoOp()
	}

	exec := func(ctx context.Context, msg VerifyDirectoryCommand) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		report, err := v.VerifyDirectory(msg.Directory, msg.Extension)
		if err != nil {
			return err
		}
		if onReport != nil {
			onReport(report)
		}
		switch {
		case len(report.Files) == 0:
			return goerrors.Wrap(ErrVerificationFailed, goerrors.CategoryValidation, "no posts found").
				WithTextCode(textCodeDirectoryEmpty).
				WithMetadata(map[string]any{"directory": msg.Directory})
		case !report.OK():
			return goerrors.Wrap(ErrVerificationFailed, goerrors.CategoryValidation,
				fmt.Sprintf("%d of %d posts failed verification", len(report.Failed()), len(report.Files))).
				WithTextCode(textCodeVerifyFailed).
				WithMetadata(map[string]any{"directory": msg.Directory})
		}
		return nil
	}

	handlerOpts := append([]commands.HandlerOption[VerifyDirectoryCommand]{
		commands.WithLogger[VerifyDirectoryCommand](logger),
		commands.WithOperation[VerifyDirectoryCommand](verifyOperation),
		commands.WithMessageFields(func(msg VerifyDirectoryCommand) map[string]any {
			return map[string]any{"directory": msg.Directory}
		}),
		commands.WithTelemetry(commands.LogTelemetry[VerifyDirectoryCommand](logger)),
	}, opts...)

	return &VerifyDirectoryHandler{inner: commands.NewHandler(exec, handlerOpts...)}
}

// Execute implements command.Commander[VerifyDirectoryCommand].
func (h *VerifyDirectoryHandler) Execute(ctx context.Context, msg VerifyDirectoryCommand) error {
	return h.inner.Execute(ctx, msg)
}
