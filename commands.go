package postindex

import (
	"errors"
	"fmt"

	command "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	"github.com/goliatone/go-postindex/internal/commands/postscmd"
)

// SyncDirectoryCommand exports the sync command message.
type SyncDirectoryCommand = postscmd.SyncDirectoryCommand

// VerifyDirectoryCommand exports the verify command message.
type VerifyDirectoryCommand = postscmd.VerifyDirectoryCommand

// CommandRegistry records command handlers so hosts can expose them via CLI or cron.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// CommandDispatcher subscribes command handlers to a dispatcher implementation.
type CommandDispatcher interface {
	RegisterCommand(handler any) (CommandSubscription, error)
}

// CommandSubscription allows hosts to tear down dispatcher subscriptions.
type CommandSubscription interface {
	Unsubscribe()
}

// CronRegistrar registers command handlers with a cron scheduler.
type CronRegistrar func(command.HandlerConfig, any) error

// RegistrationOptions configures how handlers are registered.
type RegistrationOptions struct {
	Registry      CommandRegistry
	Dispatcher    CommandDispatcher
	CronRegistrar CronRegistrar
}

// RegistrationResult captures the constructed command handlers and any
// dispatcher subscriptions.
type RegistrationResult struct {
	Handlers      []any
	Subscriptions []CommandSubscription
}

// Unsubscribe tears down every dispatcher subscription.
func (r *RegistrationResult) Unsubscribe() {
	if r == nil {
		return
	}
	for _, sub := range r.Subscriptions {
		sub.Unsubscribe()
	}
	r.Subscriptions = nil
}

// RegisterCommands builds the sync and verify handlers for m and registers
// them with the configured registry and dispatcher.
func RegisterCommands(m *Module, opts RegistrationOptions) (*RegistrationResult, error) {
	result := &RegistrationResult{}
	if m == nil || m.container == nil {
		return result, nil
	}

	// A registry that accepts the cron hook resolves cron handlers itself on
	// Initialize; otherwise they go straight to the registrar.
	cronViaRegistry := false
	if opts.Registry != nil && opts.CronRegistrar != nil {
		if reg, ok := opts.Registry.(interface {
			SetCronRegister(func(command.HandlerConfig, any) error) *command.Registry
		}); ok && reg != nil {
			reg.SetCronRegister(opts.CronRegistrar)
			cronViaRegistry = true
		}
	}

	var errs error
	register := func(handler any) {
		result.Handlers = append(result.Handlers, handler)
		if opts.Registry != nil {
			if err := opts.Registry.RegisterCommand(handler); err != nil {
				errs = errors.Join(errs, err)
			}
		}
		if opts.Dispatcher != nil {
			subscription, err := opts.Dispatcher.RegisterCommand(handler)
			if err != nil {
				errs = errors.Join(errs, err)
			} else if subscription != nil {
				result.Subscriptions = append(result.Subscriptions, subscription)
			}
		}
		if opts.CronRegistrar != nil && !cronViaRegistry {
			if cronCmd, ok := handler.(command.CronCommand); ok {
				if err := opts.CronRegistrar(cronCmd.CronOptions(), cronCmd.CronHandler()); err != nil {
					errs = errors.Join(errs, err)
				}
			}
		}
	}

	register(m.container.SyncHandler(nil))
	register(m.container.VerifyHandler(nil))

	return result, errs
}

// GlobalDispatcher subscribes handlers to the process-wide go-command
// dispatcher. Failed executions are retried MaxRetries times.
type GlobalDispatcher struct {
	MaxRetries int
}

// RegisterCommand implements CommandDispatcher.
func (d GlobalDispatcher) RegisterCommand(handler any) (CommandSubscription, error) {
	var opts []runner.Option
	if d.MaxRetries > 0 {
		opts = append(opts, runner.WithMaxRetries(d.MaxRetries))
	}
	switch h := handler.(type) {
	case *postscmd.SyncDirectoryHandler:
		return dispatcher.SubscribeCommand(h, opts...), nil
	case *postscmd.VerifyDirectoryHandler:
		return dispatcher.SubscribeCommand(h, opts...), nil
	default:
		return nil, fmt.Errorf("postindex: unsupported command handler %T", handler)
	}
}
