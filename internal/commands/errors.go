package commands

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to command failures.
const (
	TextCodeValidation     = "COMMAND_VALIDATION_FAILED"
	TextCodeContextCancel  = "COMMAND_CONTEXT_CANCELED"
	TextCodeContextTimeout = "COMMAND_CONTEXT_TIMEOUT"
	TextCodeContextError   = "COMMAND_CONTEXT_ERROR"
	TextCodeExecute        = "COMMAND_EXECUTION_FAILED"
)

func wrap(err error, category goerrors.Category, message, code string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, category, message).WithTextCode(code)
}

func wrapValidationError(err error) error {
	return wrap(err, goerrors.CategoryValidation, "command validation failed", TextCodeValidation)
}

func wrapContextError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return wrap(err, goerrors.CategoryCommand, "command cancelled", TextCodeContextCancel)
	case errors.Is(err, context.DeadlineExceeded):
		return wrap(err, goerrors.CategoryCommand, "command deadline exceeded", TextCodeContextTimeout)
	default:
		return wrap(err, goerrors.CategoryCommand, "command context error", TextCodeContextError)
	}
}

// wrapExecuteError tags plain errors from the wrapped function. Errors that
// already carry a go-errors category keep it.
func wrapExecuteError(err error) error {
	return wrap(err, goerrors.CategoryCommand, "command execution failed", TextCodeExecute)
}
