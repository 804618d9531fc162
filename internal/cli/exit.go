package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/setupdb/pkg/errors"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130 // shell convention for SIGINT
)

// usageError marks a mistake in how the command was invoked.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// usageArgs wraps a cobra argument validator so its failures count as usage
// errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

// ExitCode maps an error returned by the root command to a process exit code.
func ExitCode(err error) int {
	var ue *usageError
	switch {
	case err == nil:
		return ExitOK
	case stderrors.Is(err, context.Canceled):
		return ExitInterrupted
	case stderrors.As(err, &ue), strings.HasPrefix(err.Error(), "unknown command"):
		return ExitUsage
	case errors.Is(err, errors.ErrCodeInvalidPackage), errors.Is(err, errors.ErrCodeInvalidVersion):
		return ExitUsage
	default:
		return ExitFailure
	}
}

// ReportError prints err for a human. Interruptions print nothing.
func ReportError(err error) {
	if err == nil || stderrors.Is(err, context.Canceled) {
		return
	}
	var re *errors.ResolutionError
	if stderrors.As(err, &re) {
		printError("failed to resolve %s", re.Package())
		printDetail("%v", err)
		return
	}
	printError("%v", err)
}
