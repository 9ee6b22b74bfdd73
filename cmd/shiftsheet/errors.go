package main

import (
	"context"
	"errors"

	"github.com/gorewood/shiftsheet/internal/auth"
	"github.com/gorewood/shiftsheet/internal/daterange"
	"github.com/gorewood/shiftsheet/internal/jobcode"
	"github.com/gorewood/shiftsheet/internal/output"
	"github.com/gorewood/shiftsheet/internal/tsheets"
)

// classify maps an error to an exit code. Input the user can fix exits 1;
// upstream and I/O failures exit 2.
func classify(err error) *output.ExitError {
	var exitErr *output.ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	var ambiguous *jobcode.AmbiguousError
	var apiErr *tsheets.APIError
	switch {
	case errors.As(err, &ambiguous), errors.Is(err, daterange.ErrInvalid):
		return output.NewUserErrorWithCause(err.Error(), err)
	case errors.Is(err, auth.ErrNoToken):
		return output.NewUserErrorWithCause(
			err.Error()+"; run 'shiftsheet token set' or set TSHEETS_ACCESS_TOKEN", err)
	case errors.As(err, &apiErr) && apiErr.Unauthorized():
		return output.NewUserErrorWithCause(
			err.Error()+"; the access token was rejected, run 'shiftsheet token set'", err)
	case errors.Is(err, context.Canceled):
		return output.NewSystemErrorWithCause("canceled", err)
	default:
		return output.NewSystemErrorWithCause(err.Error(), err)
	}
}

// fail prints err and returns it classified.
func fail(printer *output.Printer, err error) error {
	exitErr := classify(err)
	printer.Error(exitErr)
	return exitErr
}
