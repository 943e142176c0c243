package cliutil

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

const errorExitCode = 1

func Action(actionFunc cli.ActionFunc) cli.ActionFunc {
	return WithErrorHandler(actionFunc)
}

// WithErrorHandler turns errors that carry no exit code into exit code 1.
func WithErrorHandler(actionFunc cli.ActionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		err := actionFunc(c)
		if err == nil {
			return nil
		}
		var coder cli.ExitCoder
		if errors.As(err, &coder) {
			return err
		}
		return cli.Exit(err, errorExitCode)
	}
}
