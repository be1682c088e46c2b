package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"
	"github.com/mysangle/blitz/internal/core"
	"github.com/mysangle/blitz/internal/script"
)

func (c *Cmd) Check(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var failed error
	for _, path := range args {
		if err := ctx.Err(); err != nil {
			return printError(stdio, err)
		}
		if _, err := script.Bundle(path); err != nil {
			failed = printError(stdio, err)
			continue
		}
		fmt.Fprintf(stdio.Stdout, "%s: ok\n", path)
	}
	return failed
}

func (c *Cmd) Backends(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, name := range core.Backends() {
		suffix := ""
		if name == core.DefaultBackend {
			suffix = " (default)"
		}
		fmt.Fprintf(stdio.Stdout, "%s%s\n", name, suffix)
	}
	return nil
}
