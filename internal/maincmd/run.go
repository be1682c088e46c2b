package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mysangle/blitz/internal/dom"
	"github.com/mysangle/blitz/internal/eventloop"
	"github.com/mysangle/blitz/internal/metrics"
	"github.com/mysangle/blitz/internal/script"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	path := args[0]
	src, err := script.Load(path)
	if err != nil {
		return printError(stdio, err)
	}

	doc, err := c.loadDocument()
	if err != nil {
		return printError(stdio, err)
	}

	cfg := c.config(stdio)
	loop, err := eventloop.New(cfg, doc)
	if err != nil {
		return printError(stdio, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	if c.MetricsAddr != "" {
		log := logrus.NewEntry(cfg.Logger)
		g.Go(func() error {
			return metrics.Serve(gctx, c.MetricsAddr, log)
		})
	}
	g.Go(func() error {
		// stops the metrics server once the script is done
		defer cancel()
		return loop.Run(gctx, src, path)
	})
	if err := g.Wait(); err != nil {
		// an interrupt is how a --keep-alive run ends
		if !errors.Is(err, context.Canceled) || ctx.Err() == nil {
			return printError(stdio, err)
		}
	}

	if c.PrintDocument {
		if err := doc.Render(stdio.Stdout); err != nil {
			return printError(stdio, err)
		}
		fmt.Fprintln(stdio.Stdout)
	}
	return nil
}

func (c *Cmd) loadDocument() (*dom.Document, error) {
	if c.Document == "" {
		return dom.Empty(), nil
	}
	f, err := os.Open(c.Document)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()
	return dom.Parse(f)
}
