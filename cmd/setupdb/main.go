package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/matzehuels/setupdb/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx))
}

func run(ctx context.Context) int {
	c := cli.New(os.Stdout, os.Stderr)
	if err := c.RootCommand().ExecuteContext(ctx); err != nil {
		cli.ReportError(err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}
