package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sagoresarker/cdnprobe/internal/cli"
)

func main() {
	// Ctrl+C stops probing; reports are still written for what finished.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
