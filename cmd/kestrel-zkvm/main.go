package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
