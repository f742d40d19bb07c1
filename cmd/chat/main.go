package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"support-chat/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "✗", err)
		stop()
		os.Exit(1)
	}
}
