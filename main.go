package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ezenkico/useintest/cmd"
)

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// cobra prints the error itself
	if err := cmd.Execute(ctx); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
