package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/embassy-watch/embassy-eye/cmd/embassy-eye/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commands.ExecuteContext(ctx)
}
