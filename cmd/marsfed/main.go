package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pevans/marsfed/cmd/marsfed/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commands.ExecuteContext(ctx)
}
