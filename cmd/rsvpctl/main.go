package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/bootstrap"
	"github.com/baechuer/real-time-ressys/services/rsvp-client/internal/logger"
)

func main() {
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, bootstrap.New); err != nil {
		fmt.Fprintln(os.Stderr, "rsvpctl:", describe(err))
		os.Exit(1)
	}
}
