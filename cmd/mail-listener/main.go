package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"poflow/internal/app"
	"poflow/internal/config"
)

func main() {
	cfg, err := config.Load()
	must(err)
	log := config.NewLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	must(err)
	defer a.Close()

	must(a.Listener().Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
