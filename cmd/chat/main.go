package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gemchat/internal/client"
	"gemchat/internal/config"
	"gemchat/internal/store"
	"gemchat/internal/tui"
)

func main() {
	if err := runMain(); err != nil {
		log.Fatalf("gemchat: %v", err)
	}
}

func runMain() error {
	cfg := config.LoadClient()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	st := store.Open(cfg.StatePath)
	api := client.New(cfg.ServerURL)

	controller, err := tui.New(st, api)
	if err != nil {
		return err
	}
	defer controller.Close()

	return controller.Run(ctx)
}
