package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-callback-relay/core"
	relaycmd "github.com/goliatone/go-callback-relay/internal/cmd/relay"
)

func main() {
	if err := core.LoadDotEnv(); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := relaycmd.ParseConfig(ctx, flag.CommandLine, os.Args[1:], nil)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := relaycmd.Run(ctx, cfg); err != nil {
		log.Fatalf("callback relay: %v", err)
	}
}
