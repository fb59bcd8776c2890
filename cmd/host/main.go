package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThePuug/closed-economy/internal/app"
	"github.com/ThePuug/closed-economy/internal/authority"
	"github.com/ThePuug/closed-economy/internal/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to a TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	end, err := app.RunHost(ctx, cfg, app.HostOptions{})
	if err != nil {
		log.Printf("%v", err)
		if end.Code == authority.ExitOK {
			end.Code = authority.ExitPersistFail
		}
	}
	log.Printf("session ended: persisted %d bytes", len(end.Blob))
	os.Exit(end.Code)
}
