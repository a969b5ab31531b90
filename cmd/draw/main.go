package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	drawcmd "github.com/jimrubenstein/randomproof/internal/cmd/draw"
	"github.com/jimrubenstein/randomproof/internal/platform/config"
	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
)

func main() {
	cfg, err := drawcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[DRAW] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := drawcmd.Run(ctx, cfg); err != nil {
		log.Printf("draw failed: %v", err)
		config.Exitf("%s", apperrors.UserMessage(err, os.Getenv("LANG")))
	}
}
