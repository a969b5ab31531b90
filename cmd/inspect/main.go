package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	inspectcmd "github.com/jimrubenstein/randomproof/internal/cmd/inspect"
	"github.com/jimrubenstein/randomproof/internal/platform/config"
	apperrors "github.com/jimrubenstein/randomproof/internal/platform/errors"
)

func main() {
	cfg, err := inspectcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("%v", err)
	}
	log.SetPrefix("[INSPECT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := inspectcmd.Run(ctx, cfg); err != nil {
		log.Printf("inspect failed: %v", err)
		config.Exitf("%s", apperrors.UserMessage(err, os.Getenv("LANG")))
	}
}
