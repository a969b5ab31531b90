package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	verifycmd "github.com/jimrubenstein/randomproof/internal/cmd/verify"
	"github.com/jimrubenstein/randomproof/internal/platform/config"
)

func main() {
	cfg, err := verifycmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[VERIFY] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := verifycmd.Run(ctx, cfg); err != nil {
		config.Exitf("verify: %v", err)
	}
}
