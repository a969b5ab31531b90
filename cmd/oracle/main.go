package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	oraclecmd "github.com/jimrubenstein/randomproof/internal/cmd/oracle"
)

func main() {
	cfg, err := oraclecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[ORACLE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := oraclecmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
