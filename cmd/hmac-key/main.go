package main

import (
	"flag"
	"os"
	"time"

	"github.com/jimrubenstein/randomproof/internal/platform/config"
	"github.com/jimrubenstein/randomproof/internal/services/oracle/auth"
	"github.com/jimrubenstein/randomproof/internal/tools/hmackey"
)

func main() {
	cfg, err := hmackey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if cfg.Subject != "" {
		authCfg, err := auth.LoadConfigFromEnv(time.Now)
		if err != nil {
			config.Exitf("load oracle auth: %v", err)
		}
		if err := hmackey.RunToken(cfg, authCfg, os.Stdout); err != nil {
			config.Exitf("mint token: %v", err)
		}
		return
	}
	if err := hmackey.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("generate key: %v", err)
	}
}
