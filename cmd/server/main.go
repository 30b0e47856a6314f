package main

import (
	"context"
	"log"

	"github.com/cristidraghici/open-file-sharing/internal/config"
	"github.com/cristidraghici/open-file-sharing/internal/logging"
	"github.com/cristidraghici/open-file-sharing/internal/server"
)

func main() {
	cfg := config.LoadConfig()
	logger := logging.NewDefault()

	srv, err := server.New(cfg, logger)
	if err != nil {
		log.Fatalf("server init: %v", err)
	}

	if err := srv.Run(context.Background()); err != nil {
		log.Fatalf("server: %v", err)
	}
}
