package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lbianche/minerva/internal/app"
	"github.com/lbianche/minerva/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer a.Cleanup()

	// Serving questions against a missing or empty index would answer
	// everything from thin air; refuse to start instead.
	readyCtx, readyCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := a.Retriever.Ready(readyCtx); err != nil {
		readyCancel()
		log.Fatalf("passage index not ready: %v", err)
	}
	readyCancel()
	log.Printf("retriever ready (mode %s)", cfg.RetrieverMode)

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: a.Server.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
