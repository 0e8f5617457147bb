// Command flame-pdf serves the document scanning API: POST /generate-pdf turns a
// directory of page photos into a rectified, enhanced PDF.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mocca-flames/flame-pdf/internal/assemble"
	"github.com/Mocca-flames/flame-pdf/internal/config"
	"github.com/Mocca-flames/flame-pdf/internal/logging"
	"github.com/Mocca-flames/flame-pdf/internal/pipeline"
	"github.com/Mocca-flames/flame-pdf/internal/server"
	"github.com/Mocca-flames/flame-pdf/internal/service"
	"github.com/Mocca-flames/flame-pdf/internal/version"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("FLAME_CONFIG"), "Path to YAML configuration file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	log := logging.New(os.Stderr, level, cfg.Log.Format)
	log.Info("starting", "version", version.Version, "commit", version.GitCommit,
		"addr", cfg.Addr, "partial_policy", cfg.Output.Partial)

	svc := service.New(cfg,
		pipeline.NewProcessor(log.With("component", "pipeline")),
		assemble.New(cfg.Output.PageSize, log.With("component", "assemble")),
		log.With("component", "service"))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(svc, version.Name, version.Version, log.With("component", "http")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down", "timeout", shutdownTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("stopped")
}
