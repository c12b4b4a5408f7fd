// Command fakebackend serves an in-memory storefront backend for local
// development and demos.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/campuseats/storefront/internal/fakebackend"
	"github.com/campuseats/storefront/pkg/catalog"
	"github.com/campuseats/storefront/pkg/config"
	"github.com/campuseats/storefront/pkg/logger"
	"github.com/campuseats/storefront/pkg/telemetry"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fakebackend: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("fakebackend", pflag.ContinueOnError)
	addr := flags.String("addr", ":8080", "listen address")
	seedPath := flags.String("seed", "", "YAML seed file (built-in seed data when empty)")
	taxonomyPath := flags.String("taxonomy", "", "YAML taxonomy file (default categories when empty)")
	maxQuantity := flags.Int("max-quantity", fakebackend.DefaultMaxQuantity, "per-line quantity ceiling")
	logLevel := flags.String("log-level", "info", "log level")
	logFormat := flags.String("log-format", "text", "log format (text or json)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	log, err := logger.NewZapLogger(*logLevel, *logFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	telCfg := cfg.Telemetry
	if os.Getenv("OTEL_SERVICE_NAME") == "" {
		telCfg.ServiceName = "fakebackend"
	}
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return err
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	tax, err := loadTaxonomy(*taxonomyPath)
	if err != nil {
		return err
	}

	store := fakebackend.NewStore(tax)
	if *seedPath != "" {
		if err := fakebackend.LoadSeed(store, *seedPath); err != nil {
			return err
		}
	} else {
		fakebackend.Seed(store)
	}
	if flags.Changed("max-quantity") {
		store.SetMaxQuantity(*maxQuantity)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           fakebackend.NewServer(store, log).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Fake backend listening", map[string]interface{}{
			"addr": *addr,
			"seed": seedSource(*seedPath),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("Shutdown completed")
	return nil
}

func loadTaxonomy(path string) (*catalog.Taxonomy, error) {
	if path != "" {
		return catalog.LoadTaxonomy(path)
	}
	return catalog.NewTaxonomy(config.DefaultRetailCategories, config.DefaultProduceCategories)
}

func seedSource(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}
