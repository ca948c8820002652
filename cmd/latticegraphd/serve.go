package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencausal/latticegraphd/internal/config"
	"github.com/opencausal/latticegraphd/internal/observability"
	"github.com/opencausal/latticegraphd/internal/rpc"
	"github.com/opencausal/latticegraphd/internal/store"
	"github.com/opencausal/latticegraphd/internal/store/dolt"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the daemon (Service Façade + Store Adapter)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.Init(ctx, cfg.OTel)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		_ = shutdownOTel(shutdownCtx)
	}()

	s, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	server := rpc.NewServer(s, log)
	server.SetMaxConnections(cfg.MaxConnections)
	if cfg.Listen.TCPToken != "" {
		server.SetTCPToken(cfg.Listen.TCPToken)
	}
	if cfg.Listen.TLSCert != "" && cfg.Listen.TLSKey != "" {
		if err := server.SetTLSConfig(cfg.Listen.TLSCert, cfg.Listen.TLSKey); err != nil {
			return fmt.Errorf("load TLS config: %w", err)
		}
	}

	errCh := make(chan error, 3)
	running := 0

	if cfg.Listen.Socket != "" {
		running++
		go func() {
			log.Info("listening on unix socket", "path", cfg.Listen.Socket)
			errCh <- server.Serve(ctx, cfg.Listen.Socket)
		}()
	}
	if cfg.Listen.TCP != "" {
		running++
		go func() {
			log.Info("listening on tcp", "addr", cfg.Listen.TCP)
			errCh <- server.ServeTCP(ctx, cfg.Listen.TCP)
		}()
	}
	if cfg.Listen.HTTP != "" {
		running++
		httpServer := rpc.NewHTTPServer(server, cfg.Listen.HTTP, cfg.Listen.TCPToken)
		go func() {
			log.Info("listening on http", "addr", cfg.Listen.HTTP)
			errCh <- httpServer.Start(ctx)
		}()
	}
	if running == 0 {
		return fmt.Errorf("no listeners configured")
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreMode {
	case config.StoreModeServer:
		return dolt.Open(ctx, dolt.Config{
			ServerMode: true,
			DSN:        cfg.StoreDSN,
			Database:   cfg.StoreDatabase,
		})
	default:
		return dolt.Open(ctx, dolt.Config{
			Path:     cfg.StorePath,
			Database: cfg.StoreDatabase,
		})
	}
}
