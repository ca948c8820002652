package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencausal/latticegraphd/internal/config"
	"github.com/opencausal/latticegraphd/internal/store/dolt"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a fresh embedded Dolt directory with the schema",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.StoreMode == config.StoreModeServer {
		return fmt.Errorf("init only applies to store_mode=embedded; server-mode databases are provisioned externally")
	}

	if err := os.MkdirAll(cfg.StorePath, 0o755); err != nil {
		return fmt.Errorf("create store path %s: %w", cfg.StorePath, err)
	}

	s, err := dolt.Open(context.Background(), dolt.Config{Path: cfg.StorePath, Database: cfg.StoreDatabase})
	if err != nil {
		return fmt.Errorf("open embedded dolt store: %w", err)
	}
	defer s.Close()

	fmt.Printf("initialized %s at %s\n", cfg.StoreDatabase, cfg.StorePath)
	return nil
}
