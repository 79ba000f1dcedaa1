package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thanhnp/vote-ledger/internal/config"
	"github.com/thanhnp/vote-ledger/internal/ledger"
	"github.com/thanhnp/vote-ledger/internal/storage"
	"github.com/thanhnp/vote-ledger/internal/vote"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "server - Append-only vote ledger",
	Long:  "Records votes in a hash-linked ledger backed by Pebble and serves it over HTTP.",
}

// Execute runs the root command. Any returned error exits with status 1.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
}

// openService loads configuration, opens the database and hydrates the ledger.
// The caller owns the returned stores and must close them.
func openService(cmd *cobra.Command) (*config.Config, *storage.Stores, *vote.Service, *ledger.Report, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := storage.OpenPebbleDB(cfg.Pebble.Path, storage.Options{
		InMemory:  cfg.Pebble.InMemory,
		CacheSize: int64(cfg.Pebble.CacheMB) << 20,
	})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to open Pebble database: %w", err)
	}
	stores := storage.NewStores(db)

	service := vote.NewService(ledger.NewChain(), stores.LedgerStore, stores.VoteStore, vote.OptionsFromConfig(cfg.Ledger))
	report, err := service.Open(cmd.Context())
	if err != nil {
		stores.Close()
		return nil, nil, nil, nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return cfg, stores, service, report, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
