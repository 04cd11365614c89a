// Package main provides the donktrk CLI entrypoint.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/donkhouse/donktrk/internal/application"
	"github.com/donkhouse/donktrk/internal/applog"
	"github.com/donkhouse/donktrk/internal/config"
	"github.com/donkhouse/donktrk/internal/persistence"
	"github.com/donkhouse/donktrk/internal/watcher"
)

var (
	version = "dev"
	commit  = "local"
)

var (
	flagConfig    string
	flagExportDir string
	flagDBPath    string
	flagDebug     bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "donktrk",
		Short:         "Incremental poker session and stat tracker",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultConfigPath(), "TOML config file")
	rootCmd.PersistentFlags().StringVar(&flagExportDir, "dir", "", "directory holding ledger and hand-history exports")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite database path")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newWatchCmd())
	return rootCmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Parse new sessions and hands once, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, err := buildService()
			if err != nil {
				return err
			}
			defer svc.Close()

			summary, err := svc.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("parsed %d table(s): %d new session(s), %d new player(s), %d updated\n",
				summary.Tables, summary.Sessions, summary.PlayersInserted, summary.PlayersUpdated)
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run once, then re-run whenever new exports are downloaded",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, exportDir, err := buildService()
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := svc.Run(ctx); err != nil {
				return err
			}

			w, err := watcher.NewExportWatcher(exportDir, watcher.Config{
				OnChange: func() {
					if _, err := svc.Run(ctx); err != nil {
						fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
					}
				},
				OnError: func(err error) {
					fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
				},
			})
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				return err
			}
			defer w.Stop()

			<-ctx.Done()
			return nil
		},
	}
}

func buildService() (*application.Service, string, error) {
	fileCfg, err := config.LoadConfig(flagConfig)
	if err != nil {
		return nil, "", err
	}

	exportDir := flagExportDir
	if exportDir == "" && fileCfg.Exports.Dir != nil {
		exportDir = *fileCfg.Exports.Dir
	}
	if exportDir == "" {
		exportDir = config.DefaultExportDir()
	}

	dbPath := flagDBPath
	if dbPath == "" && fileCfg.Database.Path != nil {
		dbPath = *fileCfg.Database.Path
	}
	if dbPath == "" {
		dbPath = config.DefaultDBPath()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, "", fmt.Errorf("create database directory: %w", err)
	}
	applog.Init(flagDebug, filepath.Join(filepath.Dir(dbPath), "donktrk.log"))

	repo, err := persistence.NewSQLiteRepository(dbPath)
	if err != nil {
		return nil, "", err
	}

	tables := fileCfg.Exports.Tables
	svc := application.NewService(repo, func() ([]application.ExportPair, error) {
		pairs, err := application.DetectExportPairs(exportDir)
		if err != nil {
			return nil, err
		}
		return application.FilterPairs(pairs, tables), nil
	})
	return svc, exportDir, nil
}
