// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the sanctions-engine CLI and web
// server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/sanctions-engine/internal/logging"
	"github.com/pdiddy/sanctions-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// logger is configured in PersistentPreRunE from the log.* settings.
var logger = slog.Default()

// rootCmd is the base command for the sanctions-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "sanctions-engine",
	Short: "Sanctions list processing for compliance screening",
	Long: `sanctions-engine turns sanctions regulations published as PDF into
structured records, fetches the OFAC and UN Security Council lists,
consolidates everything into one deduplicated table, and screens the
extracted names against the official lists.

Each stage is a subcommand: convert, extract, ofac, un, consolidate and
screen. batch runs the whole workflow; serve starts the web application.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(secretsDir)
		if err != nil {
			return err
		}
		loadedSecrets = s

		l, err := logging.New(logConfig(), os.Stderr)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)

		if len(s) > 0 {
			keys := s.Keys()
			sort.Strings(keys)
			logger.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./sanctions-engine.yaml or ~/.config/sanctions-engine/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "data", "base directory for documents, list caches and the record store")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory holding one file per secret")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("sanctions-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "sanctions-engine"))
		}
	}

	configureEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
