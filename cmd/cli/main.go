package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	log     zerolog.Logger
)

// flagKeys maps flag names to the config keys they override when a
// command defines them.
var flagKeys = map[string]string{
	"log-level":    config.KeyLogLevel,
	"project":      config.KeyGCPProject,
	"dataset":      config.KeyBQDataset,
	"bucket":       config.KeyGCSBucket,
	"model":        config.KeyModel,
	"interval":     config.KeyExtractInterval,
	"concurrency":  config.KeyPageConcurrency,
	"notion-db-id": config.KeyNotionDBID,
}

var rootCmd = &cobra.Command{
	Use:           "ledger",
	Short:         "Turn recognized bank statement pages into a ledger and reports",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loader := config.NewLoader()
		for name, key := range flagKeys {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := loader.BindFlag(key, f); err != nil {
					return err
				}
			}
		}

		var err error
		cfg, err = loader.Load(cfgFile, ".env")
		if err != nil {
			return err
		}
		log, err = logger.NewWithSettings(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		cmd.SetContext(logger.WithContext(cmd.Context(), log))
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
