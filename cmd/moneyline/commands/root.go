package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KevinGoltermann/moneyline-sub000/pkg/config"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "moneyline",
	Short: "Moneyline - 오늘의 픽 생성 및 정산 시스템",
	Long: `Moneyline Unified CLI

하루 한 개의 추천 픽을 생성하고, 결과를 정산하고, 성적을 공개합니다.

Usage:
  go run ./cmd/moneyline [command]

Examples:
  go run ./cmd/moneyline api --with-scheduler
  go run ./cmd/moneyline trigger
  go run ./cmd/moneyline pick unsettled
  go run ./cmd/moneyline migrate`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads configuration; --verbose forces debug logging
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
