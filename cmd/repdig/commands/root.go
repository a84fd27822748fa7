package commands

import (
	"context"
	"fmt"
	"os"

	"repdig-scraper/lib/telemetry"
	"repdig-scraper/services/sanctions"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "repdig",
	Short: "repdig downloads the sanction resolutions published in the OEFA digital repository.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

var (
	configPath string
	verbose    bool
	outputDir  string
	dbPath     string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "The json5 config file, a config.local.json5 next to it overrides it.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages.")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "The directory documents and progress files are written to.")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "A sqlite database to index records and download outcomes into.")
}

// loadConfig reads the config file and applies the flags explicitly set on
// the command line on top of it.
func loadConfig(cmd *cobra.Command) (sanctions.Config, error) {
	cfg, err := sanctions.ReadConfig(configPath)
	if err != nil {
		return sanctions.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("db") {
		cfg.Db = dbPath
	}
	if flags.Changed("base-url") {
		cfg.BaseUrl = scrapeBaseUrl
	}
	if flags.Changed("delay-ms") {
		cfg.DelayMs = scrapeDelayMs
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = scrapeMaxRetries
	}
	if flags.Changed("retry-base-delay-ms") {
		cfg.RetryBaseDelayMs = scrapeRetryBaseDelayMs
	}
	if flags.Changed("timeout-ms") {
		cfg.TimeoutMs = scrapeTimeoutMs
	}
	if flags.Changed("cloudflare-bypass") {
		cfg.CloudflareBypass = scrapeCloudflareBypass
	}

	err = cfg.Validate()
	if err != nil {
		return sanctions.Config{}, err
	}
	return cfg, nil
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
