package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"repdig-scraper/lib/restyutil"
	"repdig-scraper/lib/scrapers/repdig"
	"repdig-scraper/lib/serviceutil"
	"repdig-scraper/lib/telemetry"
	"repdig-scraper/pkg/migrations"
	"repdig-scraper/services/sanctions"
	"repdig-scraper/services/sanctions/db"

	"github.com/spf13/cobra"
)

var (
	scrapeBaseUrl          string
	scrapeDelayMs          int
	scrapeMaxRetries       int
	scrapeRetryBaseDelayMs int
	scrapeTimeoutMs        int
	scrapeCloudflareBypass bool
	scrapeMaxPages         int
	scrapeDumpHttp         string
)

func init() {
	flags := scrapeCmd.Flags()
	flags.StringVar(&scrapeBaseUrl, "base-url", repdig.DefaultBaseUrl, "The base url of the portal.")
	flags.IntVar(&scrapeDelayMs, "delay-ms", 2000, "Milliseconds waited before every request.")
	flags.IntVar(&scrapeMaxRetries, "max-retries", repdig.DefaultMaxRetries, "How many times a rate limited request is retried.")
	flags.IntVar(&scrapeRetryBaseDelayMs, "retry-base-delay-ms", 2000, "The base of the exponential backoff on rate limiting.")
	flags.IntVar(&scrapeTimeoutMs, "timeout-ms", 30000, "The per request timeout.")
	flags.BoolVar(&scrapeCloudflareBypass, "cloudflare-bypass", false, "Use a browser-like TLS fingerprint.")
	flags.IntVar(&scrapeMaxPages, "max-pages", 0, "Stop after this many pages, 0 means all of them.")
	flags.StringVar(&scrapeDumpHttp, "dump-http", "", "A directory to dump every HTTP request and response into.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--output-dir <dir>] [--db <path/to/index.db>] [--max-pages <n>]",
	Short: "Walks every result page and downloads the documents that are not downloaded yet.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := loadConfig(cmd)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		tel, err := telemetry.SetupFromEnv(ctx, "repdig")
		if errors.Is(err, telemetry.ErrNotConfigured) {
			slog.Debug("telemetry is not configured")
		} else if err != nil {
			slog.Warn("failed to setup telemetry", "err", err)
		} else {
			telemetry.InstrumentPerfStats(ctx)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := tel.Shutdown(shutdownCtx)
			if err != nil {
				slog.Warn("failed to flush telemetry", "err", err)
			}
		}()

		opts := cfg.ClientOptions()
		if scrapeDumpHttp != "" {
			output, err := restyutil.NewFilesystemOutput(scrapeDumpHttp)
			if err != nil {
				serviceutil.Fatal("failed to create http dump directory", err)
			}
			opts.Dump = output
		}
		client, err := repdig.NewClient(opts)
		if err != nil {
			serviceutil.Fatal("failed to create client", err)
		}

		var index *sanctions.Index
		if cfg.Db != "" {
			database, err := migrations.OpenAndMigrateDB(db.Schema, cfg.Db)
			if err != nil {
				serviceutil.Fatal("failed to open db", err)
			}
			defer database.Close()
			idx := sanctions.NewIndex(database)
			index = &idx
		}

		slog.Info(
			"scraping",
			"base_url", cfg.BaseUrl,
			"output_dir", cfg.OutputDir,
			"delay_ms", cfg.DelayMs,
			"max_retries", cfg.MaxRetries,
		)

		scraper := sanctions.NewScraper(client, sanctions.Options{
			OutputDir: cfg.OutputDir,
			MaxPages:  scrapeMaxPages,
			Index:     index,
		})

		t1 := time.Now()
		result, err := scraper.Run(ctx)
		if err != nil {
			serviceutil.Fatal("failed to start scraping", err)
		}
		t2 := time.Now()

		if result.State == sanctions.StateFailed {
			slog.Error(
				"scraping stopped early, progress so far was saved",
				"err", result.Err,
				"records", len(result.Records),
			)
		}
		slog.Info(
			"scraping finished",
			"state", result.State,
			"pages", result.Pages,
			"records", len(result.Records),
			"failed_downloads", len(result.Failures),
			"seconds", t2.Sub(t1).Seconds(),
		)
	},
}
