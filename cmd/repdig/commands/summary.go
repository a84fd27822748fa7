package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"repdig-scraper/lib/htmlutil"
	"repdig-scraper/lib/serviceutil"
	"repdig-scraper/pkg/migrations"
	"repdig-scraper/services/sanctions"
	"repdig-scraper/services/sanctions/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var summaryAll bool

func init() {
	summaryCmd.Flags().BoolVar(&summaryAll, "all", false, "List every record instead of only the missing ones.")
	rootCmd.AddCommand(summaryCmd)
}

var summaryCmd = &cobra.Command{
	Use:   "summary [--output-dir <dir>] [--all]",
	Short: "Prints the records and failed downloads saved in the output directory.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		progress, err := sanctions.LoadProgress(cfg.OutputDir)
		if err != nil {
			serviceutil.Fatal("failed to read progress", err)
		}

		records := table.NewWriter()
		records.SetOutputMirror(os.Stdout)
		records.SetTitle("Records")
		records.AppendHeader(table.Row{"#", "Case", "Subject", "Resolution", "Document"})
		records.SetColumnConfigs([]table.ColumnConfig{
			{Name: "Subject", WidthMax: 40},
		})

		missing := 0
		for _, r := range progress.Records {
			status := "ok"
			_, err := os.Stat(filepath.Join(cfg.OutputDir, r.FileName()))
			if err != nil {
				status = "missing"
				missing++
			} else if !summaryAll {
				continue
			}
			records.AppendRow(table.Row{
				r.RowIndex,
				htmlutil.Normalize(r.CaseNumber),
				htmlutil.Normalize(r.SubjectName),
				htmlutil.Normalize(r.ResolutionCode),
				status,
			})
		}
		records.AppendFooter(table.Row{"", "", "", "missing", fmt.Sprintf("%d / %d", missing, len(progress.Records))})
		records.SetStyle(table.StyleRounded)
		records.Render()

		if len(progress.Failures) > 0 {
			failures := table.NewWriter()
			failures.SetOutputMirror(os.Stdout)
			failures.SetTitle("Failed downloads")
			failures.AppendHeader(table.Row{"Case", "Resolution", "Error"})
			failures.SetColumnConfigs([]table.ColumnConfig{
				{Name: "Error", WidthMax: 60},
			})
			for _, f := range progress.Failures {
				failures.AppendRow(table.Row{
					htmlutil.Normalize(f.Doc.CaseNumber),
					htmlutil.Normalize(f.Doc.ResolutionCode),
					f.Error,
				})
			}
			failures.SetStyle(table.StyleRounded)
			failures.Render()
		}

		if cfg.Db == "" {
			return
		}
		_, err = os.Stat(cfg.Db)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		database, err := migrations.OpenAndMigrateDB(db.Schema, cfg.Db)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer database.Close()

		summary, err := sanctions.NewIndex(database).Summary(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to query db", err)
		}

		statuses := table.NewWriter()
		statuses.SetOutputMirror(os.Stdout)
		statuses.SetTitle(fmt.Sprintf("Index (%d records)", summary.Records))
		statuses.AppendHeader(table.Row{"Status", "Count"})
		for _, s := range summary.Statuses {
			statuses.AppendRow(table.Row{s.Status, s.Count})
		}
		statuses.SetStyle(table.StyleRounded)
		statuses.Render()
	},
}
