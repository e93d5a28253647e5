package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitegraph/internal/config"
	"github.com/nao1215/sitegraph/internal/database"
	"github.com/nao1215/sitegraph/internal/scope"
)

// defaultHistoryLimit is the number of runs listed without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past crawl runs",
		Long: `History lists crawl runs recorded in the history database, newest first.

Every crawled seed is one run. Use the run ID with "sitegraph report --run"
to summarize the graph the run produced.

Examples:
  # Show the latest runs
  sitegraph history

  # Show the runs of one site
  sitegraph history --site example.com

  # Output JSON
  sitegraph history --json --limit 100`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 = all)")
	cmd.Flags().String("site", "",
		"Only list runs of this domain")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	site, err := flags.GetString("site")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	filter := database.RunFilter{Limit: limit}
	if site != "" {
		// Runs are stored by registrable domain, so "www.blog.example.com"
		// finds the runs of example.com.
		filter.Domain = scope.RegistrableDomain(strings.ToLower(site))
	}
	runs, err := db.ListRuns(context.Background(), filter)
	if err != nil {
		return fmt.Errorf("failed to list crawl runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeHistoryJSON(out, runs)
	}
	writeHistory(out, runs)
	return nil
}

func writeHistory(out io.Writer, runs []database.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No crawl runs found in the history database.")
		fmt.Fprintln(out, "\nUse 'sitegraph crawl <url>' to crawl a site.")
		return
	}

	fmt.Fprintf(out, "Crawl runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-8s  %6s  %6s  %8s  %s\n",
		"ID", "Started", "Status", "Pages", "Failed", "Duration", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 110))
	for _, r := range runs {
		duration := "-"
		if d := r.Duration(); d > 0 {
			duration = d.Round(time.Second).String()
		}
		fmt.Fprintf(out, "  %-36s  %-19s  %-8s  %6d  %6d  %8s  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Status,
			r.Pages,
			r.Failed,
			duration,
			r.Seed,
		)
		if r.Error != "" {
			fmt.Fprintf(out, "  %36s  error: %s\n", "", r.Error)
		}
	}
	fmt.Fprintln(out, "\nUse 'sitegraph report --run <id>' to summarize a run.")
}

// historyEntry is the JSON form of a run.
type historyEntry struct {
	ID               string     `json:"id"`
	Seed             string     `json:"seed"`
	Domain           string     `json:"domain"`
	OutputPath       string     `json:"output_path"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at"`
	Status           string     `json:"status"`
	Pages            int        `json:"pages"`
	Failed           int        `json:"failed"`
	SnapshotFailures int        `json:"snapshot_failures"`
	Error            string     `json:"error,omitempty"`
}

func writeHistoryJSON(out io.Writer, runs []database.Run) error {
	entries := make([]historyEntry, len(runs))
	for i, r := range runs {
		entries[i] = historyEntry{
			ID:               r.ID,
			Seed:             r.Seed,
			Domain:           r.Domain,
			OutputPath:       r.OutputPath,
			StartedAt:        r.StartedAt,
			Status:           string(r.Status),
			Pages:            r.Pages,
			Failed:           r.Failed,
			SnapshotFailures: r.SnapshotFailures,
			Error:            r.Error,
		}
		if !r.FinishedAt.IsZero() {
			finished := r.FinishedAt
			entries[i].FinishedAt = &finished
		}
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}
