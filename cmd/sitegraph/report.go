package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitegraph/internal/config"
	"github.com/nao1215/sitegraph/internal/database"
	"github.com/nao1215/sitegraph/internal/graph"
	"github.com/nao1215/sitegraph/internal/model"
	"github.com/nao1215/sitegraph/internal/report"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [graph.json]",
		Short: "Summarize a link graph",
		Long: `Report summarizes a link graph: page and link counts, the content-type
breakdown, pages without a snapshot, links that were never recorded, and
the most linked pages.

The graph is read from a file written by "sitegraph crawl", or from the
history database with --run.

Examples:
  # Summarize a graph file
  sitegraph report ~/.local/share/sitegraph/graphs/example.com.json

  # Summarize a past run (see "sitegraph history" for IDs)
  sitegraph report --run 3f1c2a9e-...

  # Write a Markdown report
  sitegraph report --markdown -o report.md example.com.json

  # List the pages linking to a URL
  sitegraph report --inbound https://example.com/pricing example.com.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReportCmd,
	}

	cmd.Flags().String("run", "",
		"Read the graph of a crawl run from the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to the specified file (creates directories if needed)")
	cmd.Flags().Int("top", report.DefaultTopLinked,
		"Number of most linked pages to list")
	cmd.Flags().String("inbound", "",
		"List the pages linking to this URL instead of the summary")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// reportOptions are the parsed flags of the report command.
type reportOptions struct {
	graphPath string
	runID     string
	dbDir     string
	json      bool
	markdown  bool
	output    string
	top       int
	inbound   string
	verbose   bool
}

func runReportCmd(cmd *cobra.Command, args []string) error {
	opts := reportOptions{verbose: getBoolFlag(cmd, "verbose")}
	if len(args) == 1 {
		opts.graphPath = args[0]
	}

	var err error
	flags := cmd.Flags()
	if opts.runID, err = flags.GetString("run"); err != nil {
		return err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if opts.output, err = flags.GetString("output"); err != nil {
		return err
	}
	if opts.top, err = flags.GetInt("top"); err != nil {
		return err
	}
	if opts.inbound, err = flags.GetString("inbound"); err != nil {
		return err
	}

	return runReport(context.Background(), opts, cmd.OutOrStdout())
}

func runReport(ctx context.Context, opts reportOptions, stdout io.Writer) error {
	switch {
	case opts.graphPath == "" && opts.runID == "":
		return errors.New("no graph given (pass a graph file or --run <id>)")
	case opts.graphPath != "" && opts.runID != "":
		return errors.New("pass either a graph file or --run, not both")
	}

	g, inbound, err := loadReportGraph(ctx, opts)
	if err != nil {
		return err
	}

	out := stdout
	if opts.output != "" {
		f, err := createReportFile(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if opts.inbound != "" {
		return writeInbound(out, opts.inbound, inbound)
	}

	summary := report.NewSummary(g, report.WithTopLinked(opts.top))
	var w report.Writer
	switch {
	case opts.json:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(opts.verbose))
	}
	_, err = w.WriteSummary(summary)
	return err
}

// loadReportGraph reads the graph and, when --inbound is set, the pages
// linking to that URL.
func loadReportGraph(ctx context.Context, opts reportOptions) (*model.LinkGraph, []string, error) {
	if opts.graphPath != "" {
		g, err := graph.Load(opts.graphPath)
		if err != nil {
			return nil, nil, err
		}
		var inbound []string
		if opts.inbound != "" {
			inbound = inboundLinks(g, opts.inbound)
		}
		return g, inbound, nil
	}

	db, err := database.Open(opts.dbDir, database.DefaultOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	g, err := db.LoadGraph(ctx, opts.runID)
	if err != nil {
		return nil, nil, err
	}
	var inbound []string
	if opts.inbound != "" {
		if inbound, err = db.Inbound(ctx, opts.runID, opts.inbound); err != nil {
			return nil, nil, err
		}
	}
	return g, inbound, nil
}

// inboundLinks returns the pages of g whose children include target, sorted.
func inboundLinks(g *model.LinkGraph, target string) []string {
	var links []string
	for _, e := range g.Edges() {
		if e.To == target {
			links = append(links, e.From)
		}
	}
	slices.Sort(links)
	return links
}

func writeInbound(out io.Writer, target string, links []string) error {
	if len(links) == 0 {
		_, err := fmt.Fprintf(out, "No recorded page links to %s\n", target)
		return err
	}
	if _, err := fmt.Fprintf(out, "Pages linking to %s (%d):\n", target, len(links)); err != nil {
		return err
	}
	for _, l := range links {
		if _, err := fmt.Fprintf(out, "  %s\n", l); err != nil {
			return err
		}
	}
	return nil
}

// createReportFile creates path and its parent directories.
func createReportFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // user-provided output path
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
