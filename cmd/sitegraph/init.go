package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitegraph/internal/config"
)

//go:embed templates/sitegraph.yaml
var configTemplate []byte

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a .sitegraph configuration file",
		Long: `Init writes a commented configuration file with crawl defaults and an
example site section (cookies, headers, page limits, URL filters).

Without flags the file is ./.sitegraph. crawl also looks for ~/.sitegraph
and config.yaml in the XDG config directory.

Examples:
  sitegraph init
  sitegraph init -o crawl.yaml
  sitegraph init --xdg -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile, "Path of the file to create")
	cmd.Flags().Bool("xdg", false, "Write config.yaml to the XDG config directory instead")
	cmd.Flags().BoolP("force", "f", false, "Replace an existing file")
	cmd.MarkFlagsMutuallyExclusive("output", "xdg")
	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("output")
	force, _ := cmd.Flags().GetBool("force")
	if useXDG, _ := cmd.Flags().GetBool("xdg"); useXDG {
		path = filepath.Join(config.XDGConfigDir(), config.XDGConfigFile)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	// Site sections may hold session cookies.
	f, err := os.OpenFile(path, flags, 0o600) //nolint:gosec // path comes from the user
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
	}
	if err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}
	if _, err := f.Write(configTemplate); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Add a section under sites: for each domain that needs cookies, headers or limits.")
	return nil
}
