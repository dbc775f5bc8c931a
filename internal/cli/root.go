// Package cli provides the concierge command-line interface. It runs the
// booking pipeline locally against a JSON state file.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/astracare/internal/agent"
	"github.com/wolfman30/astracare/internal/catalog"
)

// Version is set at build time.
var Version = "0.1.0"

// app holds state shared by every subcommand.
type app struct {
	catalogPath string
	scoringPath string
	statePath   string
	noColor     bool

	now func() time.Time
	dir *catalog.Catalog
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{now: time.Now})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "concierge",
		Short: "Match patients to providers and hold appointment slots",
		Long: `Concierge runs the AstraCare booking pipeline from the terminal.

Each "ask" turn reads the session from a JSON state file, triages the
request, shortlists providers, holds the best slot and writes the
updated session back.

Examples:
  concierge ask "I need a virtual follow-up for my heart check this week"
  concierge ask "Any evening openings?" --time evenings
  concierge brief "Recurring palpitations after exercise" --specialty cardiology
  concierge providers`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			applyColor(a.noColor)
		},
	}

	root.PersistentFlags().StringVar(&a.catalogPath, "catalog", "", "provider catalog YAML (default: built-in directory)")
	root.PersistentFlags().StringVar(&a.scoringPath, "scoring", "", "scoring settings YAML overlay")
	root.PersistentFlags().StringVarP(&a.statePath, "state", "s", "concierge-session.json", "session state file")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newAskCmd(a))
	root.AddCommand(newBriefCmd(a))
	root.AddCommand(newShowCmd(a))
	root.AddCommand(newResetCmd(a))
	root.AddCommand(newProvidersCmd(a))
	root.AddCommand(newPromptsCmd())
	return root
}

// Execute runs the CLI and reports errors on stderr.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// directory loads the catalog once per process.
func (a *app) directory() (*catalog.Catalog, error) {
	if a.dir != nil {
		return a.dir, nil
	}
	var err error
	if a.catalogPath != "" {
		a.dir, err = catalog.LoadFile(a.catalogPath, a.now())
	} else {
		a.dir, err = catalog.LoadDefault(a.now())
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return a.dir, nil
}

func (a *app) pipeline() (*agent.Pipeline, error) {
	dir, err := a.directory()
	if err != nil {
		return nil, err
	}
	settings := agent.DefaultSettings()
	if a.scoringPath != "" {
		f, err := os.Open(a.scoringPath)
		if err != nil {
			return nil, fmt.Errorf("open scoring settings: %w", err)
		}
		defer f.Close()
		if settings, err = agent.LoadSettings(f); err != nil {
			return nil, fmt.Errorf("scoring settings: %w", err)
		}
	}
	return agent.NewPipeline(dir, agent.WithSettings(settings), agent.WithClock(a.now))
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
