package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wolfman30/astracare/internal/agent"
	"github.com/wolfman30/astracare/internal/catalog"
)

func newProvidersCmd(a *app) *cobra.Command {
	var (
		specialty string
		asJSON    bool
		openings  int
	)
	cmd := &cobra.Command{
		Use:   "providers [id]",
		Short: "List providers, or show one provider's profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.directory()
			if err != nil {
				return err
			}
			var list []catalog.Provider
			if len(args) == 1 {
				p, ok := dir.Lookup(args[0])
				if !ok {
					return fmt.Errorf("unknown provider %q", args[0])
				}
				list = []catalog.Provider{p}
			} else {
				var filter catalog.Specialty
				if specialty != "" {
					sp, ok := catalog.ParseSpecialty(specialty)
					if !ok {
						return fmt.Errorf("unknown specialty %q", specialty)
					}
					filter = sp
				}
				for _, p := range dir.All() {
					if filter == "" || p.Specialty == filter {
						list = append(list, p)
					}
				}
			}

			if openings < 0 {
				openings = 0
			}
			w := out(cmd)
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			for _, p := range list {
				fmt.Fprintf(w, "%s  %s · %s · ★ %.1f\n", color.New(color.Bold).Sprint(p.Name), p.ID, p.Specialty, p.Rating)
				if len(p.Focus) > 0 {
					fmt.Fprintf(w, "    focus: %s\n", strings.Join(p.Focus, ", "))
				}
				channels := make([]string, len(p.AcceptedChannels))
				for i, c := range p.AcceptedChannels {
					channels[i] = string(c)
				}
				fmt.Fprintf(w, "    channels: %s\n", strings.Join(channels, ", "))
				upcoming := p.Upcoming(a.now())
				if len(args) == 1 && p.Bio != "" {
					fmt.Fprintf(w, "    %s\n", strings.TrimSpace(p.Bio))
				}
				if len(upcoming) > openings {
					upcoming = upcoming[:openings]
				}
				for _, s := range upcoming {
					ch := string(s.Channel)
					if ch == "" {
						ch = "any channel"
					}
					fmt.Fprintf(w, "    - %s (%s)\n", s.Start.Format(displayLayout), ch)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&specialty, "specialty", "", "only list this specialty")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().IntVar(&openings, "openings", 3, "upcoming openings to show per provider")
	return cmd
}

func newPromptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompts",
		Short: "Print example requests",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range agent.QuickPrompts {
				fmt.Fprintln(out(cmd), p)
			}
		},
	}
}
