package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/wolfman30/astracare/internal/agent"
	"github.com/wolfman30/astracare/internal/catalog"
)

const displayLayout = "Mon Jan 2 3:04 PM MST"

var roleColors = map[agent.Role]*color.Color{
	agent.RoleUser:       color.New(color.Bold),
	agent.RoleTriage:     color.New(color.FgCyan),
	agent.RoleMatchmaker: color.New(color.FgMagenta),
	agent.RoleScheduling: color.New(color.FgYellow),
	agent.RoleConcierge:  color.New(color.FgGreen),
}

func applyColor(disabled bool) {
	if disabled {
		color.NoColor = true
	}
}

func successMark() string {
	return color.GreenString("✓")
}

func printMessage(w io.Writer, m agent.Message) {
	label := fmt.Sprintf("%-10s", m.Role.String())
	if c, ok := roleColors[m.Role]; ok {
		label = c.Sprint(label)
	}
	fmt.Fprintf(w, "%s %s\n", label, m.Text)
}

func providerName(dir *catalog.Catalog, id string) string {
	if p, ok := dir.Lookup(id); ok {
		return p.Name
	}
	return id
}

func printDraft(w io.Writer, d *agent.DraftAppointment, dir *catalog.Catalog) {
	if d == nil {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s with %s (%s, %s)\n",
		color.YellowString("Held:"),
		d.Start.Format(displayLayout),
		providerName(dir, d.ProviderID),
		d.Channel,
		d.End.Sub(d.Start).Round(time.Minute),
	)
	if len(d.Relaxed) > 0 {
		relaxed := make([]string, len(d.Relaxed))
		for i, c := range d.Relaxed {
			relaxed[i] = strings.ReplaceAll(string(c), "_", " ")
		}
		fmt.Fprintf(w, "      relaxed: %s\n", strings.Join(relaxed, ", "))
	}
}

func printShortlist(w io.Writer, suggestions []agent.Suggestion, dir *catalog.Catalog) {
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, color.CyanString("Shortlist:"))
	for i, sg := range suggestions {
		fmt.Fprintf(w, "  %d. %s  score %.2f  %s\n", i+1, providerName(dir, sg.ProviderID), sg.Score, sg.Rationale)
	}
}

func printSummary(w io.Writer, s agent.Summary) {
	fmt.Fprintln(w)
	last := "never"
	if !s.LastAgentRun.IsZero() {
		last = s.LastAgentRun.Format(displayLayout)
	}
	fmt.Fprintf(w, "matches %d · held %d · last agent run %s\n", s.AgentMatches, s.HeldSlots, last)
}
