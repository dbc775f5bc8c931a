package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolfman30/astracare/internal/agent"
)

// signalFlags are the structured preferences shared by ask and brief.
type signalFlags struct {
	specialty string
	channel   string
	urgency   string
	timeOfDay string
	symptoms  string
}

func (f *signalFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.specialty, "specialty", "", "specialty override (e.g. cardiology)")
	cmd.Flags().StringVar(&f.channel, "channel", "", "visit channel override (virtual, in-person)")
	cmd.Flags().StringVar(&f.urgency, "urgency", "", "urgency override (routine, soon, urgent)")
	cmd.Flags().StringVar(&f.timeOfDay, "time", "", "preferred time of day (mornings, afternoons, evenings)")
	cmd.Flags().StringVar(&f.symptoms, "symptoms", "", "symptoms override")
}

func (f *signalFlags) signals() (agent.Signals, error) {
	return agent.ParseSignals(f.specialty, f.channel, f.urgency, f.timeOfDay, f.symptoms)
}

func newAskCmd(a *app) *cobra.Command {
	var flags signalFlags
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Run one booking turn for the session",
		Long: `Ask runs the booking pipeline for one message. Flags override what is
inferred from the message text; earlier preferences carry over otherwise.

Examples:
  concierge ask "My child has a fever, who is available tomorrow morning?"
  concierge ask "Find me someone" --specialty dermatology --channel virtual`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := flags.signals()
			if err != nil {
				return err
			}
			return a.runTurn(cmd, func(agent.State) agent.Request {
				return agent.Request{Message: strings.Join(args, " "), Overrides: overrides}
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newBriefCmd(a *app) *cobra.Command {
	var flags signalFlags
	cmd := &cobra.Command{
		Use:   "brief [notes]",
		Short: "Dispatch a coordination brief built from saved preferences",
		Long: `Brief saves any preference flags to the session, composes a dispatch
message from the preferences and notes, and runs it through the pipeline
with the notes standing in as symptoms.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := flags.signals()
			if err != nil {
				return err
			}
			notes := strings.Join(args, " ")
			return a.runTurn(cmd, func(prev agent.State) agent.Request {
				sig := prev.Signals
				if !updates.IsZero() {
					sig = prev.WithSignals(updates).Signals
				}
				return agent.BriefRequest(sig, notes)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// runTurn loads the session, runs one request and prints only the messages
// this turn appended.
func (a *app) runTurn(cmd *cobra.Command, build func(agent.State) agent.Request) error {
	p, err := a.pipeline()
	if err != nil {
		return err
	}
	prev, err := loadState(a.statePath)
	if err != nil {
		return err
	}
	next, err := p.Run(prev, build(prev))
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := saveState(a.statePath, next); err != nil {
		return err
	}

	w := out(cmd)
	for _, m := range next.Transcript[len(prev.Transcript):] {
		printMessage(w, m)
	}
	printDraft(w, next.Draft, a.dir)
	return nil
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the session transcript, shortlist and held slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.directory()
			if err != nil {
				return err
			}
			s, err := loadState(a.statePath)
			if err != nil {
				return err
			}
			w := out(cmd)
			if len(s.Transcript) == 0 {
				fmt.Fprintln(w, "No conversation yet. Try: concierge ask \""+agent.QuickPrompts[0]+"\"")
				return nil
			}
			for _, m := range s.Transcript {
				printMessage(w, m)
			}
			printShortlist(w, s.Suggestions, dir)
			printDraft(w, s.Draft, dir)
			printSummary(w, agent.Summarize(s, 0, a.now()))
			return nil
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	var keepTranscript bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear preferences and the held slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadState(a.statePath)
			if err != nil {
				return err
			}
			next := s.ResetSignals().WithoutDraft()
			next.Suggestions = nil
			if !keepTranscript {
				next.Transcript = nil
			}
			if err := saveState(a.statePath, next); err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), successMark()+" session reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepTranscript, "keep-transcript", false, "keep the conversation history")
	return cmd
}
