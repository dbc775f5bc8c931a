package agent

import (
	"strings"

	"github.com/wolfman30/astracare/internal/catalog"
)

// Triage resolves the signal set for one run. Explicit overrides beat cues
// inferred from this turn's text, which beat the previous signals. Routine
// urgency is applied only when nothing else set one.
func Triage(s Settings, text string, previous, overrides Signals) Signals {
	out := previous.overlay(Infer(s, text)).overlay(overrides)
	if !out.Urgency.Valid() {
		out.Urgency = UrgencyRoutine
	}
	return out
}

// Infer extracts signals from free text using the keyword dictionaries.
// Fields without a matching cue are left unset.
func Infer(s Settings, text string) Signals {
	lower := strings.ToLower(text)
	var sig Signals

	sig.Specialty = inferSpecialty(s.SpecialtyCues, lower)

	urgency := make([][]string, len(s.UrgencyCues))
	for i, g := range s.UrgencyCues {
		urgency[i] = g.Cues
	}
	if i := earliestGroup(lower, urgency); i >= 0 {
		sig.Urgency = s.UrgencyCues[i].Urgency
	}

	channel := make([][]string, len(s.ChannelCues))
	for i, g := range s.ChannelCues {
		channel[i] = g.Cues
	}
	if i := earliestGroup(lower, channel); i >= 0 {
		sig.Channel = s.ChannelCues[i].Channel
	}

	tod := make([][]string, len(s.TimeOfDayCues))
	for i, g := range s.TimeOfDayCues {
		tod[i] = g.Cues
	}
	if i := earliestGroup(lower, tod); i >= 0 {
		sig.TimeOfDay = s.TimeOfDayCues[i].TimeOfDay
	}

	sig.Symptoms = strings.TrimSpace(text)
	return sig
}

func inferSpecialty(groups []SpecialtyCues, lower string) catalog.Specialty {
	for _, weak := range []bool{false, true} {
		var idx []int
		var cues [][]string
		for i, g := range groups {
			if g.Weak == weak {
				idx = append(idx, i)
				cues = append(cues, g.Cues)
			}
		}
		if i := earliestGroup(lower, cues); i >= 0 {
			return groups[idx[i]].Specialty
		}
	}
	return ""
}

// earliestGroup returns the index of the group whose cue appears first in
// text, or -1 when no cue matches. Ties go to the earlier group.
func earliestGroup(text string, groups [][]string) int {
	best, bestPos := -1, len(text)+1
	for i, cues := range groups {
		for _, cue := range cues {
			cue = strings.ToLower(strings.TrimSpace(cue))
			if cue == "" {
				continue
			}
			if pos := strings.Index(text, cue); pos >= 0 && pos < bestPos {
				best, bestPos = i, pos
			}
		}
	}
	return best
}
