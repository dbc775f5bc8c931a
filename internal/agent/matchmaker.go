package agent

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/wolfman30/astracare/internal/catalog"
)

// Directory is the read-only provider catalog the pipeline consults.
type Directory interface {
	Lookup(id string) (catalog.Provider, bool)
	All() []catalog.Provider
}

const (
	// unconstrainedChannelScore is the channel sub-score when the patient
	// has no channel preference.
	unconstrainedChannelScore = 0.5
	// slotChannelMismatchFit is a slot's channel fit when it cannot be taken
	// over the requested channel.
	slotChannelMismatchFit = 0.4
	// minStemLength is the shared prefix length at which two tokens count as
	// the same word ("palpitation" and "palpitations").
	minStemLength = 5
	maxRationaleParts = 2
)

type scoredProvider struct {
	provider     catalog.Provider
	breakdown    ScoreBreakdown
	score        float64
	matchedFocus []string
}

// Match scores every catalog provider against the signals and returns the
// top-K shortlist, best first. Only providers in the resolved specialty or a
// related one are eligible; focus tags rank within that set. Without a
// specialty the shortlist is empty, which is a valid outcome.
func Match(s Settings, sig Signals, dir Directory, now time.Time) []Suggestion {
	if dir == nil || sig.Specialty == "" {
		return nil
	}
	symptoms := tokenize(sig.Symptoms, s.StopWords)

	var eligible []scoredProvider
	for _, p := range dir.All() {
		sp := scoreProvider(s, sig, symptoms, p, now)
		if sp.breakdown.Specialty <= 0 {
			continue
		}
		if sp.score < s.MinScore {
			continue
		}
		eligible = append(eligible, sp)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return rankBefore(eligible[i], eligible[j])
	})
	if len(eligible) > s.ShortlistSize {
		eligible = eligible[:s.ShortlistSize]
	}

	out := make([]Suggestion, 0, len(eligible))
	for _, sp := range eligible {
		out = append(out, Suggestion{
			ID:           "sugg-" + sp.provider.ID,
			ProviderID:   sp.provider.ID,
			Rationale:    rationale(s, sig, sp),
			Score:        sp.score,
			Breakdown:    sp.breakdown,
			MatchedSlots: matchSlots(s, sig, sp, now),
		})
	}
	return out
}

// rankBefore orders by composite score descending, then rating descending,
// then provider name and id ascending.
func rankBefore(a, b scoredProvider) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.provider.Rating != b.provider.Rating {
		return a.provider.Rating > b.provider.Rating
	}
	if a.provider.Name != b.provider.Name {
		return a.provider.Name < b.provider.Name
	}
	return a.provider.ID < b.provider.ID
}

func scoreProvider(s Settings, sig Signals, symptoms []string, p catalog.Provider, now time.Time) scoredProvider {
	focus, matched := focusScore(symptoms, p.Focus, s.StopWords)
	b := ScoreBreakdown{
		Specialty: specialtyScore(s, sig.Specialty, p.Specialty),
		Focus:     focus,
		Channel:   channelScore(sig.Channel, p),
		Urgency:   urgencyScore(s, sig.Urgency, p, now),
		Rating:    clamp01(p.Rating / 5),
	}
	w := s.Weights
	score := w.Specialty*b.Specialty + w.Focus*b.Focus + w.Channel*b.Channel + w.Urgency*b.Urgency + w.Rating*b.Rating
	return scoredProvider{provider: p, breakdown: b, score: clamp01(score), matchedFocus: matched}
}

func specialtyScore(s Settings, want, have catalog.Specialty) float64 {
	if want == "" {
		return 0
	}
	if want == have {
		return 1
	}
	for _, rel := range s.Related[want] {
		if rel == have {
			return s.RelatedCredit
		}
	}
	return 0
}

func channelScore(want catalog.Channel, p catalog.Provider) float64 {
	switch {
	case want == "":
		return unconstrainedChannelScore
	case p.Accepts(want):
		return 1
	default:
		return 0
	}
}

// urgencyScore is h/(h+wait): 1 when the provider is free now, 0.5 when the
// wait equals the urgency horizon, approaching 0 beyond it.
func urgencyScore(s Settings, u Urgency, p catalog.Provider, now time.Time) float64 {
	next, ok := nextAvailable(p, now)
	if !ok {
		return 0
	}
	return recency(horizon(s, u), next.Sub(now))
}

func horizon(s Settings, u Urgency) time.Duration {
	if !u.Valid() {
		u = UrgencyRoutine
	}
	return s.UrgencyHorizons[u]
}

func recency(h, wait time.Duration) float64 {
	if wait <= 0 {
		return 1
	}
	if h <= 0 {
		return 0
	}
	return float64(h) / float64(h+wait)
}

func nextAvailable(p catalog.Provider, now time.Time) (time.Time, bool) {
	if !p.NextAvailable.IsZero() && !p.NextAvailable.Before(now) {
		return p.NextAvailable, true
	}
	if up := p.Upcoming(now); len(up) > 0 {
		return up[0].Start, true
	}
	return time.Time{}, false
}

// focusScore is the fraction of the provider's focus-tag tokens that appear
// among the symptom tokens. It also returns the tags that matched.
func focusScore(symptoms []string, focus []string, stop []string) (float64, []string) {
	if len(symptoms) == 0 || len(focus) == 0 {
		return 0, nil
	}
	seen := map[string]bool{}
	var total, hits int
	var matched []string
	for _, tag := range focus {
		tagHit := false
		for _, tok := range tokenize(tag, stop) {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			total++
			if containsToken(symptoms, tok) {
				hits++
				tagHit = true
			}
		}
		if tagHit {
			matched = append(matched, tag)
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(hits) / float64(total), matched
}

func containsToken(tokens []string, tok string) bool {
	for _, t := range tokens {
		if t == tok || sharedPrefix(t, tok) >= minStemLength {
			return true
		}
	}
	return false
}

func sharedPrefix(a, b string) int {
	ar, br := []rune(a), []rune(b)
	n := 0
	for n < len(ar) && n < len(br) && ar[n] == br[n] {
		n++
	}
	return n
}

// tokenize lowercases text and splits it into words of three or more runes,
// dropping stop words. Order is preserved and duplicates removed.
func tokenize(text string, stop []string) []string {
	stopSet := make(map[string]bool, len(stop))
	for _, w := range stop {
		stopSet[w] = true
	}
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := map[string]bool{}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 3 || stopSet[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

type contribution struct {
	value  float64
	phrase string
}

// rationale leads with the specialty fit that made the provider eligible and
// adds the largest remaining weighted contribution, for example
// "Matched your cardiology focus and virtual preference."
func rationale(s Settings, sig Signals, sp scoredProvider) string {
	w, b, p := s.Weights, sp.breakdown, sp.provider
	var lead string
	switch {
	case b.Specialty >= 1:
		lead = fmt.Sprintf("your %s focus", strings.ToLower(string(p.Specialty)))
	case b.Specialty > 0:
		lead = fmt.Sprintf("related %s expertise", strings.ToLower(string(p.Specialty)))
	}

	var rest []contribution
	if b.Focus > 0 && len(sp.matchedFocus) > 0 {
		tags := sp.matchedFocus
		if len(tags) > 2 {
			tags = tags[:2]
		}
		rest = append(rest, contribution{w.Focus * b.Focus, fmt.Sprintf("your symptoms (%s)", strings.Join(tags, ", "))})
	}
	if sig.Channel != "" && b.Channel >= 1 {
		rest = append(rest, contribution{w.Channel * b.Channel, fmt.Sprintf("%s preference", strings.ToLower(string(sig.Channel)))})
	}
	if b.Urgency >= 0.5 {
		rest = append(rest, contribution{w.Urgency * b.Urgency, "early availability"})
	}
	if b.Rating > 0 {
		rest = append(rest, contribution{w.Rating * b.Rating, fmt.Sprintf("%.1f-star patient rating", p.Rating)})
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].value > rest[j].value })

	phrases := make([]string, 0, maxRationaleParts)
	if lead != "" {
		phrases = append(phrases, lead)
	}
	for _, c := range rest {
		if len(phrases) == maxRationaleParts {
			break
		}
		phrases = append(phrases, c.phrase)
	}
	switch len(phrases) {
	case 0:
		return "Closest available option in the directory."
	case 1:
		return fmt.Sprintf("Matched %s.", phrases[0])
	default:
		return fmt.Sprintf("Matched %s and %s.", phrases[0], phrases[1])
	}
}

// matchSlots annotates up to MaxMatchedSlots upcoming slots. Confidence is
// the composite score scaled by the slot's channel and recency fit.
func matchSlots(s Settings, sig Signals, sp scoredProvider, now time.Time) []MatchedSlot {
	p := sp.provider
	up := p.Upcoming(now)
	if len(up) > s.MaxMatchedSlots {
		up = up[:s.MaxMatchedSlots]
	}
	h := horizon(s, sig.Urgency)
	out := make([]MatchedSlot, 0, len(up))
	for _, slot := range up {
		fit := (slotChannelFit(sig.Channel, slot, p) + recency(h, slot.Start.Sub(now))) / 2
		out = append(out, MatchedSlot{
			Start:      slot.Start,
			End:        slot.End,
			Channel:    slotChannel(sig.Channel, slot, p),
			Confidence: clamp01(sp.score * (0.5 + 0.5*fit)),
		})
	}
	return out
}

func slotAccepts(want catalog.Channel, slot catalog.Slot, p catalog.Provider) bool {
	if want == "" {
		return true
	}
	if slot.Channel == "" {
		return p.Accepts(want)
	}
	return slot.Channel == want
}

func slotChannelFit(want catalog.Channel, slot catalog.Slot, p catalog.Provider) float64 {
	if slotAccepts(want, slot, p) {
		return 1
	}
	return slotChannelMismatchFit
}

// slotChannel is the channel a booking of slot would use: the slot's own
// channel, else the requested channel when accepted, else the provider's
// first accepted channel.
func slotChannel(want catalog.Channel, slot catalog.Slot, p catalog.Provider) catalog.Channel {
	if slot.Channel != "" {
		return slot.Channel
	}
	if want != "" && p.Accepts(want) {
		return want
	}
	if len(p.AcceptedChannels) > 0 {
		return p.AcceptedChannels[0]
	}
	return ""
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
