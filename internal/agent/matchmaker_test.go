package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/astracare/internal/catalog"
)

func TestMatchHeartCheck(t *testing.T) {
	s := DefaultSettings()
	sig := Triage(s, "I need a virtual follow-up for my heart check this week.", Signals{}, Signals{})

	got := Match(s, sig, testCatalog(t), testNow)
	require.Len(t, got, 2)
	assert.Equal(t, "card-virtual", got[0].ProviderID)
	assert.Equal(t, "sugg-card-virtual", got[0].ID)
	assert.Equal(t, "card-office", got[1].ProviderID)

	top := got[0]
	assert.Equal(t, 1.0, top.Breakdown.Specialty)
	assert.Equal(t, 1.0, top.Breakdown.Channel)
	assert.InDelta(t, 1.0/3, top.Breakdown.Focus, 1e-9)
	assert.Equal(t, "Matched your cardiology focus and virtual preference.", top.Rationale)
	assert.Equal(t, 0.0, got[1].Breakdown.Channel)
	assert.Equal(t, "Matched your cardiology focus and 4.7-star patient rating.", got[1].Rationale)
}

func TestMatchOrderingInvariant(t *testing.T) {
	s := DefaultSettings()
	dir, err := catalog.LoadDefault(testNow)
	require.NoError(t, err)

	prompts := append([]string{"knee pain after running", "migraine and dizziness", "cough"}, QuickPrompts...)
	for _, prompt := range prompts {
		got := Match(s, Triage(s, prompt, Signals{}, Signals{}), dir, testNow)
		assert.LessOrEqual(t, len(got), s.ShortlistSize, prompt)
		for i := 1; i < len(got); i++ {
			prev, cur := got[i-1], got[i]
			assert.GreaterOrEqual(t, prev.Score, cur.Score, prompt)
			if prev.Score == cur.Score {
				pp, _ := dir.Lookup(prev.ProviderID)
				cp, _ := dir.Lookup(cur.ProviderID)
				assert.GreaterOrEqual(t, pp.Rating, cp.Rating, prompt)
			}
		}
		for _, sg := range got {
			assert.GreaterOrEqual(t, sg.Score, s.MinScore)
			assert.LessOrEqual(t, len(sg.MatchedSlots), s.MaxMatchedSlots)
			for i, ms := range sg.MatchedSlots {
				assert.GreaterOrEqual(t, ms.Confidence, 0.0)
				assert.LessOrEqual(t, ms.Confidence, sg.Score)
				assert.False(t, ms.Start.Before(testNow))
				if i > 0 {
					assert.False(t, ms.Start.Before(sg.MatchedSlots[i-1].Start))
				}
			}
		}
	}
}

func TestMatchTieBreaksByName(t *testing.T) {
	base := catalog.Provider{
		Specialty:        catalog.SpecialtyNeurology,
		AcceptedChannels: []catalog.Channel{catalog.ChannelVirtual},
		Rating:           4.5,
		Slots:            []catalog.Slot{slot(1, 9, 0, catalog.ChannelVirtual)},
	}
	zed, amy := base, base
	zed.ID, zed.Name = "a-zed", "Dr. Zed"
	amy.ID, amy.Name = "b-amy", "Dr. Amy"
	dir, err := catalog.New([]catalog.Provider{zed, amy})
	require.NoError(t, err)

	got := Match(DefaultSettings(), Signals{Specialty: catalog.SpecialtyNeurology, Urgency: UrgencyRoutine}, dir, testNow)
	require.Len(t, got, 2)
	assert.Equal(t, got[0].Score, got[1].Score)
	assert.Equal(t, "b-amy", got[0].ProviderID)
}

func TestMatchNoKeywordsIsEmpty(t *testing.T) {
	s := DefaultSettings()
	got := Match(s, Triage(s, "Hello there", Signals{}, Signals{}), testCatalog(t), testNow)
	assert.Empty(t, got)
}

func TestMatchRelatedSpecialty(t *testing.T) {
	s := DefaultSettings()
	got := Match(s, Signals{Specialty: catalog.SpecialtyPediatrics, Urgency: UrgencyRoutine}, testCatalog(t), testNow)
	require.Len(t, got, 2)
	assert.Equal(t, "peds", got[0].ProviderID)
	assert.Equal(t, "primary", got[1].ProviderID)
	assert.Equal(t, s.RelatedCredit, got[1].Breakdown.Specialty)
	assert.Equal(t, "Matched related primary care expertise and early availability.", got[1].Rationale)
}

func TestMatchMinScoreFilters(t *testing.T) {
	s := DefaultSettings()
	s.MinScore = 0.99
	got := Match(s, Signals{Specialty: catalog.SpecialtyCardiology}, testCatalog(t), testNow)
	assert.Empty(t, got)
}

func TestFocusScoreStems(t *testing.T) {
	stop := DefaultSettings().StopWords
	score, tags := focusScore(tokenize("constant palpitation", stop), []string{"palpitations", "arrhythmia"}, stop)
	assert.Equal(t, 0.5, score)
	assert.Equal(t, []string{"palpitations"}, tags)

	score, tags = focusScore(tokenize("the", stop), []string{"palpitations"}, stop)
	assert.Zero(t, score)
	assert.Nil(t, tags)
}

func TestTokenize(t *testing.T) {
	got := tokenize("My knee, my KNEE and a sprained ankle!", DefaultSettings().StopWords)
	assert.Equal(t, []string{"knee", "sprained", "ankle"}, got)
}

func TestRecency(t *testing.T) {
	assert.Equal(t, 1.0, recency(time.Hour, 0))
	assert.Equal(t, 0.5, recency(24*time.Hour, 24*time.Hour))
	assert.Zero(t, recency(0, time.Hour))
}

func TestSuggestionConfidenceFallback(t *testing.T) {
	assert.Equal(t, 0.72, Suggestion{}.Confidence(0.72))
	assert.Equal(t, 0.4, Suggestion{MatchedSlots: []MatchedSlot{{Confidence: 0.4}}}.Confidence(0.72))
}

func TestMatchFocusTagsAloneDoNotShortlist(t *testing.T) {
	s := DefaultSettings()
	dir, err := catalog.LoadDefault(testNow)
	require.NoError(t, err)

	for _, text := range []string{
		"Following up on my hypertension",
		"I have diabetes questions",
		"Need a vaccination appointment",
	} {
		t.Run(text, func(t *testing.T) {
			sig := Triage(s, text, Signals{}, Signals{})
			require.Empty(t, sig.Specialty)
			assert.Empty(t, Match(s, sig, dir, testNow))
		})
	}
}

func TestRationaleLeadsWithSpecialty(t *testing.T) {
	s := DefaultSettings()
	s.RelatedCredit = 0.2
	s.MinScore = 0
	got := Match(s, Signals{Specialty: catalog.SpecialtyPediatrics, Urgency: UrgencyRoutine}, testCatalog(t), testNow)
	require.Len(t, got, 2)
	assert.Equal(t, "primary", got[1].ProviderID)
	assert.Regexp(t, `^Matched related primary care expertise and .+\.$`, got[1].Rationale)
}
