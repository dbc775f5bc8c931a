package agent

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wolfman30/astracare/internal/catalog"
)

// Weights are the composite-score weights. They must sum to 1.
type Weights struct {
	Specialty float64 `yaml:"specialty" json:"specialty"`
	Focus     float64 `yaml:"focus" json:"focus"`
	Channel   float64 `yaml:"channel" json:"channel"`
	Urgency   float64 `yaml:"urgency" json:"urgency"`
	Rating    float64 `yaml:"rating" json:"rating"`
}

// Sum is the total of all weights.
func (w Weights) Sum() float64 {
	return w.Specialty + w.Focus + w.Channel + w.Urgency + w.Rating
}

// HourRange is a half-open [From, To) range of local clock hours.
type HourRange struct {
	From int `yaml:"from" json:"from"`
	To   int `yaml:"to" json:"to"`
}

// Contains reports whether t's local hour falls inside the range.
func (r HourRange) Contains(t time.Time) bool {
	h := t.Hour()
	return h >= r.From && h < r.To
}

// SpecialtyCues maps keywords to a specialty. A weak group only applies
// when no other specialty group matched.
type SpecialtyCues struct {
	Specialty catalog.Specialty `yaml:"specialty"`
	Cues      []string          `yaml:"cues"`
	Weak      bool              `yaml:"weak"`
}

// UrgencyCues maps keywords to an urgency.
type UrgencyCues struct {
	Urgency Urgency  `yaml:"urgency"`
	Cues    []string `yaml:"cues"`
}

// ChannelCues maps keywords to a visit channel.
type ChannelCues struct {
	Channel catalog.Channel `yaml:"channel"`
	Cues    []string        `yaml:"cues"`
}

// TimeOfDayCues maps keywords to a time-of-day bucket.
type TimeOfDayCues struct {
	TimeOfDay TimeOfDay `yaml:"time_of_day"`
	Cues      []string  `yaml:"cues"`
}

// Settings is every tuning constant and keyword dictionary the pipeline uses.
type Settings struct {
	Weights           Weights                                   `yaml:"weights"`
	ShortlistSize     int                                       `yaml:"shortlist_size"`
	MaxMatchedSlots   int                                       `yaml:"max_matched_slots"`
	MinScore          float64                                   `yaml:"min_score"`
	DefaultConfidence float64                                   `yaml:"default_confidence"`
	RelatedCredit     float64                                   `yaml:"related_credit"`
	Related           map[catalog.Specialty][]catalog.Specialty `yaml:"related"`
	UrgencyHorizons   map[Urgency]time.Duration                 `yaml:"urgency_horizons"`
	TimeBuckets       map[TimeOfDay]HourRange                   `yaml:"time_buckets"`
	DefaultReason     string                                    `yaml:"default_reason"`
	SpecialtyCues     []SpecialtyCues                           `yaml:"specialty_cues"`
	UrgencyCues       []UrgencyCues                             `yaml:"urgency_cues"`
	ChannelCues       []ChannelCues                             `yaml:"channel_cues"`
	TimeOfDayCues     []TimeOfDayCues                           `yaml:"time_of_day_cues"`
	StopWords         []string                                  `yaml:"stop_words"`
}

// DefaultSettings returns the documented defaults:
//
//	weights: specialty 0.35, focus 0.20, channel 0.15, urgency 0.15, rating 0.15
//	shortlist 3, matched slots 5, min score 0.30, default confidence 0.72
//	horizons: Urgent 24h, Soon 72h, Routine 14 days
//	buckets: Mornings 06-12, Afternoons 12-17, Evenings 17-22
func DefaultSettings() Settings {
	return Settings{
		Weights: Weights{
			Specialty: 0.35,
			Focus:     0.20,
			Channel:   0.15,
			Urgency:   0.15,
			Rating:    0.15,
		},
		ShortlistSize:     3,
		MaxMatchedSlots:   5,
		MinScore:          0.30,
		DefaultConfidence: 0.72,
		RelatedCredit:     0.5,
		Related: map[catalog.Specialty][]catalog.Specialty{
			catalog.SpecialtyPrimaryCare: {catalog.SpecialtyPediatrics},
			catalog.SpecialtyPediatrics:  {catalog.SpecialtyPrimaryCare},
			catalog.SpecialtyNeurology:   {catalog.SpecialtyOrthopedics},
			catalog.SpecialtyOrthopedics: {catalog.SpecialtyNeurology},
		},
		UrgencyHorizons: map[Urgency]time.Duration{
			UrgencyUrgent:  24 * time.Hour,
			UrgencySoon:    72 * time.Hour,
			UrgencyRoutine: 14 * 24 * time.Hour,
		},
		TimeBuckets: map[TimeOfDay]HourRange{
			Mornings:   {From: 6, To: 12},
			Afternoons: {From: 12, To: 17},
			Evenings:   {From: 17, To: 22},
		},
		DefaultReason: "General consultation",
		SpecialtyCues: []SpecialtyCues{
			{Specialty: catalog.SpecialtyPediatrics, Cues: []string{"child", "kid", "toddler", "infant", "baby", "my son", "my daughter", "pediatric"}},
			{Specialty: catalog.SpecialtyCardiology, Cues: []string{"cardiac", "heart", "cardio", "palpitation", "chest pain"}},
			{Specialty: catalog.SpecialtyDermatology, Cues: []string{"skin", "rash", "derm", "acne", "eczema", "mole"}},
			{Specialty: catalog.SpecialtyOrthopedics, Cues: []string{"bone", "joint", "ortho", "knee", "fracture", "sprain"}},
			{Specialty: catalog.SpecialtyNeurology, Cues: []string{"headache", "neuro", "migraine", "seizure", "dizz"}},
			{Specialty: catalog.SpecialtyPrimaryCare, Weak: true, Cues: []string{"primary care", "checkup", "check-up", "physical", "fever", "flu", "cough", "family doctor"}},
		},
		UrgencyCues: []UrgencyCues{
			{Urgency: UrgencyUrgent, Cues: []string{"urgent", "emergency", "asap", "as soon as possible", "right away", "immediately", "earliest"}},
			{Urgency: UrgencySoon, Cues: []string{"soon", "this week", "tomorrow", "next few days"}},
		},
		ChannelCues: []ChannelCues{
			{Channel: catalog.ChannelVirtual, Cues: []string{"virtual", "video", "call", "telehealth", "online", "remote"}},
			{Channel: catalog.ChannelInPerson, Cues: []string{"in person", "in-person", "office", "clinic", "face to face"}},
		},
		TimeOfDayCues: []TimeOfDayCues{
			{TimeOfDay: Mornings, Cues: []string{"morning", "before noon"}},
			{TimeOfDay: Afternoons, Cues: []string{"afternoon", "midday", "lunch"}},
			{TimeOfDay: Evenings, Cues: []string{"evening", "after work", "tonight", "night"}},
		},
		StopWords: []string{
			"the", "and", "for", "with", "have", "has", "had", "need", "want", "please",
			"this", "that", "some", "about", "doctor", "visit", "appointment", "follow",
			"find", "who", "available", "new", "can", "you", "are", "was", "been", "get",
		},
	}
}

type namedValue struct {
	name  string
	value float64
}

// Validate checks the settings for values the pipeline cannot work with.
func (s Settings) Validate() error {
	var errs []error
	w := s.Weights
	for _, f := range []namedValue{
		{"specialty", w.Specialty}, {"focus", w.Focus}, {"channel", w.Channel}, {"urgency", w.Urgency}, {"rating", w.Rating},
	} {
		if f.value < 0 {
			errs = append(errs, fmt.Errorf("weight %s is negative", f.name))
		}
	}
	if math.Abs(w.Sum()-1) > 1e-6 {
		errs = append(errs, fmt.Errorf("weights sum to %.4f, want 1", w.Sum()))
	}
	if s.ShortlistSize < 1 {
		errs = append(errs, errors.New("shortlist_size must be at least 1"))
	}
	if s.MaxMatchedSlots < 1 {
		errs = append(errs, errors.New("max_matched_slots must be at least 1"))
	}
	for _, f := range []namedValue{
		{"min_score", s.MinScore}, {"default_confidence", s.DefaultConfidence}, {"related_credit", s.RelatedCredit},
	} {
		if f.value < 0 || f.value > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1]", f.name))
		}
	}
	for _, u := range []Urgency{UrgencyRoutine, UrgencySoon, UrgencyUrgent} {
		if s.UrgencyHorizons[u] <= 0 {
			errs = append(errs, fmt.Errorf("urgency horizon for %s must be positive", u))
		}
	}
	for _, t := range []TimeOfDay{Mornings, Afternoons, Evenings} {
		r, ok := s.TimeBuckets[t]
		if !ok || r.From < 0 || r.To > 24 || r.From >= r.To {
			errs = append(errs, fmt.Errorf("time bucket for %s is invalid", t))
		}
	}
	for _, g := range s.SpecialtyCues {
		if !g.Specialty.Valid() {
			errs = append(errs, fmt.Errorf("specialty cue group has unknown specialty %q", g.Specialty))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("agent: invalid settings: %w", err)
	}
	return nil
}

// LoadSettings overlays a YAML document on DefaultSettings and validates the
// result. Lists in the document replace the defaults; maps are merged.
func LoadSettings(r io.Reader) (Settings, error) {
	s := DefaultSettings()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("agent: decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
