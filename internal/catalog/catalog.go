// Package catalog holds the read-only provider directory the booking agents
// consult. A Catalog is an immutable snapshot: every accessor hands out copies,
// so one value can be shared by any number of sessions without locking.
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Specialty is the clinical discipline a provider practices.
type Specialty string

const (
	SpecialtyPrimaryCare Specialty = "Primary Care"
	SpecialtyCardiology  Specialty = "Cardiology"
	SpecialtyDermatology Specialty = "Dermatology"
	SpecialtyPediatrics  Specialty = "Pediatrics"
	SpecialtyNeurology   Specialty = "Neurology"
	SpecialtyOrthopedics Specialty = "Orthopedics"
)

// Specialties lists every supported specialty in display order.
var Specialties = []Specialty{
	SpecialtyPrimaryCare,
	SpecialtyCardiology,
	SpecialtyDermatology,
	SpecialtyPediatrics,
	SpecialtyNeurology,
	SpecialtyOrthopedics,
}

// Valid reports whether s is one of the supported specialties.
func (s Specialty) Valid() bool {
	for _, known := range Specialties {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSpecialty matches a specialty name case-insensitively.
func ParseSpecialty(v string) (Specialty, bool) {
	v = strings.TrimSpace(v)
	for _, s := range Specialties {
		if strings.EqualFold(string(s), v) {
			return s, true
		}
	}
	return "", false
}

// Channel is how a visit takes place.
type Channel string

const (
	ChannelInPerson Channel = "In-person"
	ChannelVirtual  Channel = "Virtual"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelInPerson || c == ChannelVirtual
}

// ParseChannel accepts "In-person", "in person", "inperson" and "virtual" style input.
func ParseChannel(v string) (Channel, bool) {
	norm := strings.ToLower(strings.TrimSpace(v))
	norm = strings.NewReplacer("-", "", " ", "", "_", "").Replace(norm)
	switch norm {
	case "inperson":
		return ChannelInPerson, true
	case "virtual":
		return ChannelVirtual, true
	}
	return "", false
}

// Slot is a bookable window on a provider's calendar. An empty Channel means
// the slot can be taken over any channel the provider accepts.
type Slot struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Channel Channel   `json:"channel,omitempty"`
}

// Provider is a care provider record.
type Provider struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Specialty        Specialty `json:"specialty"`
	Focus            []string  `json:"focus"`
	AcceptedChannels []Channel `json:"accepted_channels"`
	Locations        []string  `json:"locations"`
	Rating           float64   `json:"rating"`
	NextAvailable    time.Time `json:"next_available"`
	Slots            []Slot    `json:"slots"`
	Experience       int       `json:"experience"`
	Bio              string    `json:"bio,omitempty"`
	AvatarSeed       string    `json:"avatar_seed,omitempty"`
}

// Accepts reports whether the provider sees patients over ch.
func (p Provider) Accepts(ch Channel) bool {
	for _, c := range p.AcceptedChannels {
		if c == ch {
			return true
		}
	}
	return false
}

// Upcoming returns the slots starting at or after now, in chronological order.
func (p Provider) Upcoming(now time.Time) []Slot {
	out := make([]Slot, 0, len(p.Slots))
	for _, s := range p.Slots {
		if !s.Start.Before(now) {
			out = append(out, s)
		}
	}
	return out
}

func (p Provider) clone() Provider {
	p.Focus = append([]string(nil), p.Focus...)
	p.AcceptedChannels = append([]Channel(nil), p.AcceptedChannels...)
	p.Locations = append([]string(nil), p.Locations...)
	p.Slots = append([]Slot(nil), p.Slots...)
	return p
}

// Catalog is an arena of providers addressed by id.
type Catalog struct {
	byID  map[string]Provider
	order []string
}

// New validates the providers and builds an immutable catalog. Slots are
// sorted chronologically and a missing NextAvailable is taken from the
// earliest slot.
func New(providers []Provider) (*Catalog, error) {
	c := &Catalog{
		byID:  make(map[string]Provider, len(providers)),
		order: make([]string, 0, len(providers)),
	}
	for i, p := range providers {
		p = p.clone()
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("%w: provider %d has no id", ErrInvalidProvider, i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, p.ID)
		}
		if !p.Specialty.Valid() {
			return nil, fmt.Errorf("%w: %s has unknown specialty %q", ErrInvalidProvider, p.ID, p.Specialty)
		}
		for _, ch := range p.AcceptedChannels {
			if !ch.Valid() {
				return nil, fmt.Errorf("%w: %s has unknown channel %q", ErrInvalidProvider, p.ID, ch)
			}
		}
		if p.Rating < 0 || p.Rating > 5 {
			return nil, fmt.Errorf("%w: %s rating %.2f outside 0-5", ErrInvalidProvider, p.ID, p.Rating)
		}
		for _, s := range p.Slots {
			if !s.End.After(s.Start) {
				return nil, fmt.Errorf("%w: %s has a slot ending before it starts", ErrInvalidProvider, p.ID)
			}
			if s.Channel != "" && !p.Accepts(s.Channel) {
				return nil, fmt.Errorf("%w: %s offers a %s slot it does not accept", ErrInvalidProvider, p.ID, s.Channel)
			}
		}
		sort.SliceStable(p.Slots, func(i, j int) bool {
			return p.Slots[i].Start.Before(p.Slots[j].Start)
		})
		if p.NextAvailable.IsZero() && len(p.Slots) > 0 {
			p.NextAvailable = p.Slots[0].Start
		}
		c.byID[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// Lookup returns a copy of the provider with the given id.
func (c *Catalog) Lookup(id string) (Provider, bool) {
	if c == nil {
		return Provider{}, false
	}
	p, ok := c.byID[id]
	if !ok {
		return Provider{}, false
	}
	return p.clone(), true
}

// All returns copies of every provider in catalog order.
func (c *Catalog) All() []Provider {
	if c == nil {
		return nil
	}
	out := make([]Provider, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].clone())
	}
	return out
}

// Len is the number of providers in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}
