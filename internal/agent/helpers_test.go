package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/astracare/internal/catalog"
)

var testNow = time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC) // Monday

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 3, 9+day, hour, minute, 0, 0, time.UTC)
}

func slot(day, hour, minute int, ch catalog.Channel) catalog.Slot {
	start := at(day, hour, minute)
	return catalog.Slot{Start: start, End: start.Add(30 * time.Minute), Channel: ch}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	both := []catalog.Channel{catalog.ChannelInPerson, catalog.ChannelVirtual}
	office := []catalog.Channel{catalog.ChannelInPerson}
	c, err := catalog.New([]catalog.Provider{
		{
			ID:               "card-virtual",
			Name:             "Dr. Ada Vance",
			Specialty:        catalog.SpecialtyCardiology,
			Focus:            []string{"palpitations", "heart failure"},
			AcceptedChannels: both,
			Rating:           4.9,
			Slots: []catalog.Slot{
				slot(1, 9, 0, catalog.ChannelVirtual),
				slot(1, 14, 0, catalog.ChannelInPerson),
				slot(2, 18, 0, catalog.ChannelVirtual),
			},
		},
		{
			ID:               "card-office",
			Name:             "Dr. Ben Cole",
			Specialty:        catalog.SpecialtyCardiology,
			Focus:            []string{"hypertension", "chest pain"},
			AcceptedChannels: office,
			Rating:           4.7,
			Slots:            []catalog.Slot{slot(1, 10, 0, catalog.ChannelInPerson)},
		},
		{
			ID:               "derm",
			Name:             "Dr. Cara Lind",
			Specialty:        catalog.SpecialtyDermatology,
			Focus:            []string{"rash", "eczema"},
			AcceptedChannels: both,
			Rating:           4.8,
			Slots: []catalog.Slot{
				slot(0, 18, 0, catalog.ChannelVirtual),
				slot(1, 10, 30, catalog.ChannelInPerson),
			},
		},
		{
			ID:               "peds",
			Name:             "Dr. Dev Shah",
			Specialty:        catalog.SpecialtyPediatrics,
			Focus:            []string{"fever", "asthma"},
			AcceptedChannels: both,
			Rating:           4.9,
			Slots: []catalog.Slot{
				slot(1, 8, 0, catalog.ChannelInPerson),
				slot(1, 13, 0, catalog.ChannelVirtual),
			},
		},
		{
			ID:               "primary",
			Name:             "Dr. Eli Park",
			Specialty:        catalog.SpecialtyPrimaryCare,
			Focus:            []string{"fever", "cough", "flu"},
			AcceptedChannels: both,
			Rating:           4.5,
			Slots:            []catalog.Slot{slot(1, 11, 0, "")},
		},
		{
			ID:               "ortho",
			Name:             "Dr. Finn Ortiz",
			Specialty:        catalog.SpecialtyOrthopedics,
			Focus:            []string{"knee pain"},
			AcceptedChannels: office,
			Rating:           4.6,
		},
	})
	require.NoError(t, err)
	return c
}

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(testCatalog(t), WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return p
}
