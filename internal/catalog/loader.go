package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedDocument []byte

const defaultSlotDuration = 30 * time.Minute

// document is the on-disk catalog format. Slots are either absolute
// (start: RFC 3339) or relative to the load time (day offset plus a wall
// clock time in the document's timezone), so a seed file never goes stale.
type document struct {
	Timezone  string        `yaml:"timezone"`
	Providers []providerDoc `yaml:"providers"`
}

type providerDoc struct {
	ID               string    `yaml:"id"`
	Name             string    `yaml:"name"`
	Specialty        string    `yaml:"specialty"`
	Focus            []string  `yaml:"focus"`
	AcceptedChannels []string  `yaml:"accepted_channels"`
	Locations        []string  `yaml:"locations"`
	Rating           float64   `yaml:"rating"`
	Experience       int       `yaml:"experience"`
	Bio              string    `yaml:"bio"`
	AvatarSeed       string    `yaml:"avatar_seed"`
	NextAvailable    string    `yaml:"next_available"`
	Slots            []slotDoc `yaml:"slots"`
}

type slotDoc struct {
	Start    string `yaml:"start"`
	Day      int    `yaml:"day"`
	At       string `yaml:"at"`
	Duration string `yaml:"duration"`
	Channel  string `yaml:"channel"`
}

// Load decodes a YAML catalog document, resolving relative slots against now.
func Load(r io.Reader, now time.Time) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	loc := time.UTC
	if tz := strings.TrimSpace(doc.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("catalog: timezone %q: %w", tz, err)
		}
		loc = l
	}

	providers := make([]Provider, 0, len(doc.Providers))
	for _, pd := range doc.Providers {
		p, err := pd.resolve(now, loc)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return New(providers)
}

// LoadFile reads a catalog document from disk.
func LoadFile(path string, now time.Time) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, now)
}

// LoadDefault returns the built-in demo directory.
func LoadDefault(now time.Time) (*Catalog, error) {
	return Load(bytes.NewReader(seedDocument), now)
}

// ObjectGetter is the subset of the S3 client used to fetch catalog documents.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// LoadS3 fetches a catalog document from an S3 bucket.
func LoadS3(ctx context.Context, client ObjectGetter, bucket, key string, now time.Time) (*Catalog, error) {
	if client == nil {
		return nil, fmt.Errorf("catalog: s3 client required")
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	return Load(out.Body, now)
}

func (pd providerDoc) resolve(now time.Time, loc *time.Location) (Provider, error) {
	specialty, ok := ParseSpecialty(pd.Specialty)
	if !ok {
		return Provider{}, fmt.Errorf("%w: %s has unknown specialty %q", ErrInvalidProvider, pd.ID, pd.Specialty)
	}
	p := Provider{
		ID:         pd.ID,
		Name:       pd.Name,
		Specialty:  specialty,
		Focus:      pd.Focus,
		Locations:  pd.Locations,
		Rating:     pd.Rating,
		Experience: pd.Experience,
		Bio:        strings.TrimSpace(pd.Bio),
		AvatarSeed: pd.AvatarSeed,
	}
	for _, raw := range pd.AcceptedChannels {
		ch, ok := ParseChannel(raw)
		if !ok {
			return Provider{}, fmt.Errorf("%w: %s has unknown channel %q", ErrInvalidProvider, pd.ID, raw)
		}
		p.AcceptedChannels = append(p.AcceptedChannels, ch)
	}
	if pd.NextAvailable != "" {
		t, err := time.Parse(time.RFC3339, pd.NextAvailable)
		if err != nil {
			return Provider{}, fmt.Errorf("%w: %s next_available: %v", ErrInvalidProvider, pd.ID, err)
		}
		p.NextAvailable = t
	}
	for i, sd := range pd.Slots {
		s, err := sd.resolve(now, loc)
		if err != nil {
			return Provider{}, fmt.Errorf("%w: %s slot %d: %v", ErrInvalidSlot, pd.ID, i, err)
		}
		p.Slots = append(p.Slots, s)
	}
	return p, nil
}

func (sd slotDoc) resolve(now time.Time, loc *time.Location) (Slot, error) {
	dur := defaultSlotDuration
	if sd.Duration != "" {
		d, err := time.ParseDuration(sd.Duration)
		if err != nil {
			return Slot{}, fmt.Errorf("duration: %w", err)
		}
		dur = d
	}

	var start time.Time
	switch {
	case sd.Start != "":
		t, err := time.Parse(time.RFC3339, sd.Start)
		if err != nil {
			return Slot{}, fmt.Errorf("start: %w", err)
		}
		start = t
	case sd.At != "":
		clock, err := time.Parse("15:04", sd.At)
		if err != nil {
			return Slot{}, fmt.Errorf("at: %w", err)
		}
		base := now.In(loc)
		start = time.Date(base.Year(), base.Month(), base.Day()+sd.Day, clock.Hour(), clock.Minute(), 0, 0, loc)
	default:
		return Slot{}, fmt.Errorf("either start or at is required")
	}

	s := Slot{Start: start, End: start.Add(dur)}
	if sd.Channel != "" {
		ch, ok := ParseChannel(sd.Channel)
		if !ok {
			return Slot{}, fmt.Errorf("channel %q", sd.Channel)
		}
		s.Channel = ch
	}
	return s, nil
}
