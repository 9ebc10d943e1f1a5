// Package catalog holds the static configuration of the shop: which
// services exist and how long they take, the daily opening bands, closed
// weekdays, the slot granularity, the minimum lead time and the booking
// horizon. Pure data, no I/O.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/figarolabs/figaro-booking/internal/config"
)

// ErrUnknownService is returned when a requested service name is not in the
// catalog. Unknown names are rejected rather than silently contributing a
// zero duration.
var ErrUnknownService = errors.New("catalog: unknown service")

// ClockTime is a wall-clock time within one day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	var ct ClockTime
	if _, err := fmt.Sscanf(s, "%d:%d", &ct.Hour, &ct.Minute); err != nil {
		return ClockTime{}, fmt.Errorf("catalog: invalid clock time %q: %w", s, err)
	}
	if ct.Hour < 0 || ct.Hour > 23 || ct.Minute < 0 || ct.Minute > 59 {
		return ClockTime{}, fmt.Errorf("catalog: clock time %q out of range", s)
	}
	return ct, nil
}

// On places the clock time on the given calendar day in the given location.
func (ct ClockTime) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.In(loc).Date()
	return time.Date(y, m, d, ct.Hour, ct.Minute, 0, 0, loc)
}

// Before reports whether ct is earlier in the day than other.
func (ct ClockTime) Before(other ClockTime) bool {
	return ct.Hour*60+ct.Minute < other.Hour*60+other.Minute
}

func (ct ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", ct.Hour, ct.Minute)
}

// Service is a bookable service with a fixed duration.
type Service struct {
	Name     string
	Duration time.Duration
}

// TimeBand is a named daily opening window, e.g. Mattina 09:00-13:00.
// Start and End are within one calendar day, half-open [Start, End).
type TimeBand struct {
	Name  string
	Start ClockTime
	End   ClockTime
}

// Catalog is the full static configuration. Immutable after construction.
type Catalog struct {
	Location       *time.Location
	Granularity    time.Duration
	LeadTime       time.Duration
	HorizonDays    int
	services       []Service
	serviceIndex   map[string]time.Duration
	bands          []TimeBand
	closedWeekdays map[time.Weekday]bool
}

// New builds a catalog after validating bands and services.
func New(loc *time.Location, services []Service, bands []TimeBand, closed []time.Weekday, granularity, leadTime time.Duration, horizonDays int) (*Catalog, error) {
	if loc == nil {
		return nil, errors.New("catalog: location required")
	}
	if granularity <= 0 {
		return nil, errors.New("catalog: granularity must be positive")
	}
	if len(services) == 0 {
		return nil, errors.New("catalog: at least one service required")
	}
	if len(bands) == 0 {
		return nil, errors.New("catalog: at least one time band required")
	}

	index := make(map[string]time.Duration, len(services))
	for _, s := range services {
		if s.Duration <= 0 {
			return nil, fmt.Errorf("catalog: service %q has non-positive duration", s.Name)
		}
		if _, dup := index[s.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate service %q", s.Name)
		}
		index[s.Name] = s.Duration
	}

	sorted := make([]TimeBand, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	for _, b := range sorted {
		if !b.Start.Before(b.End) {
			return nil, fmt.Errorf("catalog: band %q has empty or inverted window", b.Name)
		}
	}

	closedSet := make(map[time.Weekday]bool, len(closed))
	for _, wd := range closed {
		closedSet[wd] = true
	}

	return &Catalog{
		Location:       loc,
		Granularity:    granularity,
		LeadTime:       leadTime,
		HorizonDays:    horizonDays,
		services:       services,
		serviceIndex:   index,
		bands:          sorted,
		closedWeekdays: closedSet,
	}, nil
}

// Default returns the shop's built-in catalog.
func Default() *Catalog {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		loc = time.UTC
	}
	cat, err := New(
		loc,
		[]Service{
			{Name: "Taglio capelli", Duration: 45 * time.Minute},
			{Name: "Rasatura barba", Duration: 15 * time.Minute},
		},
		[]TimeBand{
			{Name: "Mattina", Start: ClockTime{Hour: 9}, End: ClockTime{Hour: 13}},
			{Name: "Pomeriggio", Start: ClockTime{Hour: 15}, End: ClockTime{Hour: 20}},
		},
		[]time.Weekday{time.Sunday, time.Monday},
		15*time.Minute,
		15*time.Minute,
		30,
	)
	if err != nil {
		panic(err)
	}
	return cat
}

type bandJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FromConfig builds a catalog from the environment configuration, falling
// back to the built-in defaults for any knob left unset.
func FromConfig(cfg *config.Config) (*Catalog, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("catalog: load timezone %q: %w", cfg.Timezone, err)
	}

	def := Default()

	services := def.services
	if cfg.ServicesJSON != "" {
		var raw map[string]int
		if err := json.Unmarshal([]byte(cfg.ServicesJSON), &raw); err != nil {
			return nil, fmt.Errorf("catalog: parse SHOP_SERVICES_JSON: %w", err)
		}
		names := make([]string, 0, len(raw))
		for name := range raw {
			names = append(names, name)
		}
		sort.Strings(names)
		services = make([]Service, 0, len(names))
		for _, name := range names {
			services = append(services, Service{Name: name, Duration: time.Duration(raw[name]) * time.Minute})
		}
	}

	bands := def.bands
	if cfg.BandsJSON != "" {
		var raw map[string]bandJSON
		if err := json.Unmarshal([]byte(cfg.BandsJSON), &raw); err != nil {
			return nil, fmt.Errorf("catalog: parse SHOP_BANDS_JSON: %w", err)
		}
		bands = make([]TimeBand, 0, len(raw))
		for name, bj := range raw {
			start, err := ParseClock(bj.Start)
			if err != nil {
				return nil, err
			}
			end, err := ParseClock(bj.End)
			if err != nil {
				return nil, err
			}
			bands = append(bands, TimeBand{Name: name, Start: start, End: end})
		}
	}

	closed := []time.Weekday{time.Sunday, time.Monday}
	if cfg.ClosedWeekdaysJSON != "" {
		var raw []int
		if err := json.Unmarshal([]byte(cfg.ClosedWeekdaysJSON), &raw); err != nil {
			return nil, fmt.Errorf("catalog: parse SHOP_CLOSED_WEEKDAYS_JSON: %w", err)
		}
		closed = make([]time.Weekday, 0, len(raw))
		for _, wd := range raw {
			closed = append(closed, time.Weekday(wd))
		}
	}

	return New(
		loc,
		services,
		bands,
		closed,
		time.Duration(cfg.GranularityMinutes)*time.Minute,
		time.Duration(cfg.LeadTimeMinutes)*time.Minute,
		cfg.HorizonDays,
	)
}

// Services returns the catalog services in stable order.
func (c *Catalog) Services() []Service {
	return c.services
}

// Bands returns the time bands ordered by start time.
func (c *Catalog) Bands() []TimeBand {
	return c.bands
}

// Band looks up a time band by name.
func (c *Catalog) Band(name string) (TimeBand, bool) {
	for _, b := range c.bands {
		if b.Name == name {
			return b, true
		}
	}
	return TimeBand{}, false
}

// HasService reports whether name is a catalog service.
func (c *Catalog) HasService(name string) bool {
	_, ok := c.serviceIndex[name]
	return ok
}

// TotalDuration sums the durations of the named services. Any unknown name
// fails the whole request with ErrUnknownService.
func (c *Catalog) TotalDuration(names []string) (time.Duration, error) {
	if len(names) == 0 {
		return 0, fmt.Errorf("%w: no services requested", ErrUnknownService)
	}
	var total time.Duration
	for _, name := range names {
		d, ok := c.serviceIndex[name]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownService, name)
		}
		total += d
	}
	return total, nil
}

// BandWindow returns the band's concrete [start, end) window on the given day.
func (c *Catalog) BandWindow(date time.Time, band TimeBand) (time.Time, time.Time) {
	return band.Start.On(date, c.Location), band.End.On(date, c.Location)
}

// IsClosed reports whether the shop is closed on the given date's weekday.
func (c *Catalog) IsClosed(date time.Time) bool {
	return c.closedWeekdays[date.In(c.Location).Weekday()]
}

// ClosedWeekdays returns the closed weekdays as ints (Sunday = 0), the
// shape the date-picker payload expects.
func (c *Catalog) ClosedWeekdays() []int {
	out := make([]int, 0, len(c.closedWeekdays))
	for wd := range c.closedWeekdays {
		out = append(out, int(wd))
	}
	sort.Ints(out)
	return out
}
