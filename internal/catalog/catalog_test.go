package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/figarolabs/figaro-booking/internal/config"
)

func TestTotalDuration(t *testing.T) {
	cat := Default()

	total, err := cat.TotalDuration([]string{"Taglio capelli", "Rasatura barba"})
	require.NoError(t, err)
	assert.Equal(t, 60*time.Minute, total)

	total, err = cat.TotalDuration([]string{"Rasatura barba"})
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, total)
}

func TestTotalDurationRejectsUnknownService(t *testing.T) {
	cat := Default()

	_, err := cat.TotalDuration([]string{"Taglio capelli", "Manicure"})
	assert.True(t, errors.Is(err, ErrUnknownService))

	_, err = cat.TotalDuration(nil)
	assert.True(t, errors.Is(err, ErrUnknownService))
}

func TestBandWindow(t *testing.T) {
	cat := Default()
	band, ok := cat.Band("Mattina")
	require.True(t, ok)

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, cat.Location)
	start, end := cat.BandWindow(date, band)

	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, cat.Location), start)
	assert.Equal(t, time.Date(2026, 3, 10, 13, 0, 0, 0, cat.Location), end)
}

func TestIsClosed(t *testing.T) {
	cat := Default()

	sunday := time.Date(2026, 3, 8, 12, 0, 0, 0, cat.Location)
	monday := time.Date(2026, 3, 9, 12, 0, 0, 0, cat.Location)
	tuesday := time.Date(2026, 3, 10, 12, 0, 0, 0, cat.Location)

	assert.True(t, cat.IsClosed(sunday))
	assert.True(t, cat.IsClosed(monday))
	assert.False(t, cat.IsClosed(tuesday))
	assert.Equal(t, []int{0, 1}, cat.ClosedWeekdays())
}

func TestParseClock(t *testing.T) {
	ct, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, ClockTime{Hour: 9, Minute: 30}, ct)
	assert.Equal(t, "09:30", ct.String())

	_, err = ParseClock("25:00")
	assert.Error(t, err)
	_, err = ParseClock("mattina")
	assert.Error(t, err)
}

func TestFromConfigOverrides(t *testing.T) {
	cfg := &config.Config{
		Timezone:           "Europe/Rome",
		ServicesJSON:       `{"Piega": 30, "Colore": 90}`,
		BandsJSON:          `{"Sera": {"start": "18:00", "end": "22:00"}}`,
		ClosedWeekdaysJSON: `[6]`,
		GranularityMinutes: 10,
		LeadTimeMinutes:    20,
		HorizonDays:        14,
	}

	cat, err := FromConfig(cfg)
	require.NoError(t, err)

	total, err := cat.TotalDuration([]string{"Piega", "Colore"})
	require.NoError(t, err)
	assert.Equal(t, 120*time.Minute, total)

	_, ok := cat.Band("Mattina")
	assert.False(t, ok)
	sera, ok := cat.Band("Sera")
	require.True(t, ok)
	assert.Equal(t, ClockTime{Hour: 18}, sera.Start)

	saturday := time.Date(2026, 3, 7, 12, 0, 0, 0, cat.Location)
	assert.True(t, cat.IsClosed(saturday))
	assert.Equal(t, 10*time.Minute, cat.Granularity)
	assert.Equal(t, 14, cat.HorizonDays)
}

func TestFromConfigRejectsBadPayloads(t *testing.T) {
	_, err := FromConfig(&config.Config{Timezone: "Mars/Olympus", GranularityMinutes: 15})
	assert.Error(t, err)

	_, err = FromConfig(&config.Config{
		Timezone:           "Europe/Rome",
		BandsJSON:          `{"Sera": {"start": "22:00", "end": "18:00"}}`,
		GranularityMinutes: 15,
	})
	assert.Error(t, err)
}
