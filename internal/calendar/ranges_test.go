package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eastviewpta.org/internal/pta"
)

func TestResolveRange(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)
	start := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	cases := []struct {
		name             string
		start, end, days string
		want             Range
	}{
		{"default", "", "", "", Range{start, start.AddDate(0, 0, 30)}},
		{"days", "", "", "7", Range{start, start.AddDate(0, 0, 7)}},
		{"explicit", "2024-06-01", "2024-06-30", "7", Range{
			time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		}},
		{"lone bound ignored", "2024-06-01", "", "", Range{start, start.AddDate(0, 0, 30)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveRange(tc.start, tc.end, tc.days, now)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveRangeRejects(t *testing.T) {
	now := time.Now()
	for _, in := range [][3]string{
		{"", "", "0"},
		{"", "", "366"},
		{"", "", "soon"},
		{"yesterday", "", ""},
		{"2024-06-30", "2024-06-01", ""},
	} {
		_, err := ResolveRange(in[0], in[1], in[2], now)
		assert.ErrorIs(t, err, pta.ErrValidation, "input %v", in)
	}
}

func TestFormatRange(t *testing.T) {
	chicago := time.FixedZone("CDT", -5*3600)
	cases := []struct {
		name       string
		start, end time.Time
		allDay     bool
		want       string
	}{
		{
			"single all-day",
			time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC),
			true,
			"Friday, May 10, 2024",
		},
		{
			"multi-day all-day is inclusive",
			time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC),
			true,
			"Friday, May 10, 2024 - Sunday, May 12, 2024",
		},
		{
			"same day timed",
			time.Date(2024, 5, 3, 20, 0, 0, 0, time.UTC),
			time.Date(2024, 5, 3, 22, 0, 0, 0, time.UTC),
			false,
			"Friday, May 3, 2024, 3:00 PM - 5:00 PM",
		},
		{
			"overnight timed",
			time.Date(2024, 5, 4, 2, 0, 0, 0, time.UTC),
			time.Date(2024, 5, 4, 14, 0, 0, 0, time.UTC),
			false,
			"Friday, May 3, 2024, 9:00 PM - Saturday, May 4, 2024, 9:00 AM",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatRange(tc.start, tc.end, tc.allDay, chicago))
		})
	}
}
