package experiment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "csstcli/internal/errors"
)

func TestParseStartOfExperiment(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{
			name:  "us date with seconds and meridiem",
			value: "2/24/2022 2:22:00 PM",
			want:  time.Date(2022, 2, 24, 14, 22, 0, 0, time.UTC),
		},
		{
			name:  "double space between date and time",
			value: "2/24/2022  2:22:00 PM",
			want:  time.Date(2022, 2, 24, 14, 22, 0, 0, time.UTC),
		},
		{
			name:  "lower case meridiem",
			value: "12/01/2021 9:05:30 am",
			want:  time.Date(2021, 12, 1, 9, 5, 30, 0, time.UTC),
		},
		{
			name:  "two digit year and 24 hour clock",
			value: "3/7/22 16:45",
			want:  time.Date(2022, 3, 7, 16, 45, 0, 0, time.UTC),
		},
		{
			name:  "iso date",
			value: "2022-03-07 08:00:01",
			want:  time.Date(2022, 3, 7, 8, 0, 1, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStartOfExperiment(tt.value)
			require.Nil(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseStartOfExperiment_Invalid(t *testing.T) {
	for _, value := range []string{"", "yesterday", "2022/03/07", "24.02.2022 14:22"} {
		t.Run(value, func(t *testing.T) {
			_, err := ParseStartOfExperiment(value)
			require.NotNil(t, err)
			assert.ErrorIs(t, err, apperrors.ErrDateFormat)
		})
	}
}

func TestParseDecimalTime(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{name: "hours minutes seconds", value: "02:30:00", want: 2.5},
		{name: "day prefixed", value: "1.02:30:00", want: 26.5},
		{name: "zero", value: "00:00:00", want: 0},
		{name: "seconds", value: "00:00:36", want: 0.01},
		{name: "surrounding whitespace", value: " 00:15:00 ", want: 0.25},
		{name: "several days", value: "3.00:00:00", want: 72},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimalTime(tt.value)
			require.Nil(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestParseDecimalTime_Invalid(t *testing.T) {
	for _, value := range []string{"", "02:30", "aa:bb:cc", "x.02:30:00", "00:61:00", "00:00:75", "-1:00:00", "00:00:NaN"} {
		t.Run(value, func(t *testing.T) {
			_, err := ParseDecimalTime(value)
			require.NotNil(t, err)
			assert.ErrorIs(t, err, apperrors.ErrParse)
		})
	}
}

func TestParseIDPairs(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   map[string]string
	}{
		{
			name:   "simple pairs",
			tokens: []string{"PEG:101", "PVP:103"},
			want:   map[string]string{"PEG": "101", "PVP": "103"},
		},
		{
			name:   "name containing commas",
			tokens: []string{"Poly(ethylene", " oxide):102"},
			want:   map[string]string{"Poly(ethylene, oxide)": "102"},
		},
		{
			name:   "name containing a colon",
			tokens: []string{"ratio 1:2 blend:7"},
			want:   map[string]string{"ratio 1:2 blend": "7"},
		},
		{
			name:   "no tokens",
			tokens: nil,
			want:   map[string]string{},
		},
		{
			name:   "blank trailing tokens",
			tokens: []string{"MeOH:9", " "},
			want:   map[string]string{"MeOH": "9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDPairs(tt.tokens)
			require.Nil(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIDPairs_Invalid(t *testing.T) {
	for name, tokens := range map[string][]string{
		"missing id":   {"PEG:"},
		"missing name": {":101"},
		"dangling":     {"PEG:101", "PVP"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseIDPairs(tokens)
			require.NotNil(t, err)
			assert.ErrorIs(t, err, apperrors.ErrParse)
		})
	}
}
