package tagger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDurationToHours(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{name: "hour range", text: "2-3 hours", want: 2.5},
		{name: "single week", text: "1 week", want: 40},
		{name: "minutes", text: "30 minutes", want: 0.5},
		{name: "day range", text: "1-2 days", want: 12},
		{name: "no digits", text: "a while", want: 0},
		{name: "empty", text: "", want: 0},
		{name: "no unit defaults to hours", text: "about 4", want: 4},
		{name: "no unit ignores second number", text: "4 or 6", want: 4},
		{name: "decimal", text: "1.5 hours", want: 1.5},
		{name: "upper case unit", text: "3 HOURS", want: 3},
		{name: "week beats hour", text: "1 week (about 40 hours)", want: 40 * 20.5},
		{name: "day beats minute", text: "2 days and 30 minutes", want: 16 * 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, DurationToHours(tt.text), 1e-9)
		})
	}
}
