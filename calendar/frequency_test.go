package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/deposit-engine/generic"
)

func TestNormalizeInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval int
		want     int
		wantErr  bool
	}{
		{"positive kept", 3, 3, false},
		{"zero means every period", 0, 1, false},
		{"legacy sentinel means every period", UnspecifiedInterval, 1, false},
		{"other negatives rejected", -2, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeInterval(tt.interval)
			if tt.wantErr {
				assert.True(t, errors.Is(err, generic.ErrInvalidTerm))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFrequency_Normalized_UnknownType(t *testing.T) {
	_, err := Frequency{Type: "hourly", Interval: 1}.Normalized()

	var termErr *generic.InvalidTermError
	require.ErrorAs(t, err, &termErr)
	assert.Equal(t, "frequency", termErr.Field)
}

func TestRecurrenceRule_RoundTrip(t *testing.T) {
	start := generic.Date(2024, time.January, 2) // Tuesday

	for _, f := range []Frequency{
		{Type: FrequencyDaily, Interval: 1},
		{Type: FrequencyWeekly, Interval: 2},
		{Type: FrequencyMonthly, Interval: 3},
		{Type: FrequencyYearly, Interval: 1},
	} {
		t.Run(string(f.Type), func(t *testing.T) {
			rule, err := f.RecurrenceRule(start)
			require.NoError(t, err)

			parsed, err := ParseRecurrenceRule(rule)
			require.NoError(t, err)
			assert.Equal(t, f, parsed)
		})
	}
}

func TestRecurrenceRule_AnchorFromStart(t *testing.T) {
	start := generic.Date(2024, time.January, 2)

	weekly, err := Frequency{Type: FrequencyWeekly, Interval: 1}.RecurrenceRule(start)
	require.NoError(t, err)
	assert.Contains(t, weekly, "BYDAY=TU")

	monthly, err := Frequency{Type: FrequencyMonthly, Interval: 1}.RecurrenceRule(start)
	require.NoError(t, err)
	assert.Contains(t, monthly, "BYMONTHDAY=2")
}

func TestRecurrenceRule_LegacyIntervalNormalized(t *testing.T) {
	rule, err := Frequency{Type: FrequencyMonthly, Interval: UnspecifiedInterval}.RecurrenceRule(generic.Date(2024, time.March, 5))
	require.NoError(t, err)

	parsed, err := ParseRecurrenceRule(rule)
	require.NoError(t, err)
	assert.Equal(t, 1, parsed.Interval)
}

func TestParseRecurrenceRule_IgnoresAnchors(t *testing.T) {
	f, err := ParseRecurrenceRule("FREQ=WEEKLY;INTERVAL=2;BYDAY=FR")
	require.NoError(t, err)
	assert.Equal(t, Frequency{Type: FrequencyWeekly, Interval: 2}, f)
}

func TestParseRecurrenceRule_Invalid(t *testing.T) {
	_, err := ParseRecurrenceRule("FREQ=NEVER")
	assert.True(t, errors.Is(err, generic.ErrInvalidTerm))

	_, err = ParseRecurrenceRule("FREQ=HOURLY;INTERVAL=1")
	assert.True(t, errors.Is(err, generic.ErrInvalidTerm))
}
