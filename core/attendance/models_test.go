package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounts_Percentage(t *testing.T) {
	tests := []struct {
		name   string
		counts Counts
		want   string
	}{
		{name: "nothing marked", counts: Counts{}, want: "0"},
		{name: "all present", counts: Counts{Present: 4, Total: 4}, want: "100"},
		{name: "two thirds", counts: Counts{Present: 2, Total: 3}, want: "66.67"},
		{name: "one third", counts: Counts{Present: 1, Total: 3}, want: "33.33"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.counts.Percentage().String())
		})
	}
}

func TestCountRecords(t *testing.T) {
	c := CountRecords([]Record{
		{Status: StatusPresent},
		{Status: StatusLate},
		{Status: StatusAbsent},
		{Status: StatusPresent},
	})
	assert.Equal(t, Counts{Present: 2, Total: 4}, c)
}

func TestSession_CanTransition(t *testing.T) {
	scheduled := Session{Status: SessionScheduled}
	for _, to := range []string{SessionCompleted, SessionCancelled, SessionRescheduled} {
		assert.True(t, scheduled.CanTransition(to), "scheduled -> %s", to)
	}
	assert.False(t, scheduled.CanTransition("lol"))

	for _, from := range []string{SessionCompleted, SessionCancelled, SessionRescheduled} {
		s := Session{Status: from}
		assert.False(t, s.CanTransition(SessionScheduled), "%s -> scheduled", from)
	}
}
