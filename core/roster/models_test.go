package roster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBatch_IsActiveOn(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 15, 30, 0, 0, time.UTC) }
	ends := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)

	open := Batch{StartsOn: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)}
	closed := Batch{StartsOn: open.StartsOn, EndsOn: &ends}

	tests := []struct {
		name  string
		batch Batch
		date  time.Time
		want  bool
	}{
		{"before start", open, day(9), false},
		{"start day", open, day(10), true},
		{"open ended", open, day(28).AddDate(1, 0, 0), true},
		{"before end", closed, day(19), true},
		{"end day is excluded", closed, day(20), false},
		{"after end", closed, day(21), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.batch.IsActiveOn(tt.date))
		})
	}
}

func TestStudent_IsActive(t *testing.T) {
	assert.True(t, Student{Status: StatusActive}.IsActive())
	assert.False(t, Student{Status: StatusInactive}.IsActive())
}
