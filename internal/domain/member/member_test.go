package member

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOnlineSince(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 12, 50, 0, 0, time.UTC)

	tests := []struct {
		name string
		seen sql.NullTime
		want bool
	}{
		{name: "never seen", seen: sql.NullTime{}, want: false},
		{name: "seen before cutoff", seen: sql.NullTime{Time: cutoff.Add(-time.Minute), Valid: true}, want: false},
		{name: "seen exactly at cutoff", seen: sql.NullTime{Time: cutoff, Valid: true}, want: true},
		{name: "seen after cutoff", seen: sql.NullTime{Time: cutoff.Add(time.Minute), Valid: true}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Member{LastSeenAt: tt.seen}
			assert.Equal(t, tt.want, m.OnlineSince(cutoff))
		})
	}
}

func TestParseFilter(t *testing.T) {
	for _, valid := range []string{"all", "online", "opted_in"} {
		f, ok := ParseFilter(valid)
		assert.True(t, ok)
		assert.Equal(t, Filter(valid), f)
	}

	_, ok := ParseFilter("everybody")
	assert.False(t, ok)
}
