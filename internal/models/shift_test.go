package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	valid := map[string]int{
		"00:00":    0,
		"08:30":    510,
		"23:59":    1439,
		"09:00:00": 540,
		"09:00:59": 540,
		" 07:15 ":  435,
	}
	for in, want := range valid {
		got, err := ParseClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{
		"", "9:00", "24:00", "12:60", "09:00:zz", "09:00:60", "09:00:5",
		"+9:00", "09:+5", "09:00:-1", "09:00:00:00", "0900",
	} {
		_, err := ParseClock(in)
		assert.Error(t, err, in)
	}
}

func TestFormatClockRoundTrip(t *testing.T) {
	for _, m := range []int{0, 59, 510, 1439} {
		got, err := ParseClock(FormatClock(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}
