package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestElapsed(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"seconds only", 42 * time.Second, "42s"},
		{"minutes and seconds", 3*time.Minute + 5*time.Second, "3m 5s"},
		{"hours", 2*time.Hour + 4*time.Minute + 9*time.Second, "2h 4m 9s"},
		{"zero minutes shown after hours", time.Hour + 30*time.Second, "1h 0m 30s"},
		{"zero", 0, "0s"},
		{"sub-second rounds", 400 * time.Millisecond, "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Elapsed(tt.duration))
		})
	}
}
