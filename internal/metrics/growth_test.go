package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"salesboard/internal/metrics"
)

func TestGrowthRate(t *testing.T) {
	tests := []struct {
		current  string
		previous string
		expected float64
	}{
		{"500", "0", 100},
		{"0", "0", 0},
		{"150", "100", 50},
		{"50", "100", -50},
		{"100", "300", -66.67},
		{"0", "100", -100},
		{"50", "-100", -150},
		{"-150", "-100", 50},
	}

	for _, tt := range tests {
		t.Run(tt.current+"_vs_"+tt.previous, func(t *testing.T) {
			assert.Equal(t, tt.expected, metrics.GrowthRate(dec(tt.current), dec(tt.previous)))
		})
	}
}
