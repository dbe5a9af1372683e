package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name     string
		previous *float64
		current  *float64
		expected TrendSignal
	}{
		{"rising above threshold", Float(1.00), Float(1.06), TrendRising},
		{"falling below threshold", Float(1.00), Float(0.90), TrendFalling},
		{"within threshold is stable", Float(1.00), Float(1.02), TrendStable},
		{"no prior reading is stable", nil, Float(1.00), TrendStable},
		{"no current reading is stable", Float(1.00), nil, TrendStable},
		{"both absent", nil, nil, TrendStable},
		{"just under threshold is stable", Float(1.00), Float(1.04), TrendStable},
		{"just under negative threshold is stable", Float(1.00), Float(0.96), TrendStable},
		{"just past threshold rises", Float(1.00), Float(1.06), TrendRising},
		{"unchanged level", Float(2.50), Float(2.50), TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyTrend(tt.previous, tt.current))
		})
	}
}
