package monitor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatRate(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		expected string
	}{
		{"normal", 45.7, "45.7 op/s"},
		{"zero", 0.0, "0.0 op/s"},
		{"large", 999.9, "999.9 op/s"},
		{"small", 0.1, "0.1 op/s"},
		{"very_small", 0.0001, "0.0 op/s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatRate(tt.rate)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		name     string
		n        int64
		expected string
	}{
		{"zero", 0, "0"},
		{"small", 512, "512"},
		{"boundary", 999, "999"},
		{"thousands", 1000, "1.0K"},
		{"thousands_fraction", 1234, "1.2K"},
		{"millions", 1_000_000, "1.0M"},
		{"millions_fraction", 3_400_000, "3.4M"},
		{"negative_small", -5, "-5"},
		{"negative_thousands", -1234, "-1.2K"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatCount(tt.n)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestFormatPercentage(t *testing.T) {
	tests := []struct {
		name     string
		ratio    float64
		expected string
	}{
		{"normal", 0.985, "98.5%"},
		{"zero", 0.0, "0.0%"},
		{"one", 1.0, "100.0%"},
		{"small", 0.012, "1.2%"},
		{"very_small", 0.0003, "0.0%"},
		{"over_hundred", 1.5, "150.0%"}, // Handle edge case
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatPercentage(tt.ratio)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestFormatMillis(t *testing.T) {
	tests := []struct {
		name     string
		ms       int64
		expected string
	}{
		{"zero", 0, "0ms"},
		{"sub_second", 500, "500ms"},
		{"one_second", 1000, "1s"},
		{"thirty_seconds", 30000, "30s"},
		{"whole_minute", 60000, "1m"},
		{"minute_and_seconds", 90000, "1m 30s"},
		{"many_minutes", 3600000, "60m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatMillis(tt.ms)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// Edge cases for special float values
func TestFormatRate_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		expected string
	}{
		{"nan", math.NaN(), "NaN op/s"},
		{"inf", math.Inf(1), "+Inf op/s"},
		{"neg_inf", math.Inf(-1), "-Inf op/s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatRate(tt.rate)
			assert.Equal(t, tt.expected, result)
		})
	}
}
