package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatVector(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want string
	}{
		{"empty", nil, "[]"},
		{"single", []float32{0.5}, "[0.5]"},
		{"multiple", []float32{1, -0.25, 0}, "[1,-0.25,0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatVector(tt.in))
		})
	}
}

func TestFormatVectorFullDimensions(t *testing.T) {
	v := make([]float32, 384)
	for i := range v {
		v[i] = float32(i) / 384
	}
	out := FormatVector(v)
	assert.True(t, strings.HasPrefix(out, "["))
	assert.True(t, strings.HasSuffix(out, "]"))
	assert.Equal(t, 383, strings.Count(out, ","))
}

func TestFormatVectorRoundTripPrecision(t *testing.T) {
	// FormatFloat with -1 precision must emit the shortest string that
	// parses back to the same float32.
	out := FormatVector([]float32{0.1, 0.2, 0.3})
	assert.Equal(t, "[0.1,0.2,0.3]", out)
}
