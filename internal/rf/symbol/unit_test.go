package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferUnit(t *testing.T) {
	tests := []struct {
		name    string
		timings []int
		want    int
	}{
		{"gap only", []int{500}, 500},
		{"capped at one second", []int{2000000}, MaxUnit},
		{"common divisor", []int{900000}, 100000},
		{"hampton bay", []int{400, 300, 700, 300, 700, 700, 300, 12000}, 100},
		{"hunter", []int{190, 380, 190, 190, 380, 380, 190, 6650}, 190},
		{"nothing configured", nil, MaxUnit},
		{"non-positive ignored", []int{0, -5, 500}, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferUnit(tt.timings))
		})
	}
}
