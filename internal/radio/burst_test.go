package radio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanBursts(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		repeat   int
		limit    int
		maxBlock int
		want     []Burst
	}{
		{"within limit", 9, 25, 255, 255, []Burst{{1, 25}}},
		{"exact split", 9, 600, 255, 255, []Burst{{3, 200}}},
		{"prime repeat", 9, 257, 255, 255, []Burst{{2, 128}, {1, 1}}},
		{"payload too large to copy", 200, 300, 255, 255, []Burst{{1, 255}, {1, 45}}},
		{"small limit", 2, 10, 4, 255, []Burst{{5, 2}}},
		{"zero repeat", 9, 0, 255, 255, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlanBursts(tt.n, tt.repeat, tt.limit, tt.maxBlock))
		})
	}
}

func TestPlanBurstsTotals(t *testing.T) {
	for _, n := range []int{1, 8, 9, 44, 130, 300} {
		for repeat := 1; repeat <= 1200; repeat += 7 {
			total := 0
			for _, b := range PlanBursts(n, repeat, 255, 255) {
				assert.LessOrEqual(t, b.Count, 255)
				assert.GreaterOrEqual(t, b.Count, 1)
				if b.Copies > 1 {
					assert.LessOrEqual(t, b.Copies*n, 255)
				}
				total += b.Copies * b.Count
			}
			assert.Equal(t, repeat, total, "n=%d repeat=%d", n, repeat)
		}
	}
}
