package eavesdrop

// tally counts frames for one silence span, remembering first-seen order
// for tie-breaks.
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(bits string) {
	if _, ok := t.counts[bits]; !ok {
		t.order = append(t.order, bits)
	}
	t.counts[bits]++
}

func (t *tally) empty() bool { return len(t.order) == 0 }

// winner returns the most counted frame; ties go to the one seen first.
func (t *tally) winner() (string, int) {
	best, bestCount := "", 0
	for _, bits := range t.order {
		if c := t.counts[bits]; c > bestCount {
			best, bestCount = bits, c
		}
	}
	return best, bestCount
}

func (t *tally) reset() {
	t.counts = make(map[string]int)
	t.order = t.order[:0]
}
