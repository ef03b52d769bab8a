package radio

// Burst is one hardware transmit call: Copies concatenated payloads sent
// Count times.
type Burst struct {
	Copies int
	Count  int
}

// PlanBursts splits a transmission of repeat payloads of size n into
// hardware calls whose repeat count stays within limit and whose block
// stays within maxBlock bytes. The plan always transmits exactly repeat
// payloads.
//
// An exact split (copies dividing the remaining count) is preferred so a
// press usually needs one call; otherwise the largest even chunk is sent
// and the remainder planned again.
func PlanBursts(n, repeat, limit, maxBlock int) []Burst {
	if repeat <= 0 {
		return nil
	}
	if limit <= 0 {
		limit = 1
	}
	maxCopies := 1
	if n > 0 && maxBlock/n > 1 {
		maxCopies = maxBlock / n
	}

	var plan []Burst
	remaining := repeat
	for remaining > 0 {
		if remaining <= limit {
			plan = append(plan, Burst{Copies: 1, Count: remaining})
			break
		}

		minCopies := (remaining + limit - 1) / limit
		if minCopies > maxCopies {
			// Cannot fit in one call; send the biggest call possible.
			plan = append(plan, Burst{Copies: maxCopies, Count: limit})
			remaining -= maxCopies * limit
			continue
		}

		exact := 0
		for c := minCopies; c <= maxCopies; c++ {
			if remaining%c == 0 {
				exact = c
				break
			}
		}
		if exact > 0 {
			plan = append(plan, Burst{Copies: exact, Count: remaining / exact})
			break
		}

		count := remaining / minCopies
		plan = append(plan, Burst{Copies: minCopies, Count: count})
		remaining -= minCopies * count
	}
	return plan
}
