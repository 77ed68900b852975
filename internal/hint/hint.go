// Package hint decides how many letter-hints a question earns, which
// positions each hint reveals, and how the score decays per hint.
package hint

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/mitjasha/Qui3zBot/internal/textnorm"
)

// Default score bounds: a clean answer is worth MaxPoints, every revealed
// hint costs one point down to MinPoints.
const (
	MaxPoints = 5
	MinPoints = 1
)

// Plan is the hint schedule for one question.
type Plan struct {
	Total    int
	Interval time.Duration
}

// ForAnswer sizes the schedule from the display answer and the question TTL.
// Only letters and digits count toward length; very short answers earn no
// hints, and the final ~7 seconds of the TTL stay hint-free for unaided
// guessing.
func ForAnswer(display string, ttl time.Duration) Plan {
	n := len(wordPositions(display))

	var total int
	switch {
	case n <= 2:
		total = 0
	case n <= 4:
		total = 1
	case n <= 7:
		total = 2
	case n <= 10:
		total = 3
	default:
		total = 4
	}
	if total == 0 {
		return Plan{}
	}

	avail := int(ttl/time.Second) - 7
	if avail < 5 {
		avail = 5
	}
	interval := avail / (total + 1)
	if interval < 4 {
		interval = 4
	}
	return Plan{Total: total, Interval: time.Duration(interval) * time.Second}
}

// RevealPositions returns the cumulative set of rune indices revealed at the
// given level. The reveal order is a deterministic shuffle keyed by seed
// (the question id), so the set for level k+1 is always a superset of the
// set for level k, and the final level uncovers every word character.
func RevealPositions(display, seed string, level, total int) map[int]bool {
	pos := wordPositions(display)
	n := len(pos)
	out := make(map[int]bool, n)
	if n == 0 || level <= 0 || total <= 0 {
		return out
	}

	rnd := rand.New(rand.NewSource(seedValue(seed)))
	rnd.Shuffle(n, func(i, j int) { pos[i], pos[j] = pos[j], pos[i] })

	k := n
	if level < total {
		k = int(math.Ceil(float64(n) * float64(level) / float64(total+1)))
		if k < 1 {
			k = 1
		}
		if k > n {
			k = n
		}
	}
	for _, p := range pos[:k] {
		out[p] = true
	}
	return out
}

// Render masks unrevealed letters and digits with underscores. Spaces,
// hyphens, and other punctuation stay visible.
func Render(display string, revealed map[int]bool) string {
	var b strings.Builder
	for i, r := range []rune(display) {
		switch {
		case r == ' ' || r == '-':
			b.WriteRune(r)
		case textnorm.IsWordChar(r):
			if revealed[i] {
				b.WriteRune(r)
			} else {
				b.WriteRune('_')
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Points is the award for a correct answer at the given hint level, floored
// at min.
func Points(level, max, min int) int {
	p := max - level
	if p < min {
		return min
	}
	return p
}

func wordPositions(display string) []int {
	var pos []int
	for i, r := range []rune(display) {
		if textnorm.IsWordChar(r) {
			pos = append(pos, i)
		}
	}
	return pos
}

func seedValue(seed string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return int64(h.Sum64())
}
