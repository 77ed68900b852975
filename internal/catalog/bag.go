package catalog

import (
	"math/rand"
	"sync"
	"time"

	"github.com/mitjasha/Qui3zBot/internal/domain"
	"github.com/mitjasha/Qui3zBot/internal/textnorm"
)

// Bags draws questions per scope without repetition: each scope key owns a
// shuffled queue of ids, refilled from the full eligible set once emptied.
// A question therefore repeats only after every other eligible question in
// its scope has appeared once.
type Bags struct {
	catalog *Catalog
	rnd     *rand.Rand

	mu      sync.Mutex
	byScope map[string][]string
}

// NewBags builds empty bags over the catalog; queues fill lazily on first
// draw per scope.
func NewBags(c *Catalog) *Bags {
	return &Bags{
		catalog: c,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		byScope: make(map[string][]string),
	}
}

// Next draws the next question for the scope. A category that matches no
// questions falls back to the all-questions scope; a tag scope with no
// eligible questions reports domain.ErrNoQuestions.
func (b *Bags) Next(scope domain.Scope) (domain.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextLocked(scope)
}

func (b *Bags) nextLocked(scope domain.Scope) (domain.Question, error) {
	key := scopeKey(scope)
	bag := b.byScope[key]
	if len(bag) == 0 {
		ids := b.catalog.idsForScope(scope)
		if len(ids) == 0 {
			if scope.Kind == domain.ScopeCategory {
				// Operators sometimes configure a category that no longer
				// exists; keep the game going on the full catalog.
				return b.nextLocked(domain.Scope{Kind: domain.ScopeAll})
			}
			return domain.Question{}, domain.ErrNoQuestions
		}
		b.rnd.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		bag = ids
	}

	id := bag[len(bag)-1]
	b.byScope[key] = bag[:len(bag)-1]
	return b.catalog.Get(id)
}

func scopeKey(s domain.Scope) string {
	switch s.Kind {
	case domain.ScopeTag:
		return "tag:" + textnorm.Normalize(s.Key)
	case domain.ScopeCategory:
		return "cat:" + textnorm.Normalize(s.Key)
	default:
		return TagAll
	}
}
