package words

import (
	"math/rand/v2"
	"sync"

	"github.com/victornm/sketch/internal/domain"
)

const defaultCandidates = 3

var defaultPools = map[domain.Difficulty][]string{
	domain.DifficultyEasy: {
		"apple", "banana", "cat", "dog", "flower", "sun", "tree", "car", "fish", "house",
	},
	domain.DifficultyMedium: {
		"elephant", "guitar", "bicycle", "castle", "pizza", "rainbow", "rocket", "spider", "candle", "ladder",
	},
	domain.DifficultyHard: {
		"xylophone", "volcano", "lighthouse", "submarine", "kangaroo", "parachute", "telescope", "waterfall", "pyramid", "scarecrow",
	},
	domain.DifficultyExpert: {
		"constellation", "archaeology", "chameleon", "hourglass", "skyscraper", "windmill", "accordion", "compass", "labyrinth", "origami",
	},
	domain.DifficultyInsane: {
		"metamorphosis", "philosophy", "photosynthesis", "procrastination", "gravity", "nostalgia", "democracy", "echo", "infinity", "algorithm",
	},
}

type Config struct {
	// Pools overrides the built-in word lists.
	Pools map[domain.Difficulty][]string
	// Candidates is how many words Sample returns.
	Candidates int
	Rand       *rand.Rand
}

// Bank holds difficulty-tiered word pools.
type Bank struct {
	pools map[domain.Difficulty][]string
	n     int

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewBank(c Config) *Bank {
	b := &Bank{
		pools: c.Pools,
		n:     c.Candidates,
		rnd:   c.Rand,
	}

	if b.pools == nil {
		b.pools = defaultPools
	}
	if b.n <= 0 {
		b.n = defaultCandidates
	}
	if b.rnd == nil {
		b.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return b
}

// Sample returns distinct candidate words for the tier, falling back to the
// easy pool for unknown tiers. Every call reshuffles independently.
func (b *Bank) Sample(d domain.Difficulty) []string {
	pool, ok := b.pools[d]
	if !ok || len(pool) == 0 {
		pool = b.pools[domain.DifficultyEasy]
	}

	n := min(b.n, len(pool))
	idx := make([]int, len(pool))
	for i := range idx {
		idx[i] = i
	}

	b.mu.Lock()
	// partial Fisher-Yates, only the first n slots are needed
	for i := 0; i < n; i++ {
		j := i + b.rnd.IntN(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	b.mu.Unlock()

	out := make([]string, n)
	for i := range out {
		out[i] = pool[idx[i]]
	}
	return out
}
