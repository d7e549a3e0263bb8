package logic

import (
	"math/rand"
	"sync"
	"time"
)

// Rand yields uniform indices in [0, n). *rand.Rand satisfies it; tests
// inject fixed sequences.
type Rand interface {
	Intn(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a goroutine-safe Rand. A zero seed uses the clock.
func NewRand(seed int64) Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// Shuffle permutes names in place with Fisher-Yates, so every permutation
// is equally likely given a uniform rng.
func Shuffle(names []string, rng Rand) {
	for i := len(names) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		names[i], names[j] = names[j], names[i]
	}
}
