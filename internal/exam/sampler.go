package exam

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/mind-engage/mindsprint/internal/catalog"
)

// sampler draws questions without replacement. *rand.Rand is not safe for
// concurrent use, hence the mutex.
type sampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newSampler(src rand.Source) *sampler {
	return &sampler{rnd: rand.New(src)}
}

// pick returns n distinct questions from pool in random order. The pool is not modified.
func (s *sampler) pick(pool []catalog.Question, n int) ([]catalog.Question, error) {
	if n > len(pool) {
		return nil, fmt.Errorf("need %d, have %d: %w", n, len(pool), ErrInsufficientQuestions)
	}
	cp := make([]catalog.Question, len(pool))
	copy(cp, pool)

	s.mu.Lock()
	defer s.mu.Unlock()
	// partial Fisher-Yates: the first n slots end up a uniform sample
	for i := 0; i < n; i++ {
		j := i + s.rnd.Intn(len(cp)-i)
		cp[i], cp[j] = cp[j], cp[i]
	}
	return cp[:n], nil
}
