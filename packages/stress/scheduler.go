package stress

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/restbench/packages/collection"
	"golang.org/x/time/rate"
)

// Target is a collection item the scheduler can pick.
type Target struct {
	ID     collection.NodeID
	Name   string
	Path   string
	Weight int
}

// Scheduler paces request starts and picks targets by weight.
type Scheduler struct {
	config  *Config
	limiter *rate.Limiter
	sem     chan struct{}

	mu         sync.Mutex
	rnd        *rand.Rand
	targets    []Target
	cumulative []int
	total      int
}

func NewScheduler(config *Config) *Scheduler {
	s := &Scheduler{
		config: config,
		rnd:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
	if config.Mode == RateMode && config.Rate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
	}
	inFlight := config.MaxInFlight
	if inFlight < 1 {
		inFlight = 100
	}
	s.sem = make(chan struct{}, inFlight)
	return s
}

// Add registers a target. Weights below 1 count as 1.
func (s *Scheduler) Add(t Target) {
	if t.Weight < 1 {
		t.Weight = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = append(s.targets, t)
	s.total += t.Weight
	s.cumulative = append(s.cumulative, s.total)
}

// Pick returns a weighted random target.
func (s *Scheduler) Pick() (Target, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch len(s.targets) {
	case 0:
		return Target{}, false
	case 1:
		return s.targets[0], true
	}
	n := s.rnd.IntN(s.total)
	i := sort.SearchInts(s.cumulative, n+1)
	return s.targets[i], true
}

func (s *Scheduler) Targets() []Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Target(nil), s.targets...)
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.targets)
}

// Wait blocks until the limiter allows another start. Worker mode has no
// limiter and returns immediately.
func (s *Scheduler) Wait(ctx context.Context) error {
	if s.limiter != nil {
		return s.limiter.Wait(ctx)
	}
	return ctx.Err()
}

func (s *Scheduler) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Release() {
	<-s.sem
}

// InFlight returns the number of held slots.
func (s *Scheduler) InFlight() int {
	return len(s.sem)
}

// RateAt is the target rate after elapsed time, never below one request
// per second while ramping.
func (s *Scheduler) RateAt(elapsed time.Duration) float64 {
	if s.config.RampUp <= 0 || elapsed >= s.config.RampUp {
		return s.config.Rate
	}
	r := s.config.Rate * float64(elapsed) / float64(s.config.RampUp)
	return max(r, 1)
}

// StartDelay staggers worker i so the pool reaches full size at the end of
// the ramp-up. Worker 0 always starts at once.
func (s *Scheduler) StartDelay(i int) time.Duration {
	if s.config.RampUp <= 0 || s.config.Workers <= 1 {
		return 0
	}
	return time.Duration(int64(s.config.RampUp) * int64(i) / int64(s.config.Workers))
}

func (s *Scheduler) SetRate(r float64) {
	if s.limiter != nil && r > 0 {
		s.limiter.SetLimit(rate.Limit(r))
	}
}
