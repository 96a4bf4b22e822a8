package expect

import (
	"fmt"
	"time"
)

// TestResult is the named outcome of one assertion.
type TestResult struct {
	Name     string
	Passed   bool
	Message  string
	Failure  *AssertionError
	Duration time.Duration
}

// Run evaluates fn as a single named test. A returned error or a panic
// becomes a failed result; neither escapes.
func Run(name string, fn func() error) (res TestResult) {
	res.Name = name
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		if r := recover(); r != nil {
			res.Passed = false
			res.Failure = nil
			res.Message = fmt.Sprintf("panic: %v", r)
		}
	}()

	if err := fn(); err != nil {
		res.Message = err.Error()
		res.Failure, _ = AsAssertionError(err)
		return res
	}
	res.Passed = true
	return res
}

// Suite collects TestResults. With StopOnFailure set, tests after the
// first failure are skipped.
type Suite struct {
	Name          string
	StopOnFailure bool

	results []TestResult
	stopped bool
}

func NewSuite(name string, stopOnFailure bool) *Suite {
	return &Suite{Name: name, StopOnFailure: stopOnFailure}
}

// Test runs fn unless the suite has stopped. It reports whether fn ran.
func (s *Suite) Test(name string, fn func() error) bool {
	if s.stopped {
		return false
	}
	res := Run(name, fn)
	s.results = append(s.results, res)
	if !res.Passed && s.StopOnFailure {
		s.stopped = true
	}
	return true
}

// Add records an externally produced result under the same stop rules.
func (s *Suite) Add(res TestResult) bool {
	if s.stopped {
		return false
	}
	s.results = append(s.results, res)
	if !res.Passed && s.StopOnFailure {
		s.stopped = true
	}
	return true
}

func (s *Suite) Results() []TestResult {
	return append([]TestResult(nil), s.results...)
}

func (s *Suite) Stopped() bool { return s.stopped }

func (s *Suite) Passed() int {
	n := 0
	for _, r := range s.results {
		if r.Passed {
			n++
		}
	}
	return n
}

func (s *Suite) Failed() int {
	return len(s.results) - s.Passed()
}

// OK reports whether every recorded test passed.
func (s *Suite) OK() bool {
	return s.Failed() == 0
}
