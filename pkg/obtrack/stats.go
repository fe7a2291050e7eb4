package obtrack

import (
	"sync/atomic"
)

// Stats holds process-local counters for instrumented calls and resource lookups.
// The store remains the source of truth for call counts; Stats only reflects
// what this process observed.
type Stats struct {
	// Calls is the number of instrumented calls that completed
	calls int64

	// CallErrors is the number of instrumented calls that returned an error
	callErrors int64

	// Hits is the number of resource lookups served from the store
	hits int64

	// Misses is the number of resource lookups that required a fetch
	misses int64

	// Fetches is the number of underlying fetch calls
	fetches int64

	// FetchErrors is the number of fetch calls that failed
	fetchErrors int64

	// InFlight is the number of fetches currently running
	inFlight int64
}

// Calls returns the number of instrumented calls observed
func (s *Stats) Calls() int64 {
	return atomic.LoadInt64(&s.calls)
}

// CallErrors returns the number of instrumented calls that failed
func (s *Stats) CallErrors() int64 {
	return atomic.LoadInt64(&s.callErrors)
}

// Hits returns the number of resource cache hits
func (s *Stats) Hits() int64 {
	return atomic.LoadInt64(&s.hits)
}

// Misses returns the number of resource cache misses
func (s *Stats) Misses() int64 {
	return atomic.LoadInt64(&s.misses)
}

// Fetches returns the number of underlying fetch calls
func (s *Stats) Fetches() int64 {
	return atomic.LoadInt64(&s.fetches)
}

// FetchErrors returns the number of failed fetch calls
func (s *Stats) FetchErrors() int64 {
	return atomic.LoadInt64(&s.fetchErrors)
}

// InFlight returns the number of fetches currently in flight
func (s *Stats) InFlight() int64 {
	return atomic.LoadInt64(&s.inFlight)
}

// HitRate returns the resource cache hit rate as a percentage (0-100)
func (s *Stats) HitRate() float64 {
	hits := s.Hits()
	misses := s.Misses()
	total := hits + misses

	if total == 0 {
		return 0
	}

	return float64(hits) / float64(total) * 100
}

// Total returns the total number of resource lookups (hits + misses)
func (s *Stats) Total() int64 {
	return s.Hits() + s.Misses()
}

// Reset resets all statistics to zero
func (s *Stats) Reset() {
	atomic.StoreInt64(&s.calls, 0)
	atomic.StoreInt64(&s.callErrors, 0)
	atomic.StoreInt64(&s.hits, 0)
	atomic.StoreInt64(&s.misses, 0)
	atomic.StoreInt64(&s.fetches, 0)
	atomic.StoreInt64(&s.fetchErrors, 0)
	atomic.StoreInt64(&s.inFlight, 0)
}

func (s *Stats) incCalls() {
	atomic.AddInt64(&s.calls, 1)
}

func (s *Stats) incCallErrors() {
	atomic.AddInt64(&s.callErrors, 1)
}

func (s *Stats) incHits() {
	atomic.AddInt64(&s.hits, 1)
}

func (s *Stats) incMisses() {
	atomic.AddInt64(&s.misses, 1)
}

func (s *Stats) incFetches() {
	atomic.AddInt64(&s.fetches, 1)
}

func (s *Stats) incFetchErrors() {
	atomic.AddInt64(&s.fetchErrors, 1)
}

func (s *Stats) incInFlight() {
	atomic.AddInt64(&s.inFlight, 1)
}

func (s *Stats) decInFlight() {
	atomic.AddInt64(&s.inFlight, -1)
}
