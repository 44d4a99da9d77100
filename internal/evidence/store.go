// Package evidence provides bounded in-memory storage for raw observations
// and generated alerts. Capacity is fixed at construction; inserting beyond
// capacity silently evicts the oldest entry. Nothing here is durable: the
// store resets on restart by design.
package evidence

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jondmarien/automotive-security-capstone-sub001/internal/signal"
)

// ErrInvalidCapacity is returned for zero or negative capacities.
var ErrInvalidCapacity = errors.New("capacity must be positive")

// ringLog is a fixed-capacity FIFO sequence. Pushing onto a full ring
// evicts the oldest entry; total counts lifetime inserts and is never
// decremented by eviction.
type ringLog[T any] struct {
	buf   []T
	head  int
	count int
	total uint64
}

func newRingLog[T any](capacity int) ringLog[T] {
	return ringLog[T]{buf: make([]T, capacity)}
}

func (r *ringLog[T]) push(v T) {
	if r.count == len(r.buf) {
		// Evict oldest.
		r.buf[r.head] = v
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.buf[(r.head+r.count)%len(r.buf)] = v
		r.count++
	}
	r.total++
}

// recent returns up to limit entries, most recent first. A non-positive
// limit returns the full retained set.
func (r *ringLog[T]) recent(limit int) []T {
	if limit <= 0 || limit > r.count {
		limit = r.count
	}
	out := make([]T, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.head + r.count - 1 - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

func (r *ringLog[T]) clear() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.count = 0
	r.total = 0
}

// Store holds two independent bounded sequences: raw observations and
// generated alert reports.
type Store struct {
	mu           sync.Mutex
	observations ringLog[signal.Observation]
	alerts       ringLog[signal.SecurityReport]
}

// New creates a Store with independent capacities for each sequence.
func New(observationCapacity, alertCapacity int) (*Store, error) {
	if observationCapacity <= 0 {
		return nil, fmt.Errorf("observation %w: %d", ErrInvalidCapacity, observationCapacity)
	}
	if alertCapacity <= 0 {
		return nil, fmt.Errorf("alert %w: %d", ErrInvalidCapacity, alertCapacity)
	}
	return &Store{
		observations: newRingLog[signal.Observation](observationCapacity),
		alerts:       newRingLog[signal.SecurityReport](alertCapacity),
	}, nil
}

// SaveObservation records an owned copy of the observation.
func (s *Store) SaveObservation(obs signal.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observations.push(obs.Clone())
}

// SaveAlert records a generated alert report.
func (s *Store) SaveAlert(report signal.SecurityReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts.push(report)
}

// RecentObservations returns retained observations, most recent first.
// limit <= 0 returns everything retained.
func (s *Store) RecentObservations(limit int) []signal.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observations.recent(limit)
}

// RecentAlerts returns retained alert reports, most recent first.
func (s *Store) RecentAlerts(limit int) []signal.SecurityReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts.recent(limit)
}

// ClearAll empties both sequences and resets counts and lifetime totals.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observations.clear()
	s.alerts.clear()
}

// SequenceMetrics describes one bounded sequence.
type SequenceMetrics struct {
	Count    int    `json:"count"`
	Total    uint64 `json:"total"`
	Capacity int    `json:"max"`
}

// Metrics holds per-sequence statistics.
type Metrics struct {
	Observations SequenceMetrics `json:"observations"`
	Alerts       SequenceMetrics `json:"alerts"`
}

// Metrics returns current counts, lifetime totals and capacities.
func (s *Store) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Metrics{
		Observations: SequenceMetrics{
			Count:    s.observations.count,
			Total:    s.observations.total,
			Capacity: len(s.observations.buf),
		},
		Alerts: SequenceMetrics{
			Count:    s.alerts.count,
			Total:    s.alerts.total,
			Capacity: len(s.alerts.buf),
		},
	}
}
