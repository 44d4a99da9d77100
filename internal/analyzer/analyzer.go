// Package analyzer classifies admitted observations against a rolling
// history window using replay, jamming and brute-force heuristics.
package analyzer

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jondmarien/automotive-security-capstone-sub001/internal/signal"
)

// Config holds the detection windows and thresholds.
type Config struct {
	ReplayWindow    time.Duration
	ReplayTolerance float64 // dB difference treated as "same transmitter"

	JamWindow    time.Duration
	JamThreshold int // transmissions above this within JamWindow is jamming

	BruteForceWindow    time.Duration
	BruteForceThreshold int
}

// DefaultConfig returns detection defaults tuned for key-fob traffic.
// The replay window is deliberately longer than the admission filter's
// duplicate window: a signature re-appearing after dedup expiry with a
// different strength is the replay signal this analyzer exists to catch.
func DefaultConfig() Config {
	return Config{
		ReplayWindow:        10 * time.Second,
		ReplayTolerance:     1.0,
		JamWindow:           1 * time.Second,
		JamThreshold:        10,
		BruteForceWindow:    10 * time.Second,
		BruteForceThreshold: 8,
	}
}

type historyEntry struct {
	sig      signal.Signature
	strength float64
	ts       time.Time
}

// Analyzer maintains the rolling history of admitted observations and
// produces one SecurityReport per call. Analyze must be serialized per
// device; the internal mutex covers callers sharing an instance.
type Analyzer struct {
	config Config

	mu       sync.Mutex
	history  []historyEntry
	analyzed uint64
}

// New creates an Analyzer, rejecting non-positive windows and thresholds.
func New(cfg Config) (*Analyzer, error) {
	if cfg.ReplayWindow <= 0 || cfg.JamWindow <= 0 || cfg.BruteForceWindow <= 0 {
		return nil, fmt.Errorf("detection windows must be positive")
	}
	if cfg.JamThreshold <= 0 || cfg.BruteForceThreshold <= 0 {
		return nil, fmt.Errorf("detection thresholds must be positive")
	}
	if cfg.ReplayTolerance < 0 {
		return nil, fmt.Errorf("replay tolerance must be non-negative")
	}
	return &Analyzer{config: cfg}, nil
}

func (a *Analyzer) maxWindow() time.Duration {
	w := a.config.ReplayWindow
	if a.config.JamWindow > w {
		w = a.config.JamWindow
	}
	if a.config.BruteForceWindow > w {
		w = a.config.BruteForceWindow
	}
	return w
}

// Analyze classifies one observation. Checks run in specificity order:
// replay (identity based) before jamming before brute force. The new
// observation is appended to history after the checks, so it never matches
// its own replay comparison but does count toward the rate thresholds.
func (a *Analyzer) Analyze(obs signal.Observation) signal.SecurityReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := obs.Timestamp
	a.prune(now)

	sig := obs.Signature()
	level := signal.Benign
	reason := "no threat detected"

	switch {
	case a.replayMatch(sig, obs.SignalStrength, now):
		level = signal.Malicious
		reason = "replay attack: identical signature re-transmitted with different signal strength"
	case a.countSince(now.Add(-a.config.JamWindow))+1 > a.config.JamThreshold:
		level = signal.Malicious
		reason = fmt.Sprintf("jamming: transmission burst exceeded %d within %v",
			a.config.JamThreshold, a.config.JamWindow)
	case a.countSince(now.Add(-a.config.BruteForceWindow))+1 > a.config.BruteForceThreshold:
		level = signal.Malicious
		reason = fmt.Sprintf("multiple rapid transmissions: possible brute-force unlock attempt (> %d within %v)",
			a.config.BruteForceThreshold, a.config.BruteForceWindow)
	}

	a.history = append(a.history, historyEntry{sig: sig, strength: obs.SignalStrength, ts: now})
	a.analyzed++

	return signal.NewSecurityReport(obs, level, reason)
}

// prune drops entries older than the longest configured window. History is
// append-ordered by non-decreasing timestamp, so a single cut index suffices.
func (a *Analyzer) prune(now time.Time) {
	cutoff := now.Add(-a.maxWindow())
	i := 0
	for i < len(a.history) && a.history[i].ts.Before(cutoff) {
		i++
	}
	if i > 0 {
		a.history = append(a.history[:0], a.history[i:]...)
	}
}

func (a *Analyzer) replayMatch(sig signal.Signature, strength float64, now time.Time) bool {
	cutoff := now.Add(-a.config.ReplayWindow)
	for i := len(a.history) - 1; i >= 0; i-- {
		e := a.history[i]
		if e.ts.Before(cutoff) {
			break
		}
		if e.sig == sig && math.Abs(e.strength-strength) > a.config.ReplayTolerance {
			return true
		}
	}
	return false
}

func (a *Analyzer) countSince(cutoff time.Time) int {
	n := 0
	for i := len(a.history) - 1; i >= 0; i-- {
		if a.history[i].ts.Before(cutoff) {
			break
		}
		n++
	}
	return n
}

// Reset clears the history window and the lifetime counter.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
	a.analyzed = 0
}

// Metrics holds analyzer statistics.
type Metrics struct {
	Analyzed         uint64  `json:"analyzed"`
	HistoryDepth     int     `json:"history_depth"`
	PacketsPerSecond float64 `json:"packets_per_second"`
}

// Metrics returns the lifetime analyzed count and an instantaneous rate
// computed over the span of the current history window.
func (a *Analyzer) Metrics() Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	m := Metrics{
		Analyzed:     a.analyzed,
		HistoryDepth: len(a.history),
	}
	if len(a.history) >= 2 {
		span := a.history[len(a.history)-1].ts.Sub(a.history[0].ts).Seconds()
		if span > 0 {
			m.PacketsPerSecond = float64(len(a.history)) / span
		}
	}
	return m
}
