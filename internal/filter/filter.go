// Package filter provides the admission gate in front of threat analysis.
// It discards observations outside the monitored frequency bands, below the
// minimum usable signal strength, or re-captured within the duplicate
// suppression window.
package filter

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jondmarien/automotive-security-capstone-sub001/internal/signal"
)

var (
	// ErrNoBands is returned when the filter is configured without any
	// frequency band.
	ErrNoBands = errors.New("at least one frequency band is required")
	// ErrInvalidBand is returned when a band's bounds are inverted.
	ErrInvalidBand = errors.New("band low bound exceeds high bound")
)

// Band is an inclusive frequency range in Hz.
type Band struct {
	Low  float64 `json:"low_hz"`
	High float64 `json:"high_hz"`
}

// Contains reports whether f falls within the band, bounds inclusive.
func (b Band) Contains(f float64) bool {
	return f >= b.Low && f <= b.High
}

// Config holds admission filter settings.
type Config struct {
	Bands           []Band
	MinStrength     float64 // dBm, inclusive pass at the threshold
	DuplicateWindow time.Duration
}

// DefaultConfig returns the stock key-fob monitoring configuration:
// 300-350 MHz, 400-450 MHz and 860-870 MHz bands.
func DefaultConfig() Config {
	return Config{
		Bands: []Band{
			{Low: 300e6, High: 350e6},
			{Low: 400e6, High: 450e6},
			{Low: 860e6, High: 870e6},
		},
		MinStrength:     -90,
		DuplicateWindow: 5 * time.Second,
	}
}

// Filter is the pre-analysis admission gate.
type Filter struct {
	config Config

	mu       sync.Mutex
	lastSeen map[signal.Signature]time.Time
}

// New creates a Filter, rejecting invalid band configuration.
func New(cfg Config) (*Filter, error) {
	if len(cfg.Bands) == 0 {
		return nil, ErrNoBands
	}
	for _, b := range cfg.Bands {
		if b.Low > b.High {
			return nil, fmt.Errorf("%w: [%g, %g]", ErrInvalidBand, b.Low, b.High)
		}
	}
	if cfg.DuplicateWindow <= 0 {
		return nil, fmt.Errorf("duplicate window must be positive, got %v", cfg.DuplicateWindow)
	}

	return &Filter{
		config:   cfg,
		lastSeen: make(map[signal.Signature]time.Time),
	}, nil
}

// ShouldAccept decides whether the observation is forwarded into analysis.
// This removes capture-artifact retransmissions only; a signature that
// reappears after the duplicate window with a different strength is exactly
// the replay evidence the analyzer looks for, and passes through here.
func (f *Filter) ShouldAccept(obs signal.Observation) bool {
	if !f.inBand(obs.Frequency) {
		return false
	}
	if obs.SignalStrength < f.config.MinStrength {
		return false
	}
	return f.admitSignature(obs.Signature(), obs.Timestamp)
}

func (f *Filter) inBand(freq float64) bool {
	for _, b := range f.config.Bands {
		if b.Contains(freq) {
			return true
		}
	}
	return false
}

// admitSignature updates duplicate-suppression state. Expired entries are
// pruned lazily on each check, relative to the observation's own timestamp
// so simulated clocks behave identically.
func (f *Filter) admitSignature(sig signal.Signature, now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for s, ts := range f.lastSeen {
		if now.Sub(ts) > f.config.DuplicateWindow {
			delete(f.lastSeen, s)
		}
	}

	if last, ok := f.lastSeen[sig]; ok && now.Sub(last) <= f.config.DuplicateWindow {
		return false
	}

	f.lastSeen[sig] = now
	return true
}

// Metrics holds the filter configuration and duplicate-tracking state.
type Metrics struct {
	Bands             []Band        `json:"bands"`
	MinStrength       float64       `json:"min_strength_dbm"`
	DuplicateWindow   time.Duration `json:"duplicate_window"`
	TrackedSignatures int           `json:"tracked_signatures"`
}

// Metrics returns the current configuration and the count of non-expired
// tracked signatures. Entries that expired since the last admission check
// are pruned against the newest seen timestamp before counting.
func (f *Filter) Metrics() Metrics {
	f.mu.Lock()
	defer f.mu.Unlock()

	var newest time.Time
	for _, ts := range f.lastSeen {
		if ts.After(newest) {
			newest = ts
		}
	}
	for s, ts := range f.lastSeen {
		if newest.Sub(ts) > f.config.DuplicateWindow {
			delete(f.lastSeen, s)
		}
	}

	return Metrics{
		Bands:             f.config.Bands,
		MinStrength:       f.config.MinStrength,
		DuplicateWindow:   f.config.DuplicateWindow,
		TrackedSignatures: len(f.lastSeen),
	}
}
