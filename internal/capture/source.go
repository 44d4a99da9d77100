// Package capture abstracts the external signal capture layer behind a
// single interface with interchangeable mock and TCP-fed variants, selected
// by a construction-time factory.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jondmarien/automotive-security-capstone-sub001/internal/signal"
)

var (
	// ErrNotInitialized is returned when polling a source before Initialize.
	ErrNotInitialized = errors.New("capture source not initialized")
	// ErrSourceClosed is returned when polling after Shutdown.
	ErrSourceClosed = errors.New("capture source closed")
)

// Source is a decoded-observation provider. Implementations hand fully
// decoded observations to the core; demodulation happens upstream.
type Source interface {
	// Initialize prepares the source. Must be called before Poll.
	Initialize(ctx context.Context) error
	// Poll blocks until the next observation, ctx cancellation or error.
	Poll(ctx context.Context) (signal.Observation, error)
	// Shutdown releases the source. Poll returns ErrSourceClosed afterwards.
	Shutdown() error
}

// Kind selects a Source implementation.
type Kind string

const (
	KindMock Kind = "mock"
	KindTCP  Kind = "tcp"
)

// Config holds capture source settings.
type Config struct {
	Kind Kind

	// Mock source settings.
	Seed     int64
	Interval time.Duration
	NFCRatio float64 // fraction of synthetic observations that are NFC reads

	// TCP source settings.
	Address       string
	DialTimeout   time.Duration
	IdleTimeout   time.Duration
	MaxLineLength int
}

// DefaultConfig returns a mock source emitting ten observations per second.
func DefaultConfig() Config {
	return Config{
		Kind:          KindMock,
		Interval:      100 * time.Millisecond,
		NFCRatio:      0.05,
		DialTimeout:   5 * time.Second,
		IdleTimeout:   5 * time.Minute,
		MaxLineLength: 65535,
	}
}

// NewSource builds the configured Source variant.
func NewSource(cfg Config) (Source, error) {
	switch cfg.Kind {
	case KindMock:
		return NewMockSource(cfg), nil
	case KindTCP:
		return NewTCPSource(cfg)
	default:
		return nil, fmt.Errorf("unknown capture source kind %q", cfg.Kind)
	}
}
