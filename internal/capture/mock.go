package capture

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jondmarien/automotive-security-capstone-sub001/internal/signal"
)

// key-fob bands the mock draws carrier frequencies from.
var mockBands = []struct{ low, high float64 }{
	{300e6, 350e6},
	{400e6, 450e6},
	{860e6, 870e6},
}

// MockSource synthesizes plausible key-fob RF bursts and the occasional NFC
// tag read for bench testing. A fixed Seed makes the stream deterministic.
type MockSource struct {
	interval time.Duration
	nfcRatio float64

	mu          sync.Mutex
	rng         *rand.Rand
	initialized bool
	closed      bool
}

// NewMockSource creates a mock source from the capture config.
func NewMockSource(cfg Config) *MockSource {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &MockSource{
		interval: interval,
		nfcRatio: cfg.NFCRatio,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Initialize marks the source ready.
func (m *MockSource) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSourceClosed
	}
	m.initialized = true
	return nil
}

// Poll waits one emission interval and returns a synthetic observation.
func (m *MockSource) Poll(ctx context.Context) (signal.Observation, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return signal.Observation{}, ErrSourceClosed
	}
	if !m.initialized {
		m.mu.Unlock()
		return signal.Observation{}, ErrNotInitialized
	}
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return signal.Observation{}, ctx.Err()
	case <-time.After(m.interval):
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return signal.Observation{}, ErrSourceClosed
	}
	return m.synthesize(), nil
}

// synthesize builds one observation; callers hold m.mu.
func (m *MockSource) synthesize() signal.Observation {
	payload := make([]byte, 8)
	for i := range payload {
		payload[i] = byte(m.rng.Intn(256))
	}

	band := mockBands[m.rng.Intn(len(mockBands))]
	obs := signal.NewObservation(
		payload,
		band.low+m.rng.Float64()*(band.high-band.low),
		-40-m.rng.Float64()*50, // -40 .. -90 dBm
		5+m.rng.Float64()*25,   // 5 .. 30 dB SNR
	)

	if m.rng.Float64() < m.nfcRatio {
		obs.TagID = randomTagID(m.rng)
		obs.Frequency = 13.56e6
	}
	return obs
}

func randomTagID(rng *rand.Rand) string {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, 8)
	for i := range b {
		b[i] = hexDigits[rng.Intn(len(hexDigits))]
	}
	return string(b)
}

// Shutdown closes the source.
func (m *MockSource) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
