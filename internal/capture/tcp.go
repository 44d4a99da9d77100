package capture

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net"
	"sync"
	"time"

	"github.com/jondmarien/automotive-security-capstone-sub001/internal/signal"
)

// frame is the wire format of one observation from the external capture
// daemon: newline-delimited JSON with a hex payload and a float-seconds
// timestamp, converted to the internal model at this edge.
type frame struct {
	Payload        string  `json:"payload"`
	Frequency      float64 `json:"frequency_hz"`
	SignalStrength float64 `json:"signal_strength_dbm"`
	SignalToNoise  float64 `json:"snr_db"`
	TagID          string  `json:"tag_id,omitempty"`
	Timestamp      float64 `json:"timestamp"` // seconds since epoch
}

func (f frame) toObservation() (signal.Observation, error) {
	payload, err := hex.DecodeString(f.Payload)
	if err != nil {
		return signal.Observation{}, fmt.Errorf("invalid payload hex: %w", err)
	}

	ts := time.Now().UTC()
	if f.Timestamp > 0 {
		sec, frac := math.Modf(f.Timestamp)
		ts = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}

	return signal.Observation{
		Payload:        payload,
		Frequency:      f.Frequency,
		SignalStrength: f.SignalStrength,
		SignalToNoise:  f.SignalToNoise,
		TagID:          f.TagID,
		Timestamp:      ts,
	}, nil
}

// TCPSource reads observation frames from a capture daemon over TCP.
type TCPSource struct {
	config Config

	mu      sync.Mutex
	conn    net.Conn
	scanner *bufio.Scanner
	closed  bool
}

// NewTCPSource creates a TCP source. The connection is established in
// Initialize, not here.
func NewTCPSource(cfg Config) (*TCPSource, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("tcp capture source requires an address")
	}
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = 65535
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &TCPSource{config: cfg}, nil
}

// Initialize dials the capture daemon.
func (t *TCPSource) Initialize(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrSourceClosed
	}
	if t.conn != nil {
		return nil
	}

	dialer := net.Dialer{Timeout: t.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.config.Address)
	if err != nil {
		return fmt.Errorf("dial capture daemon: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), t.config.MaxLineLength)

	t.conn = conn
	t.scanner = scanner

	slog.Info("connected to capture daemon", "address", t.config.Address)
	return nil
}

// Poll reads the next frame. Malformed frames are skipped with a warning;
// the capture daemon going quiet past the idle timeout surfaces as an error.
func (t *TCPSource) Poll(ctx context.Context) (signal.Observation, error) {
	t.mu.Lock()
	conn, scanner, closed := t.conn, t.scanner, t.closed
	t.mu.Unlock()

	if closed {
		return signal.Observation{}, ErrSourceClosed
	}
	if conn == nil {
		return signal.Observation{}, ErrNotInitialized
	}

	for {
		if err := ctx.Err(); err != nil {
			return signal.Observation{}, err
		}

		if t.config.IdleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(t.config.IdleTimeout)); err != nil {
				return signal.Observation{}, err
			}
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return signal.Observation{}, fmt.Errorf("read capture frame: %w", err)
			}
			return signal.Observation{}, ErrSourceClosed
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var f frame
		if err := json.Unmarshal(line, &f); err != nil {
			slog.Warn("skipping malformed capture frame", "error", err)
			continue
		}

		obs, err := f.toObservation()
		if err != nil {
			slog.Warn("skipping invalid capture frame", "error", err)
			continue
		}
		return obs, nil
	}
}

// Shutdown closes the connection.
func (t *TCPSource) Shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if t.conn != nil {
		err := t.conn.Close()
		t.conn = nil
		t.scanner = nil
		return err
	}
	return nil
}
