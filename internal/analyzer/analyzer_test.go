package analyzer

import (
	"strings"
	"testing"
	"time"

	"github.com/jondmarien/automotive-security-capstone-sub001/internal/signal"
)

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testAnalyzer(t *testing.T, cfg Config) *Analyzer {
	t.Helper()
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestNew(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero replay window", Config{JamWindow: time.Second, JamThreshold: 5, BruteForceWindow: time.Second, BruteForceThreshold: 5}},
		{"zero jam threshold", Config{ReplayWindow: time.Second, JamWindow: time.Second, BruteForceWindow: time.Second, BruteForceThreshold: 5}},
		{"negative tolerance", func() Config { c := DefaultConfig(); c.ReplayTolerance = -1; return c }()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err == nil {
				t.Error("New() accepted invalid config")
			}
		})
	}
}

func TestReplayDetection(t *testing.T) {
	a := testAnalyzer(t, DefaultConfig())

	first := signal.NewObservation([]byte{0xca, 0xfe}, 315e6, -65, 20).WithTimestamp(testBase)
	report := a.Analyze(first)
	if report.ThreatLevel != signal.Benign {
		t.Errorf("first report = %v, want Benign", report.ThreatLevel)
	}

	t.Run("same signature different strength is replay", func(t *testing.T) {
		replayed := signal.NewObservation([]byte{0xca, 0xfe}, 315e6, -70, 20).
			WithTimestamp(testBase.Add(time.Second))
		report := a.Analyze(replayed)
		if report.ThreatLevel != signal.Malicious {
			t.Errorf("replay report = %v, want Malicious", report.ThreatLevel)
		}
		if !strings.Contains(report.Reason, "replay") {
			t.Errorf("reason %q does not mention replay", report.Reason)
		}
	})

	t.Run("strength within tolerance is not replay", func(t *testing.T) {
		b := testAnalyzer(t, DefaultConfig())
		b.Analyze(signal.NewObservation([]byte{0x01}, 315e6, -65, 20).WithTimestamp(testBase))
		report := b.Analyze(signal.NewObservation([]byte{0x01}, 315e6, -65.5, 20).
			WithTimestamp(testBase.Add(time.Second)))
		if report.ThreatLevel != signal.Benign {
			t.Errorf("report = %v, want Benign for in-tolerance strength", report.ThreatLevel)
		}
	})

	t.Run("match outside replay window ignored", func(t *testing.T) {
		b := testAnalyzer(t, DefaultConfig())
		b.Analyze(signal.NewObservation([]byte{0x02}, 315e6, -65, 20).WithTimestamp(testBase))
		report := b.Analyze(signal.NewObservation([]byte{0x02}, 315e6, -75, 20).
			WithTimestamp(testBase.Add(15 * time.Second)))
		if report.ThreatLevel != signal.Benign {
			t.Errorf("report = %v, want Benign outside replay window", report.ThreatLevel)
		}
	})
}

func TestJammingDetection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JamThreshold = 5
	cfg.BruteForceThreshold = 100
	a := testAnalyzer(t, cfg)

	// Six distinct bursts inside the jam window: first five benign, sixth
	// crosses the threshold.
	for i := 0; i < 5; i++ {
		obs := signal.NewObservation([]byte{0x10, byte(i)}, 315e6, -65, 20).
			WithTimestamp(testBase.Add(time.Duration(i) * 100 * time.Millisecond))
		report := a.Analyze(obs)
		if report.ThreatLevel != signal.Benign {
			t.Fatalf("observation %d = %v, want Benign", i, report.ThreatLevel)
		}
	}

	sixth := signal.NewObservation([]byte{0x10, 0x05}, 315e6, -65, 20).
		WithTimestamp(testBase.Add(500 * time.Millisecond))
	report := a.Analyze(sixth)
	if report.ThreatLevel != signal.Malicious {
		t.Errorf("sixth observation = %v, want Malicious", report.ThreatLevel)
	}
	if !strings.Contains(report.Reason, "jamming") {
		t.Errorf("reason %q does not mention jamming", report.Reason)
	}
}

func TestBruteForceDetection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JamThreshold = 100 // keep jamming out of the way
	cfg.BruteForceThreshold = 3
	a := testAnalyzer(t, cfg)

	// Distinct codes spaced beyond the jam window but inside the brute
	// force window.
	for i := 0; i < 3; i++ {
		obs := signal.NewObservation([]byte{0x20, byte(i)}, 433e6, -65, 20).
			WithTimestamp(testBase.Add(time.Duration(i) * 2 * time.Second))
		report := a.Analyze(obs)
		if report.ThreatLevel != signal.Benign {
			t.Fatalf("observation %d = %v, want Benign", i, report.ThreatLevel)
		}
	}

	fourth := signal.NewObservation([]byte{0x20, 0x03}, 433e6, -65, 20).
		WithTimestamp(testBase.Add(6 * time.Second))
	report := a.Analyze(fourth)
	if report.ThreatLevel != signal.Malicious {
		t.Errorf("fourth observation = %v, want Malicious", report.ThreatLevel)
	}
	if !strings.Contains(report.Reason, "brute") && !strings.Contains(report.Reason, "multiple") {
		t.Errorf("reason %q mentions neither brute nor multiple", report.Reason)
	}
}

func TestCheckOrdering(t *testing.T) {
	// With both rate thresholds exceeded, replay wins over jamming, and
	// jamming over brute force.
	cfg := DefaultConfig()
	cfg.JamThreshold = 2
	cfg.BruteForceThreshold = 2
	a := testAnalyzer(t, cfg)

	a.Analyze(signal.NewObservation([]byte{0x30}, 315e6, -65, 20).WithTimestamp(testBase))
	a.Analyze(signal.NewObservation([]byte{0x31}, 315e6, -65, 20).WithTimestamp(testBase.Add(100 * time.Millisecond)))

	report := a.Analyze(signal.NewObservation([]byte{0x30}, 315e6, -75, 20).
		WithTimestamp(testBase.Add(200 * time.Millisecond)))
	if !strings.Contains(report.Reason, "replay") {
		t.Errorf("reason %q, want replay to take precedence", report.Reason)
	}

	report = a.Analyze(signal.NewObservation([]byte{0x32}, 315e6, -65, 20).
		WithTimestamp(testBase.Add(300 * time.Millisecond)))
	if !strings.Contains(report.Reason, "jamming") {
		t.Errorf("reason %q, want jamming to take precedence over brute force", report.Reason)
	}
}

func TestHistoryPruning(t *testing.T) {
	cfg := DefaultConfig()
	a := testAnalyzer(t, cfg)

	a.Analyze(signal.NewObservation([]byte{0x40}, 315e6, -65, 20).WithTimestamp(testBase))
	a.Analyze(signal.NewObservation([]byte{0x41}, 315e6, -65, 20).WithTimestamp(testBase.Add(time.Second)))

	// An observation far in the future flushes everything older than the
	// longest window.
	a.Analyze(signal.NewObservation([]byte{0x42}, 315e6, -65, 20).WithTimestamp(testBase.Add(time.Minute)))

	m := a.Metrics()
	if m.HistoryDepth != 1 {
		t.Errorf("HistoryDepth = %d, want 1 after pruning", m.HistoryDepth)
	}
	if m.Analyzed != 3 {
		t.Errorf("Analyzed = %d, want 3 (lifetime counter survives pruning)", m.Analyzed)
	}
}

func TestMetricsRate(t *testing.T) {
	a := testAnalyzer(t, DefaultConfig())

	for i := 0; i < 5; i++ {
		a.Analyze(signal.NewObservation([]byte{0x50, byte(i)}, 315e6, -65, 20).
			WithTimestamp(testBase.Add(time.Duration(i) * 250 * time.Millisecond)))
	}

	m := a.Metrics()
	if m.PacketsPerSecond <= 0 {
		t.Errorf("PacketsPerSecond = %v, want > 0", m.PacketsPerSecond)
	}
}

func TestReset(t *testing.T) {
	a := testAnalyzer(t, DefaultConfig())
	a.Analyze(signal.NewObservation([]byte{0x60}, 315e6, -65, 20).WithTimestamp(testBase))

	a.Reset()

	m := a.Metrics()
	if m.Analyzed != 0 || m.HistoryDepth != 0 {
		t.Errorf("Metrics after Reset = %+v, want zeroed", m)
	}
}
