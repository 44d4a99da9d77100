package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/jondmarien/automotive-security-capstone-sub001/internal/signal"
)

func testFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func TestNew(t *testing.T) {
	t.Run("no bands rejected", func(t *testing.T) {
		_, err := New(Config{MinStrength: -90, DuplicateWindow: time.Second})
		if !errors.Is(err, ErrNoBands) {
			t.Errorf("New() error = %v, want ErrNoBands", err)
		}
	})

	t.Run("inverted band rejected", func(t *testing.T) {
		_, err := New(Config{
			Bands:           []Band{{Low: 450e6, High: 400e6}},
			DuplicateWindow: time.Second,
		})
		if !errors.Is(err, ErrInvalidBand) {
			t.Errorf("New() error = %v, want ErrInvalidBand", err)
		}
	})

	t.Run("non-positive duplicate window rejected", func(t *testing.T) {
		_, err := New(Config{Bands: []Band{{Low: 300e6, High: 350e6}}})
		if err == nil {
			t.Error("New() accepted zero duplicate window")
		}
	})
}

func TestBandCheck(t *testing.T) {
	f := testFilter(t)

	t.Run("frequency inside a band accepted", func(t *testing.T) {
		obs := signal.NewObservation([]byte{0x01}, 315e6, -65, 20)
		if !f.ShouldAccept(obs) {
			t.Error("ShouldAccept() = false for in-band frequency")
		}
	})

	t.Run("frequency exactly at band boundary accepted", func(t *testing.T) {
		low := signal.NewObservation([]byte{0x02}, 300e6, -65, 20)
		if !f.ShouldAccept(low) {
			t.Error("ShouldAccept() = false at lower band edge")
		}
		high := signal.NewObservation([]byte{0x03}, 350e6, -65, 20)
		if !f.ShouldAccept(high) {
			t.Error("ShouldAccept() = false at upper band edge")
		}
	})

	t.Run("frequency between two bands rejected", func(t *testing.T) {
		obs := signal.NewObservation([]byte{0x04}, 380e6, -65, 20)
		if f.ShouldAccept(obs) {
			t.Error("ShouldAccept() = true for frequency between bands")
		}
	})
}

func TestStrengthCheck(t *testing.T) {
	f := testFilter(t)

	t.Run("below minimum rejected", func(t *testing.T) {
		obs := signal.NewObservation([]byte{0x05}, 315e6, -95, 20)
		if f.ShouldAccept(obs) {
			t.Error("ShouldAccept() = true below minimum strength")
		}
	})

	t.Run("exactly at minimum accepted", func(t *testing.T) {
		obs := signal.NewObservation([]byte{0x06}, 315e6, -90, 20)
		if !f.ShouldAccept(obs) {
			t.Error("ShouldAccept() = false at minimum strength")
		}
	})
}

func TestDuplicateSuppression(t *testing.T) {
	f := testFilter(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	obs := signal.NewObservation([]byte{0xaa, 0xbb}, 433e6, -60, 20).WithTimestamp(base)

	if !f.ShouldAccept(obs) {
		t.Fatal("first observation rejected")
	}

	t.Run("same signature within window rejected", func(t *testing.T) {
		dup := obs.WithTimestamp(base.Add(2 * time.Second))
		if f.ShouldAccept(dup) {
			t.Error("duplicate within window accepted")
		}
	})

	t.Run("same signature after window accepted", func(t *testing.T) {
		later := obs.WithTimestamp(base.Add(10 * time.Second))
		if !f.ShouldAccept(later) {
			t.Error("re-appearance after window rejected")
		}
	})

	t.Run("different strength does not bypass dedup", func(t *testing.T) {
		weaker := obs.WithTimestamp(base.Add(11 * time.Second))
		weaker.SignalStrength = -75
		if f.ShouldAccept(weaker) {
			t.Error("same signature within window accepted despite strength change")
		}
	})
}

func TestMetrics(t *testing.T) {
	f := testFilter(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	f.ShouldAccept(signal.NewObservation([]byte{0x01}, 315e6, -60, 20).WithTimestamp(base))
	f.ShouldAccept(signal.NewObservation([]byte{0x02}, 315e6, -60, 20).WithTimestamp(base.Add(time.Second)))

	m := f.Metrics()
	if m.TrackedSignatures != 2 {
		t.Errorf("TrackedSignatures = %d, want 2", m.TrackedSignatures)
	}
	if len(m.Bands) != 3 {
		t.Errorf("Bands = %d, want 3", len(m.Bands))
	}
	if m.DuplicateWindow != 5*time.Second {
		t.Errorf("DuplicateWindow = %v, want 5s", m.DuplicateWindow)
	}

	t.Run("expired signatures pruned lazily", func(t *testing.T) {
		f.ShouldAccept(signal.NewObservation([]byte{0x03}, 315e6, -60, 20).WithTimestamp(base.Add(time.Minute)))
		m := f.Metrics()
		if m.TrackedSignatures != 1 {
			t.Errorf("TrackedSignatures = %d after pruning, want 1", m.TrackedSignatures)
		}
	})
}

func TestMetricsPrunesWithoutAdmission(t *testing.T) {
	f := testFilter(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Out-of-order arrival leaves an entry that is already expired relative
	// to the newest seen timestamp; admission never prunes it because no
	// later observation follows.
	f.ShouldAccept(signal.NewObservation([]byte{0x01}, 315e6, -60, 20).WithTimestamp(base.Add(time.Minute)))
	f.ShouldAccept(signal.NewObservation([]byte{0x02}, 315e6, -60, 20).WithTimestamp(base))

	if got := f.Metrics().TrackedSignatures; got != 1 {
		t.Errorf("TrackedSignatures = %d, want 1 (expired entry counted)", got)
	}
}
