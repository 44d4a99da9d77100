package evidence

import (
	"errors"
	"testing"

	"github.com/jondmarien/automotive-security-capstone-sub001/internal/signal"
)

func obsWithPayload(b byte) signal.Observation {
	return signal.NewObservation([]byte{b}, 315e6, -65, 20)
}

func TestNew(t *testing.T) {
	t.Run("valid capacities", func(t *testing.T) {
		s, err := New(10, 5)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		m := s.Metrics()
		if m.Observations.Capacity != 10 || m.Alerts.Capacity != 5 {
			t.Errorf("capacities = %d/%d, want 10/5", m.Observations.Capacity, m.Alerts.Capacity)
		}
	})

	t.Run("zero observation capacity rejected", func(t *testing.T) {
		if _, err := New(0, 5); !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("New(0, 5) error = %v, want ErrInvalidCapacity", err)
		}
	})

	t.Run("negative alert capacity rejected", func(t *testing.T) {
		if _, err := New(10, -1); !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("New(10, -1) error = %v, want ErrInvalidCapacity", err)
		}
	})
}

func TestEviction(t *testing.T) {
	s, err := New(3, 3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := byte(0); i < 5; i++ {
		s.SaveObservation(obsWithPayload(i))
	}

	got := s.RecentObservations(0)
	if len(got) != 3 {
		t.Fatalf("retained = %d, want 3", len(got))
	}

	// Most recent first: payloads 4, 3, 2; oldest (0, 1) evicted.
	for i, want := range []byte{4, 3, 2} {
		if got[i].Payload[0] != want {
			t.Errorf("RecentObservations()[%d] payload = %d, want %d", i, got[i].Payload[0], want)
		}
	}

	m := s.Metrics()
	if m.Observations.Count != 3 {
		t.Errorf("Count = %d, want 3", m.Observations.Count)
	}
	if m.Observations.Total != 5 {
		t.Errorf("Total = %d, want 5 (eviction never decrements the lifetime total)", m.Observations.Total)
	}
}

func TestRetrievalLimits(t *testing.T) {
	s, _ := New(10, 10)
	for i := byte(0); i < 4; i++ {
		s.SaveObservation(obsWithPayload(i))
	}

	t.Run("no limit returns full retained set", func(t *testing.T) {
		if got := s.RecentObservations(0); len(got) != 4 {
			t.Errorf("len = %d, want 4", len(got))
		}
	})

	t.Run("limit caps the result", func(t *testing.T) {
		got := s.RecentObservations(2)
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].Payload[0] != 3 || got[1].Payload[0] != 2 {
			t.Errorf("payloads = %d, %d, want 3, 2", got[0].Payload[0], got[1].Payload[0])
		}
	})

	t.Run("limit beyond retained count is capped", func(t *testing.T) {
		if got := s.RecentObservations(100); len(got) != 4 {
			t.Errorf("len = %d, want 4", len(got))
		}
	})
}

func TestAlertSequenceIndependent(t *testing.T) {
	s, _ := New(2, 5)

	s.SaveObservation(obsWithPayload(1))
	s.SaveAlert(signal.NewSecurityReport(obsWithPayload(2), signal.Malicious, "jamming"))
	s.SaveAlert(signal.NewSecurityReport(obsWithPayload(3), signal.Malicious, "replay"))

	m := s.Metrics()
	if m.Observations.Count != 1 {
		t.Errorf("observation count = %d, want 1", m.Observations.Count)
	}
	if m.Alerts.Count != 2 {
		t.Errorf("alert count = %d, want 2", m.Alerts.Count)
	}

	alerts := s.RecentAlerts(0)
	if alerts[0].Reason != "replay" {
		t.Errorf("most recent alert reason = %q, want replay", alerts[0].Reason)
	}
}

func TestSavedObservationIsOwnedCopy(t *testing.T) {
	s, _ := New(5, 5)
	obs := obsWithPayload(7)
	s.SaveObservation(obs)

	obs.Payload[0] = 0xff
	got := s.RecentObservations(1)
	if got[0].Payload[0] != 7 {
		t.Error("store shares payload storage with the caller")
	}
}

func TestClearAll(t *testing.T) {
	s, _ := New(5, 5)
	for i := byte(0); i < 3; i++ {
		s.SaveObservation(obsWithPayload(i))
		s.SaveAlert(signal.NewSecurityReport(obsWithPayload(i), signal.Malicious, "jamming"))
	}

	s.ClearAll()

	m := s.Metrics()
	if m.Observations.Count != 0 || m.Observations.Total != 0 {
		t.Errorf("observations after ClearAll = %+v, want fully zeroed", m.Observations)
	}
	if m.Alerts.Count != 0 || m.Alerts.Total != 0 {
		t.Errorf("alerts after ClearAll = %+v, want fully zeroed", m.Alerts)
	}
	if got := s.RecentObservations(0); len(got) != 0 {
		t.Errorf("RecentObservations() = %d entries after ClearAll", len(got))
	}

	// Capacity survives a clear.
	if m.Observations.Capacity != 5 {
		t.Errorf("Capacity = %d after ClearAll, want 5", m.Observations.Capacity)
	}
}

func TestWraparound(t *testing.T) {
	s, _ := New(3, 3)

	// Push enough to wrap the ring several times.
	for i := byte(0); i < 10; i++ {
		s.SaveObservation(obsWithPayload(i))
	}

	got := s.RecentObservations(0)
	for i, want := range []byte{9, 8, 7} {
		if got[i].Payload[0] != want {
			t.Errorf("after wraparound [%d] = %d, want %d", i, got[i].Payload[0], want)
		}
	}
}
