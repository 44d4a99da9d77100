package signal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ThreatLevel classifies the outcome of analyzing one observation.
// Levels are ordered by severity.
type ThreatLevel int

const (
	Benign ThreatLevel = iota
	Suspicious
	Malicious
	// Critical is reserved for cross-modal correlation escalation and is
	// never produced by single-signal analysis.
	Critical
)

func (t ThreatLevel) String() string {
	switch t {
	case Benign:
		return "benign"
	case Suspicious:
		return "suspicious"
	case Malicious:
		return "malicious"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the level as its string name.
func (t ThreatLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON parses the string name back into a level.
func (t *ThreatLevel) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "benign":
		*t = Benign
	case "suspicious":
		*t = Suspicious
	case "malicious":
		*t = Malicious
	case "critical":
		*t = Critical
	default:
		return fmt.Errorf("unknown threat level %q", name)
	}
	return nil
}

// SecurityReport is produced once per analyzed observation.
// The embedded observation is an owned copy; the report is immutable.
type SecurityReport struct {
	ID          uuid.UUID   `json:"id"`
	Observation Observation `json:"observation"`
	ThreatLevel ThreatLevel `json:"threat_level"`
	Reason      string      `json:"reason"`
	Timestamp   time.Time   `json:"timestamp"`
}

// NewSecurityReport builds a report owning a copy of the observation.
func NewSecurityReport(obs Observation, level ThreatLevel, reason string) SecurityReport {
	return SecurityReport{
		ID:          uuid.New(),
		Observation: obs.Clone(),
		ThreatLevel: level,
		Reason:      reason,
		Timestamp:   time.Now().UTC(),
	}
}
