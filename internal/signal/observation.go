// Package signal defines the canonical observation model for the edge sensor.
// All captured RF and NFC events are normalized to this structure before
// analysis.
package signal

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Observation represents one decoded RF burst or NFC tag read.
// Observations are immutable once constructed; use Clone for owned copies.
type Observation struct {
	Payload        []byte    `json:"-"`
	Frequency      float64   `json:"frequency_hz"`
	SignalStrength float64   `json:"signal_strength_dbm"`
	SignalToNoise  float64   `json:"snr_db"`
	TagID          string    `json:"tag_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewObservation builds an Observation stamped with the current time.
// The payload is copied so callers may reuse their buffer.
func NewObservation(payload []byte, frequency, strength, snr float64) Observation {
	return Observation{
		Payload:        append([]byte(nil), payload...),
		Frequency:      frequency,
		SignalStrength: strength,
		SignalToNoise:  snr,
		Timestamp:      time.Now().UTC(),
	}
}

// WithTimestamp returns a copy of the observation with an overridden
// capture time. Used by tests and replay-window simulation.
func (o Observation) WithTimestamp(ts time.Time) Observation {
	c := o.Clone()
	c.Timestamp = ts
	return c
}

// Clone returns a deep copy with an independently owned payload.
func (o Observation) Clone() Observation {
	c := o
	c.Payload = append([]byte(nil), o.Payload...)
	return c
}

// IsNFC reports whether the observation came from the NFC reader.
func (o Observation) IsNFC() bool {
	return o.TagID != ""
}

// Signature is a stable identity key derived from payload and frequency.
// It is used for duplicate suppression and replay matching, never for
// cryptographic purposes.
type Signature [16]byte

func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

// Signature computes the identity key for the observation.
func (o Observation) Signature() Signature {
	h, _ := blake2b.New256(nil)
	h.Write(o.Payload)

	var freq [8]byte
	bits := math.Float64bits(o.Frequency)
	for i := 0; i < 8; i++ {
		freq[i] = byte(bits >> (8 * i))
	}
	h.Write(freq[:])

	var sig Signature
	copy(sig[:], h.Sum(nil))
	return sig
}

type observationJSON struct {
	Payload        string    `json:"payload"`
	Frequency      float64   `json:"frequency_hz"`
	SignalStrength float64   `json:"signal_strength_dbm"`
	SignalToNoise  float64   `json:"snr_db"`
	TagID          string    `json:"tag_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// MarshalJSON renders the payload as a hex string.
func (o Observation) MarshalJSON() ([]byte, error) {
	return json.Marshal(observationJSON{
		Payload:        hex.EncodeToString(o.Payload),
		Frequency:      o.Frequency,
		SignalStrength: o.SignalStrength,
		SignalToNoise:  o.SignalToNoise,
		TagID:          o.TagID,
		Timestamp:      o.Timestamp,
	})
}

// UnmarshalJSON accepts the hex payload encoding produced by MarshalJSON.
func (o *Observation) UnmarshalJSON(data []byte) error {
	var raw observationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	payload, err := hex.DecodeString(raw.Payload)
	if err != nil {
		return fmt.Errorf("invalid payload hex: %w", err)
	}

	o.Payload = payload
	o.Frequency = raw.Frequency
	o.SignalStrength = raw.SignalStrength
	o.SignalToNoise = raw.SignalToNoise
	o.TagID = raw.TagID
	o.Timestamp = raw.Timestamp
	return nil
}
