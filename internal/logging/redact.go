// Package logging provides logging utilities for the edge sensor.
// Key-fob payload bytes are credential material and are never written to
// logs in full.
package logging

import (
	"encoding/hex"
	"strings"
)

// MaskedValue is the string used to replace fully redacted values.
const MaskedValue = "[REDACTED]"

// previewBytes is how much of a payload is shown in log lines.
const previewBytes = 4

// SensitiveFields contains field names whose values are masked in
// structured output handed to external collaborators.
var SensitiveFields = map[string]bool{
	"payload":     true,
	"key":         true,
	"master_key":  true,
	"psk":         true,
	"secret":      true,
	"token":       true,
	"webhook_url": true,
}

// PayloadPreview renders at most the first few payload bytes as hex,
// marking truncation. Empty payloads render as an empty string.
func PayloadPreview(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	if len(payload) <= previewBytes {
		return hex.EncodeToString(payload)
	}
	return hex.EncodeToString(payload[:previewBytes]) + ".."
}

// MaskSensitiveValue masks a value if the field name is sensitive.
func MaskSensitiveValue(fieldName, value string) string {
	if value == "" {
		return value
	}

	lower := strings.ToLower(fieldName)
	if SensitiveFields[lower] {
		return MaskedValue
	}
	for sensitive := range SensitiveFields {
		if strings.Contains(lower, sensitive) {
			return MaskedValue
		}
	}
	return value
}
