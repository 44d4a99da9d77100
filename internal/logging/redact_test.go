package logging

import "testing"

func TestPayloadPreview(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
		want    string
	}{
		{"empty", nil, ""},
		{"short payload shown fully", []byte{0xab, 0xcd}, "abcd"},
		{"exactly preview length", []byte{0x01, 0x02, 0x03, 0x04}, "01020304"},
		{"long payload truncated", []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, "01020304.."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PayloadPreview(tc.payload); got != tc.want {
				t.Errorf("PayloadPreview() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMaskSensitiveValue(t *testing.T) {
	cases := []struct {
		name  string
		field string
		value string
		want  string
	}{
		{"plain field passes", "frequency", "315000000", "315000000"},
		{"payload masked", "payload", "deadbeef", MaskedValue},
		{"case insensitive", "PSK", "hunter2", MaskedValue},
		{"substring match", "kafka_token", "abc123", MaskedValue},
		{"empty value untouched", "psk", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MaskSensitiveValue(tc.field, tc.value); got != tc.want {
				t.Errorf("MaskSensitiveValue(%q, %q) = %q, want %q", tc.field, tc.value, got, tc.want)
			}
		})
	}
}
