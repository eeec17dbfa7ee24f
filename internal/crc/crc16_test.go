package crc

import "testing"

// ── Known vectors ─────────────────────────────────────────────────────────────

func TestChecksum_KnownVectors(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		// Standard CRC-16/CCITT-FALSE check value
		{"123456789", "29B1"},
		// No input: register is left at its initial value
		{"", "FFFF"},
	}
	for _, c := range cases {
		if got := Checksum(c.in); got != c.want {
			t.Errorf("Checksum(%q): got %q want %q", c.in, got, c.want)
		}
	}
}

// ── Determinism ───────────────────────────────────────────────────────────────

func TestChecksum_Deterministic(t *testing.T) {
	sample := "00020101021229190015merchant@devbank5204599958025KH"
	first := Checksum(sample)
	for i := 0; i < 100; i++ {
		if got := Checksum(sample); got != first {
			t.Fatalf("run %d: got %q want %q", i, got, first)
		}
	}
}

func TestChecksum_Format(t *testing.T) {
	for _, in := range []string{"a", "ab", "payload", "0002010102"} {
		got := Checksum(in)
		if len(got) != 4 {
			t.Errorf("Checksum(%q) = %q: want 4 hex digits", in, got)
		}
		for _, c := range got {
			if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F') {
				t.Errorf("Checksum(%q) = %q: non-uppercase-hex digit %q", in, got, c)
			}
		}
	}
}
