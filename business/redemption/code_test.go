package redemption

import (
	"testing"
	"time"
)

func TestGenerateCodeShape(t *testing.T) {
	seen := make(map[string]struct{})

	for i := 0; i < 200; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), codeLength)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit %q", code, r)
			}
		}
		seen[code] = struct{}{}
	}

	// 200 draws from a million values colliding down to a handful would
	// mean the generator is broken.
	if len(seen) < 190 {
		t.Errorf("only %d distinct codes in 200 draws", len(seen))
	}
}

func TestFormatCode(t *testing.T) {
	if got := FormatCode("483291"); got != "483 291" {
		t.Errorf("FormatCode = %q, want %q", got, "483 291")
	}
	if got := FormatCode("7"); got != "7" {
		t.Errorf("FormatCode single digit = %q, want unchanged", got)
	}
}

func TestFormatCountdown(t *testing.T) {
	cases := []struct {
		remaining time.Duration
		want      string
	}{
		{59 * time.Second, "00:59"},
		{60 * time.Second, "01:00"},
		{95 * time.Second, "01:35"},
		{0, "00:00"},
		{-5 * time.Second, "00:00"},
	}

	for _, tc := range cases {
		if got := FormatCountdown(tc.remaining); got != tc.want {
			t.Errorf("FormatCountdown(%v) = %q, want %q", tc.remaining, got, tc.want)
		}
	}
}
