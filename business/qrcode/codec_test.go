package qrcode

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "codec-test-secret"

func TestEncodeValidateRoundTrip(t *testing.T) {
	issued := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	codec := NewCodecWithClock(testSecret, func() time.Time { return issued })

	payload, err := codec.Encode("branch-7", "t12", 42.5, issued)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if !strings.HasPrefix(payload, "LYLT:branch-7:t12:42.50:") {
		t.Fatalf("unexpected payload shape: %s", payload)
	}

	parsed, err := codec.Validate(payload)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if parsed.BranchID != "branch-7" {
		t.Errorf("branch = %q, want branch-7", parsed.BranchID)
	}
	if parsed.TableID != "t12" {
		t.Errorf("table = %q, want t12", parsed.TableID)
	}
	if parsed.Amount != 42.5 {
		t.Errorf("amount = %v, want 42.5", parsed.Amount)
	}
	if parsed.Timestamp != issued.UnixMilli() {
		t.Errorf("timestamp = %d, want %d", parsed.Timestamp, issued.UnixMilli())
	}
	if parsed.Nonce == "" {
		t.Error("nonce is empty")
	}
}

func TestValidateTamperedPayload(t *testing.T) {
	issued := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	codec := NewCodecWithClock(testSecret, func() time.Time { return issued })

	payload, err := codec.Encode("branch-7", "t12", 42.5, issued)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Bump the amount without re-signing.
	tampered := strings.Replace(payload, ":42.50:", ":142.50:", 1)
	if _, err := codec.Validate(tampered); !errors.Is(err, ErrSignatureMismatch) {
		t.Errorf("tampered amount: err = %v, want ErrSignatureMismatch", err)
	}

	// Flip one character inside the signature field.
	last := payload[len(payload)-5]
	flip := byte('A')
	if last == 'A' {
		flip = 'B'
	}
	broken := payload[:len(payload)-5] + string(flip) + payload[len(payload)-4:]
	if _, err := codec.Validate(broken); !errors.Is(err, ErrSignatureMismatch) {
		t.Errorf("flipped signature: err = %v, want ErrSignatureMismatch", err)
	}
}

func TestValidateWrongSecret(t *testing.T) {
	issued := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	signer := NewCodecWithClock(testSecret, func() time.Time { return issued })
	verifier := NewCodecWithClock("another-secret", func() time.Time { return issued })

	payload, err := signer.Encode("branch-7", "t12", 42.5, issued)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := verifier.Validate(payload); !errors.Is(err, ErrSignatureMismatch) {
		t.Errorf("err = %v, want ErrSignatureMismatch", err)
	}
}

func TestValidateFreshnessBoundaries(t *testing.T) {
	issued := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		checkAt time.Time
		wantErr error
	}{
		{"just inside window", issued.Add(FreshnessWindow - time.Second), nil},
		{"just past window", issued.Add(FreshnessWindow + time.Second), ErrExpired},
		{"small clock skew tolerated", issued.Add(-time.Minute), nil},
		{"timestamp too far in the future", issued.Add(-ClockSkewTolerance - time.Second), ErrExpired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			codec := NewCodecWithClock(testSecret, func() time.Time { return tc.checkAt })

			payload, err := codec.Encode("branch-7", "t12", 10, issued)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			_, err = codec.Validate(payload)
			if tc.wantErr == nil && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateMalformed(t *testing.T) {
	codec := NewCodec(testSecret)

	cases := []string{
		"",
		"not-a-payload",
		"LYLT:only:four:fields",
		"OTHER:b:t:1.00:1700000000000:bm9uY2U=:c2ln",
	}

	for _, payload := range cases {
		if _, err := codec.Validate(payload); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("Validate(%q): err = %v, want ErrMalformedPayload", payload, err)
		}
	}
}

func TestEncodeRejectsDelimiterInFields(t *testing.T) {
	codec := NewCodec(testSecret)

	if _, err := codec.Encode("branch:7", "t12", 10, time.Now()); err == nil {
		t.Error("branch id with delimiter accepted")
	}
	if _, err := codec.Encode("branch-7", "t:12", 10, time.Now()); err == nil {
		t.Error("table id with delimiter accepted")
	}
	if _, err := codec.Encode("", "t12", 10, time.Now()); err == nil {
		t.Error("empty branch id accepted")
	}
}

func TestEncodeNonceUnique(t *testing.T) {
	codec := NewCodec(testSecret)
	ts := time.Now()

	a, err := codec.Encode("b", "t", 5, ts)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := codec.Encode("b", "t", 5, ts)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if a == b {
		t.Error("two payloads for the same visit are identical")
	}
}
