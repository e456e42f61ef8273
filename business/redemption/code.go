package redemption

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const codeLength = 6

// generateCode returns a fixed-length numeric one-time code.
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	return fmt.Sprintf("%0*d", codeLength, n), nil
}

// FormatCode groups the code at its midpoint for readability: "483 291".
func FormatCode(code string) string {
	if len(code) < 2 {
		return code
	}
	mid := len(code) / 2
	return code[:mid] + " " + code[mid:]
}

// FormatCountdown renders a remaining duration as MM:SS. The countdown is a
// derived view of expiresAt − now, never an independent clock.
func FormatCountdown(remaining time.Duration) string {
	if remaining < 0 {
		remaining = 0
	}
	total := int(remaining.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
