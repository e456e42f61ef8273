package qrcode

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// PayloadPrefix is the literal first field of every signed visit payload.
	PayloadPrefix = "LYLT"

	// Delimiter separates the payload fields. It never appears inside a
	// field: base64 does not contain it and the numeric fields cannot.
	Delimiter = ":"

	payloadFieldCount = 7
	nonceBytes        = 16

	// FreshnessWindow is the maximum age of a payload before it is stale.
	FreshnessWindow = 10 * time.Minute

	// ClockSkewTolerance is how far into the future a payload timestamp may
	// sit before it is rejected.
	ClockSkewTolerance = 2 * time.Minute
)

var (
	ErrMalformedPayload  = errors.New("malformed visit payload")
	ErrSignatureMismatch = errors.New("visit payload signature mismatch")
	ErrExpired           = errors.New("visit payload expired")
)

// ParsedVisit holds the authenticated fields of a validated payload.
type ParsedVisit struct {
	BranchID  string
	TableID   string
	Amount    float64
	Timestamp int64 // epoch milliseconds, as embedded in the payload
	Nonce     string
}

// Codec builds and verifies signed visit payloads. It is pure over its
// secret and clock; validation needs no network round trip.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) *Codec {
	return &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// NewCodecWithClock injects the clock, for tests.
func NewCodecWithClock(secret string, now func() time.Time) *Codec {
	return &Codec{
		secret: []byte(secret),
		now:    now,
	}
}

// Encode produces the full signed payload string:
//
//	LYLT:branchId:tableId:amount(2dp):timestampMs:nonce(base64):signature(base64)
func (c *Codec) Encode(branchID, tableID string, amount float64, ts time.Time) (string, error) {
	if branchID == "" || strings.Contains(branchID, Delimiter) {
		return "", fmt.Errorf("invalid branch id %q", branchID)
	}
	if strings.Contains(tableID, Delimiter) {
		return "", fmt.Errorf("invalid table id %q", tableID)
	}

	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	canonical := strings.Join([]string{
		PayloadPrefix,
		branchID,
		tableID,
		strconv.FormatFloat(amount, 'f', 2, 64),
		strconv.FormatInt(ts.UnixMilli(), 10),
		base64.StdEncoding.EncodeToString(nonce),
	}, Delimiter)

	return canonical + Delimiter + c.sign(canonical), nil
}

// Validate checks prefix, shape, signature and freshness, in that order.
// Every failure is a normal outcome for the caller, never a panic.
func (c *Codec) Validate(payload string) (ParsedVisit, error) {
	if !strings.HasPrefix(payload, PayloadPrefix+Delimiter) {
		return ParsedVisit{}, ErrMalformedPayload
	}

	fields := strings.Split(payload, Delimiter)
	if len(fields) != payloadFieldCount {
		return ParsedVisit{}, ErrMalformedPayload
	}

	canonical := strings.Join(fields[:payloadFieldCount-1], Delimiter)
	supplied := fields[payloadFieldCount-1]

	// Constant-time compare over the raw MAC bytes. Decode failures fall
	// through to the same mismatch error so nothing about the supplied
	// value leaks.
	suppliedMAC, err := base64.StdEncoding.DecodeString(supplied)
	if err != nil {
		return ParsedVisit{}, ErrSignatureMismatch
	}

	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(canonical))
	if !hmac.Equal(mac.Sum(nil), suppliedMAC) {
		return ParsedVisit{}, ErrSignatureMismatch
	}

	tsMillis, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return ParsedVisit{}, ErrMalformedPayload
	}

	age := c.now().Sub(time.UnixMilli(tsMillis))
	if age > FreshnessWindow || age < -ClockSkewTolerance {
		return ParsedVisit{}, ErrExpired
	}

	amount, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return ParsedVisit{}, ErrMalformedPayload
	}

	return ParsedVisit{
		BranchID:  fields[1],
		TableID:   fields[2],
		Amount:    amount,
		Timestamp: tsMillis,
		Nonce:     fields[5],
	}, nil
}

// PayloadHash returns a stable hex digest of the full payload, stored on the
// visit record for audit.
func PayloadHash(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return fmt.Sprintf("%x", sum)
}

func (c *Codec) sign(canonical string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
