package domain

import (
	"errors"
	"time"
)

type SyncState string

const (
	SyncPending SyncState = "pending"
	SyncSent    SyncState = "sent"
	SyncError   SyncState = "error"
)

var (
	// ErrAlreadySent is returned by every transition attempted on a record
	// that already reached the sent state.
	ErrAlreadySent = errors.New("visit record already sent")

	// ErrNotErrored is returned by ResetSync on a record that is not in the
	// error state.
	ErrNotErrored = errors.New("visit record is not in error state")
)

// VisitRecord is one scan event held in the local ledger until the remote
// ledger acknowledges it.
type VisitRecord struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	CustomerID    uint       `json:"customer_id" gorm:"column:customer_id;index;not null"`
	BranchID      string     `json:"branch_id" gorm:"column:branch_id;not null"`
	TableID       string     `json:"table_id" gorm:"column:table_id"`
	Amount        float64    `json:"amount" gorm:"column:amount"`
	PayloadHash   string     `json:"payload_hash" gorm:"column:payload_hash"`
	QRTimestamp   int64      `json:"qr_timestamp" gorm:"column:qr_timestamp"`
	Nonce         string     `json:"nonce" gorm:"column:nonce"`
	Signature     string     `json:"signature" gorm:"column:signature"`
	ScannedAt     time.Time  `json:"scanned_at" gorm:"column:scanned_at"`
	SyncState     SyncState  `json:"sync_state" gorm:"column:sync_state;index"`
	SyncedAt      *time.Time `json:"synced_at,omitempty" gorm:"column:synced_at"`
	SyncAttempts  int        `json:"sync_attempts" gorm:"column:sync_attempts"`
	LastError     string     `json:"last_error,omitempty" gorm:"column:last_error"`
	ProgressToken string     `json:"progress_token,omitempty" gorm:"column:progress_token"`
}

func (VisitRecord) TableName() string {
	return "visit_records"
}

// MarkSent moves a pending or errored record into the sent state. Sent is
// terminal: the returned record never transitions again.
func MarkSent(r VisitRecord, progressToken string, now time.Time) (VisitRecord, error) {
	if r.SyncState == SyncSent {
		return r, ErrAlreadySent
	}

	r.SyncState = SyncSent
	r.SyncedAt = &now
	r.LastError = ""
	r.ProgressToken = progressToken
	return r, nil
}

// MarkError records a failed submission attempt. SyncAttempts increments
// here and nowhere else.
func MarkError(r VisitRecord, reason string, now time.Time) (VisitRecord, error) {
	if r.SyncState == SyncSent {
		return r, ErrAlreadySent
	}

	r.SyncState = SyncError
	r.SyncAttempts++
	r.LastError = reason
	return r, nil
}

// ResetSync puts an errored record back into pending for another sweep.
// SyncAttempts is kept so a policy layer can still stop retrying after N.
func ResetSync(r VisitRecord) (VisitRecord, error) {
	if r.SyncState == SyncSent {
		return r, ErrAlreadySent
	}
	if r.SyncState != SyncError {
		return r, ErrNotErrored
	}

	r.SyncState = SyncPending
	r.LastError = ""
	return r, nil
}
