package domain

import "time"

type SessionState string

const (
	SessionActive    SessionState = "active"
	SessionExpired   SessionState = "expired"
	SessionConfirmed SessionState = "confirmed"
	SessionCancelled SessionState = "cancelled"
)

// RedemptionSession is the one-time code tying a customer, a benefit and a
// staff confirmation together. At most one active session exists per
// customer.
type RedemptionSession struct {
	Code       string       `json:"code"`
	CustomerID uint         `json:"customer_id"`
	BenefitID  string       `json:"benefit_id"`
	BranchID   string       `json:"branch_id"`
	IssuedAt   time.Time    `json:"issued_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
	State      SessionState `json:"state"`
}

// EffectiveState applies lazy expiry: an active session past its expiry
// reads as expired without any stored transition.
func (s RedemptionSession) EffectiveState(now time.Time) SessionState {
	if s.State == SessionActive && now.After(s.ExpiresAt) {
		return SessionExpired
	}
	return s.State
}

// Remaining returns the countdown for display, clamped at zero.
func (s RedemptionSession) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// RedemptionLog is the durable record of a staff-confirmed redemption. The
// remote ledger is the source of truth for confirmations; this mirrors it
// locally for audit.
type RedemptionLog struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Code        string    `json:"code" gorm:"column:code"`
	CustomerID  uint      `json:"customer_id" gorm:"column:customer_id;index"`
	BenefitID   string    `json:"benefit_id" gorm:"column:benefit_id"`
	BranchID    string    `json:"branch_id" gorm:"column:branch_id"`
	StaffID     uint      `json:"staff_id" gorm:"column:staff_id"`
	ConfirmedAt time.Time `json:"confirmed_at" gorm:"column:confirmed_at"`
}

func (RedemptionLog) TableName() string {
	return "redemption_logs"
}
