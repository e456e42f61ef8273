package domain

import "time"

// Event topics published at the core boundary. External observers subscribe;
// the core never knows who is listening.
const (
	TopicVisitAdmitted       = "visit.admitted"
	TopicVisitSynced         = "visit.synced"
	TopicVisitSyncFailed     = "visit.sync_failed"
	TopicBenefitGranted      = "benefit.granted"
	TopicRedemptionIssued    = "redemption.issued"
	TopicRedemptionConfirmed = "redemption.confirmed"
	TopicRedemptionCancelled = "redemption.cancelled"
)

// StateEvent is one state-change notification crossing the core boundary.
type StateEvent struct {
	Topic      string         `json:"topic"`
	CustomerID uint           `json:"customer_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}
