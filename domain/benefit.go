package domain

import "time"

type BenefitKind string

const (
	BenefitPercentDiscount BenefitKind = "percent_discount"
	BenefitFixedDiscount   BenefitKind = "fixed_discount"
	BenefitFreeItem        BenefitKind = "free_item"
	BenefitTwoForOne       BenefitKind = "two_for_one"
)

type BenefitStatus string

const (
	BenefitStatusActive  BenefitStatus = "active"
	BenefitStatusExpired BenefitStatus = "expired"
	BenefitStatusUsed    BenefitStatus = "used"
)

// Benefit is one reward grant owned by a customer. It is materialized by the
// rule engine and consumed on redemption or price application.
type Benefit struct {
	ID         string      `json:"id" gorm:"primaryKey"`
	Kind       BenefitKind `json:"kind" gorm:"column:kind;not null"`
	Value      float64     `json:"value" gorm:"column:value"`
	CustomerID uint        `json:"customer_id" gorm:"column:customer_id;index;not null"`
	ProductID  string      `json:"product_id,omitempty" gorm:"column:product_id"`
	RuleName   string      `json:"rule_name" gorm:"column:rule_name"`
	ExpiresAt  time.Time   `json:"expires_at" gorm:"column:expires_at"`
	Active     bool        `json:"active" gorm:"column:active"`
	Used       bool        `json:"used" gorm:"column:used"`
	CreatedAt  time.Time   `json:"created_at"`

	// Status is a display label derived at read time, never persisted.
	Status BenefitStatus `json:"status" gorm:"-"`
}

func (Benefit) TableName() string {
	return "benefits"
}

// Expired reports whether the benefit's validity window has passed.
func (b Benefit) Expired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

// Redeemable reports whether the benefit can still be applied or redeemed.
func (b Benefit) Redeemable(now time.Time) bool {
	return b.Active && !b.Used && !b.Expired(now)
}
