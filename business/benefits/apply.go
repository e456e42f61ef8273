package benefits

import (
	"time"

	"loyaltyStamp/domain"
)

// ApplyDiscounts walks the benefits in the order given and accumulates the
// monetary discount against amount. Inactive, used or expired benefits are
// skipped. Kinds other than the two discount kinds contribute nothing here;
// they are redeemed as physical items.
//
// Applied benefits come back marked used and inactive; the caller persists
// them. With stacking disabled the iteration stops after the first applied
// discount.
func ApplyDiscounts(amount float64, benefits []domain.Benefit, allowStacking bool, now time.Time) (float64, []domain.Benefit) {
	total := 0.0
	applied := make([]domain.Benefit, 0, len(benefits))

	for _, b := range benefits {
		if !b.Redeemable(now) {
			continue
		}

		var discount float64
		switch b.Kind {
		case domain.BenefitPercentDiscount:
			discount = amount * b.Value / 100
		case domain.BenefitFixedDiscount:
			discount = b.Value
			if discount > amount {
				discount = amount
			}
		default:
			continue
		}

		total += discount
		b.Used = true
		b.Active = false
		applied = append(applied, b)

		if !allowStacking {
			break
		}
	}

	return total, applied
}
