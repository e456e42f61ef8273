package benefits

import (
	"context"
	"fmt"
	"time"

	"loyaltyStamp/domain"
	"loyaltyStamp/pkg/events"
	"loyaltyStamp/pkg/logger"
	"loyaltyStamp/pkg/metrics"

	"github.com/google/uuid"
)

// BenefitRepository contract interface
type BenefitRepository interface {
	Create(ctx context.Context, benefit *domain.Benefit) error
	FindByID(ctx context.Context, id string) (domain.Benefit, error)
	FindByCustomer(ctx context.Context, customerID uint) ([]domain.Benefit, error)
	Update(ctx context.Context, benefit *domain.Benefit) error
}

// StampSource contract interface
type StampSource interface {
	SentVisits(ctx context.Context, customerID uint) ([]domain.VisitRecord, error)
}

// CustomerDirectory contract interface
type CustomerDirectory interface {
	FindByID(ctx context.Context, id uint) (domain.User, error)
}

// NotificationRepository contract interface
type NotificationRepository interface {
	SendEmail(toName, toEmail, subject, message string) (err error)
}

const (
	SubjectBenefitGranted   = "You earned a new reward!"
	EmailBodyBenefitGranted = `Hi %v, your visits just earned you a new reward. Open the app to see it, valid until %v.`
)

// Service is the stamp & benefit rule engine. It derives benefits from the
// accepted visit set each time it is asked; only the sent records count as
// stamps.
type Service struct {
	repo      BenefitRepository
	stamps    StampSource
	customers CustomerDirectory
	notifRepo NotificationRepository
	bus       *events.Bus
	rules     []Rule
}

func NewService(
	repo BenefitRepository,
	stamps StampSource,
	customers CustomerDirectory,
	notifRepo NotificationRepository,
	bus *events.Bus,
	rules []Rule,
) *Service {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Service{
		repo:      repo,
		stamps:    stamps,
		customers: customers,
		notifRepo: notifRepo,
		bus:       bus,
		rules:     rules,
	}
}

// Evaluate runs every rule against the customer's current accepted visits
// and persists whatever fires. Rules are stateless, so calling this again
// without consuming visits can regrant the same milestone.
func (s *Service) Evaluate(ctx context.Context, customerID uint, now time.Time) ([]domain.Benefit, error) {
	visits, err := s.stamps.SentVisits(ctx, customerID)
	if err != nil {
		logger.Error("Failed to load accepted visits", "error", err, "customer_id", customerID)
		return nil, fmt.Errorf("failed to load accepted visits: %w", err)
	}

	granted := make([]domain.Benefit, 0)

	for _, rule := range s.rules {
		draft := rule.Evaluate(visits, now)
		if draft == nil {
			continue
		}

		benefit := domain.Benefit{
			ID:         uuid.NewString(),
			Kind:       draft.Kind,
			Value:      draft.Value,
			CustomerID: customerID,
			ProductID:  draft.ProductID,
			RuleName:   draft.RuleName,
			ExpiresAt:  now.AddDate(0, 0, draft.ValidityDays),
			Active:     true,
		}

		if err := s.repo.Create(ctx, &benefit); err != nil {
			logger.Error("Failed to persist benefit", "error", err, "rule", draft.RuleName, "customer_id", customerID)
			return granted, fmt.Errorf("failed to persist benefit: %w", err)
		}

		metrics.BenefitsGrantedTotal.WithLabelValues(draft.RuleName).Inc()
		granted = append(granted, benefit)

		logger.Info("Benefit granted",
			"customer_id", customerID,
			"rule", draft.RuleName,
			"kind", string(draft.Kind),
			"benefit_id", benefit.ID,
		)

		if s.bus != nil {
			s.bus.Publish(domain.StateEvent{
				Topic:      domain.TopicBenefitGranted,
				CustomerID: customerID,
				OccurredAt: now,
				Payload: map[string]any{
					"benefit_id": benefit.ID,
					"rule":       draft.RuleName,
					"kind":       string(draft.Kind),
				},
			})
		}
	}

	if len(granted) > 0 {
		s.notifyGranted(ctx, customerID, granted)
	}

	return granted, nil
}

func (s *Service) notifyGranted(ctx context.Context, customerID uint, granted []domain.Benefit) {
	if s.notifRepo == nil || s.customers == nil {
		return
	}

	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		logger.Warn("Skipping benefit notification, customer lookup failed", "error", err, "customer_id", customerID)
		return
	}

	body := fmt.Sprintf(EmailBodyBenefitGranted, customer.FullName, granted[0].ExpiresAt.Format("02 Jan 2006"))
	if err := s.notifRepo.SendEmail(customer.FullName, customer.Email, SubjectBenefitGranted, body); err != nil {
		logger.Warn("Failed to send benefit notification", "error", err, "customer_id", customerID)
	}
}

// AvailableBenefits lists a customer's unused benefits for display. Expired
// entries are labeled, not hidden, so the caller can still show them.
func (s *Service) AvailableBenefits(ctx context.Context, customerID uint, now time.Time) ([]domain.Benefit, error) {
	all, err := s.repo.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load benefits: %w", err)
	}

	// Pass 1: keep only benefits that have not been consumed.
	kept := make([]domain.Benefit, 0, len(all))
	for _, b := range all {
		if b.Used || !b.Active {
			continue
		}
		kept = append(kept, b)
	}

	// Pass 2: label expiry without dropping anything.
	for i := range kept {
		if kept[i].Expired(now) {
			kept[i].Status = domain.BenefitStatusExpired
		} else {
			kept[i].Status = domain.BenefitStatusActive
		}
	}

	return kept, nil
}

// ApplyBenefits applies discount benefits to a bill amount and persists the
// consumed ones.
func (s *Service) ApplyBenefits(ctx context.Context, amount float64, benefits []domain.Benefit, allowStacking bool) (float64, error) {
	total, applied := ApplyDiscounts(amount, benefits, allowStacking, time.Now())

	for i := range applied {
		if err := s.repo.Update(ctx, &applied[i]); err != nil {
			logger.Error("Failed to persist applied benefit", "error", err, "benefit_id", applied[i].ID)
			return total, fmt.Errorf("failed to persist applied benefit: %w", err)
		}
	}

	return total, nil
}

// Redeemable loads a benefit and checks it can still be redeemed.
func (s *Service) Redeemable(ctx context.Context, benefitID string, customerID uint, now time.Time) (domain.Benefit, error) {
	benefit, err := s.repo.FindByID(ctx, benefitID)
	if err != nil {
		return domain.Benefit{}, fmt.Errorf("benefit not found: %w", err)
	}

	if benefit.CustomerID != customerID {
		return domain.Benefit{}, fmt.Errorf("benefit %s does not belong to customer %d", benefitID, customerID)
	}

	if !benefit.Redeemable(now) {
		return domain.Benefit{}, fmt.Errorf("benefit %s is no longer redeemable", benefitID)
	}

	return benefit, nil
}

// Consume marks a benefit used and inactive after a confirmed redemption.
func (s *Service) Consume(ctx context.Context, benefitID string) (domain.Benefit, error) {
	benefit, err := s.repo.FindByID(ctx, benefitID)
	if err != nil {
		return domain.Benefit{}, fmt.Errorf("benefit not found: %w", err)
	}

	benefit.Used = true
	benefit.Active = false

	if err := s.repo.Update(ctx, &benefit); err != nil {
		return domain.Benefit{}, fmt.Errorf("failed to consume benefit: %w", err)
	}

	return benefit, nil
}
