package redemption

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"loyaltyStamp/business/benefits"
	"loyaltyStamp/domain"
	"loyaltyStamp/pkg/events"
	"loyaltyStamp/pkg/logger"
	"loyaltyStamp/pkg/metrics"

	"github.com/google/uuid"
)

var (
	ErrNoActiveSession        = errors.New("no active redemption session")
	ErrSessionExpired         = errors.New("redemption session expired")
	ErrSessionAlreadyTerminal = errors.New("redemption session already terminal")
	ErrCustomerMismatch       = errors.New("redemption session belongs to another customer")
)

// SessionStore contract interface. Terminal sessions stay readable for a
// short retention so a replayed code is rejected as terminal rather than
// unknown.
type SessionStore interface {
	GetByCustomer(ctx context.Context, customerID uint) (*domain.RedemptionSession, error)
	GetByCode(ctx context.Context, code string) (*domain.RedemptionSession, error)
	Save(ctx context.Context, session domain.RedemptionSession) error
}

// BenefitService contract interface
type BenefitService interface {
	Redeemable(ctx context.Context, benefitID string, customerID uint, now time.Time) (domain.Benefit, error)
	Consume(ctx context.Context, benefitID string) (domain.Benefit, error)
}

// StampLedger contract interface
type StampLedger interface {
	ResetAllForCustomer(ctx context.Context, customerID uint) error
}

// LogRepository contract interface
type LogRepository interface {
	Create(ctx context.Context, log *domain.RedemptionLog) error
}

// Service implements the one-time-code redemption protocol. Issuance and
// cancellation for one customer are serialized through that customer's
// lock; this is what keeps the single-active-session invariant under
// concurrent requests.
type Service struct {
	store    SessionStore
	benefits BenefitService
	ledger   StampLedger
	logRepo  LogRepository
	bus      *events.Bus
	validity time.Duration
	now      func() time.Time

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewService(
	store SessionStore,
	benefitSvc BenefitService,
	ledger StampLedger,
	logRepo LogRepository,
	bus *events.Bus,
	validity time.Duration,
) *Service {
	if validity <= 0 {
		validity = 60 * time.Second
	}
	return &Service{
		store:    store,
		benefits: benefitSvc,
		ledger:   ledger,
		logRepo:  logRepo,
		bus:      bus,
		validity: validity,
		now:      time.Now,
		locks:    make(map[uint]*sync.Mutex),
	}
}

func (s *Service) customerLock(customerID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[customerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[customerID] = l
	}
	return l
}

// RequestCode issues a one-time code for a benefit, or re-displays the
// customer's still-active code. It never silently produces a second live
// code.
func (s *Service) RequestCode(ctx context.Context, customerID uint, benefitID, branchID string) (domain.RedemptionSession, error) {
	lock := s.customerLock(customerID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()

	existing, err := s.store.GetByCustomer(ctx, customerID)
	if err != nil {
		return domain.RedemptionSession{}, fmt.Errorf("failed to read session store: %w", err)
	}

	if existing != nil && existing.EffectiveState(now) == domain.SessionActive {
		metrics.RedemptionsTotal.WithLabelValues("redisplayed").Inc()
		return *existing, nil
	}

	return s.issue(ctx, customerID, benefitID, branchID, now)
}

// RequestNewCode is the escape hatch after the countdown hits zero: it
// unconditionally cancels whatever session exists, active or not, and
// issues a fresh one.
func (s *Service) RequestNewCode(ctx context.Context, customerID uint, benefitID, branchID string) (domain.RedemptionSession, error) {
	lock := s.customerLock(customerID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()

	existing, err := s.store.GetByCustomer(ctx, customerID)
	if err != nil {
		return domain.RedemptionSession{}, fmt.Errorf("failed to read session store: %w", err)
	}

	if existing != nil && existing.State == domain.SessionActive {
		existing.State = domain.SessionCancelled
		if err := s.store.Save(ctx, *existing); err != nil {
			return domain.RedemptionSession{}, fmt.Errorf("failed to cancel previous session: %w", err)
		}
	}

	return s.issue(ctx, customerID, benefitID, branchID, now)
}

func (s *Service) issue(ctx context.Context, customerID uint, benefitID, branchID string, now time.Time) (domain.RedemptionSession, error) {
	if _, err := s.benefits.Redeemable(ctx, benefitID, customerID, now); err != nil {
		return domain.RedemptionSession{}, err
	}

	code, err := generateCode()
	if err != nil {
		return domain.RedemptionSession{}, err
	}

	session := domain.RedemptionSession{
		Code:       code,
		CustomerID: customerID,
		BenefitID:  benefitID,
		BranchID:   branchID,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.validity),
		State:      domain.SessionActive,
	}

	if err := s.store.Save(ctx, session); err != nil {
		return domain.RedemptionSession{}, fmt.Errorf("failed to persist session: %w", err)
	}

	metrics.RedemptionsTotal.WithLabelValues("issued").Inc()
	logger.Info("Redemption code issued", "customer_id", customerID, "benefit_id", benefitID)

	s.publish(domain.TopicRedemptionIssued, customerID, map[string]any{
		"benefit_id": benefitID,
		"expires_at": session.ExpiresAt,
	})

	return session, nil
}

// CurrentSession returns the customer's session with lazy expiry applied.
// No timer ever fires for expiry; it is detected wherever the session is
// read.
func (s *Service) CurrentSession(ctx context.Context, customerID uint) (domain.RedemptionSession, error) {
	session, err := s.store.GetByCustomer(ctx, customerID)
	if err != nil {
		return domain.RedemptionSession{}, fmt.Errorf("failed to read session store: %w", err)
	}
	if session == nil {
		return domain.RedemptionSession{}, ErrNoActiveSession
	}

	view := *session
	view.State = view.EffectiveState(s.now())
	return view, nil
}

// Confirm is the staff-side terminal transition. It consumes the benefit
// and, for threshold-derived benefits, spends the whole stamp count.
// Because confirmation requires an active, unexpired session and moves it
// to a terminal state, a second attempt with the same code always fails:
// that is the entire replay defense for the code.
func (s *Service) Confirm(ctx context.Context, code string, staffID uint) (domain.RedemptionSession, error) {
	found, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return domain.RedemptionSession{}, fmt.Errorf("failed to read session store: %w", err)
	}
	if found == nil {
		metrics.RedemptionsTotal.WithLabelValues("rejected").Inc()
		return domain.RedemptionSession{}, ErrNoActiveSession
	}

	lock := s.customerLock(found.CustomerID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock; the customer may have cancelled or renewed
	// while the staff member was typing.
	session, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return domain.RedemptionSession{}, fmt.Errorf("failed to read session store: %w", err)
	}
	if session == nil {
		metrics.RedemptionsTotal.WithLabelValues("rejected").Inc()
		return domain.RedemptionSession{}, ErrNoActiveSession
	}

	now := s.now()
	switch session.EffectiveState(now) {
	case domain.SessionActive:
	case domain.SessionExpired:
		metrics.RedemptionsTotal.WithLabelValues("expired").Inc()
		return domain.RedemptionSession{}, ErrSessionExpired
	default:
		metrics.RedemptionsTotal.WithLabelValues("rejected").Inc()
		return domain.RedemptionSession{}, ErrSessionAlreadyTerminal
	}

	session.State = domain.SessionConfirmed
	if err := s.store.Save(ctx, *session); err != nil {
		return domain.RedemptionSession{}, fmt.Errorf("failed to persist confirmation: %w", err)
	}

	entry := domain.RedemptionLog{
		ID:          uuid.NewString(),
		Code:        session.Code,
		CustomerID:  session.CustomerID,
		BenefitID:   session.BenefitID,
		BranchID:    session.BranchID,
		StaffID:     staffID,
		ConfirmedAt: now,
	}
	if err := s.logRepo.Create(ctx, &entry); err != nil {
		logger.Error("Failed to persist redemption log", "error", err, "code", session.Code)
		return domain.RedemptionSession{}, fmt.Errorf("failed to persist redemption log: %w", err)
	}

	benefit, err := s.benefits.Consume(ctx, session.BenefitID)
	if err != nil {
		logger.Error("Failed to consume benefit on confirmation", "error", err, "benefit_id", session.BenefitID)
		return domain.RedemptionSession{}, err
	}

	if benefits.ThresholdDerived(benefit.RuleName) {
		if err := s.ledger.ResetAllForCustomer(ctx, session.CustomerID); err != nil {
			logger.Error("Failed to reset stamps after redemption", "error", err, "customer_id", session.CustomerID)
			return domain.RedemptionSession{}, err
		}
	}

	metrics.RedemptionsTotal.WithLabelValues("confirmed").Inc()
	logger.Info("Redemption confirmed",
		"customer_id", session.CustomerID,
		"benefit_id", session.BenefitID,
		"staff_id", staffID,
	)

	s.publish(domain.TopicRedemptionConfirmed, session.CustomerID, map[string]any{
		"benefit_id": session.BenefitID,
		"staff_id":   staffID,
	})

	return *session, nil
}

// Cancel is the customer-side terminal transition.
func (s *Service) Cancel(ctx context.Context, customerID uint) error {
	lock := s.customerLock(customerID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.store.GetByCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("failed to read session store: %w", err)
	}
	if session == nil || session.EffectiveState(s.now()) != domain.SessionActive {
		return ErrNoActiveSession
	}

	session.State = domain.SessionCancelled
	if err := s.store.Save(ctx, *session); err != nil {
		return fmt.Errorf("failed to persist cancellation: %w", err)
	}

	metrics.RedemptionsTotal.WithLabelValues("cancelled").Inc()

	s.publish(domain.TopicRedemptionCancelled, customerID, map[string]any{
		"benefit_id": session.BenefitID,
	})

	return nil
}

func (s *Service) publish(topic string, customerID uint, payload map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(domain.StateEvent{
		Topic:      topic,
		CustomerID: customerID,
		OccurredAt: s.now(),
		Payload:    payload,
	})
}
