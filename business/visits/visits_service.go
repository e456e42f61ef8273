package visits

import (
	"context"
	"fmt"
	"sync"
	"time"

	"loyaltyStamp/business/qrcode"
	"loyaltyStamp/domain"
	"loyaltyStamp/pkg/events"
	"loyaltyStamp/pkg/logger"

	"github.com/google/uuid"
)

// VisitRepository contract interface
type VisitRepository interface {
	Create(ctx context.Context, record *domain.VisitRecord) error
	FindByID(ctx context.Context, id string) (domain.VisitRecord, error)
	FindByCustomer(ctx context.Context, customerID uint) ([]domain.VisitRecord, error)
	FindUnsynced(ctx context.Context) ([]domain.VisitRecord, error)
	FindSentByCustomer(ctx context.Context, customerID uint) ([]domain.VisitRecord, error)
	Update(ctx context.Context, record *domain.VisitRecord) error
	DeleteByCustomer(ctx context.Context, customerID uint) error
}

// Service is the visit ledger: it admits validated scans and applies sync
// state transitions. All mutations for one customer run under that
// customer's lock so concurrent sweeps and manual retries cannot race.
type Service struct {
	repo VisitRepository
	bus  *events.Bus

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewService(repo VisitRepository, bus *events.Bus) *Service {
	return &Service{
		repo:  repo,
		bus:   bus,
		locks: make(map[uint]*sync.Mutex),
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

// Admit creates a pending record for a validated scan. No local nonce dedup:
// duplicate detection belongs to the remote ledger, which judges uniqueness
// when the record is submitted.
func (s *Service) Admit(ctx context.Context, customerID uint, parsed qrcode.ParsedVisit, payloadHash string) (domain.VisitRecord, error) {
	lock := s.customerLock(customerID)
	lock.Lock()
	defer lock.Unlock()

	record := domain.VisitRecord{
		ID:          uuid.NewString(),
		CustomerID:  customerID,
		BranchID:    parsed.BranchID,
		TableID:     parsed.TableID,
		Amount:      parsed.Amount,
		PayloadHash: payloadHash,
		QRTimestamp: parsed.Timestamp,
		Nonce:       parsed.Nonce,
		ScannedAt:   time.Now(),
		SyncState:   domain.SyncPending,
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		logger.Error("Failed to persist visit record", "error", err, "customer_id", customerID)
		return domain.VisitRecord{}, fmt.Errorf("failed to persist visit record: %w", err)
	}

	s.publish(domain.TopicVisitAdmitted, customerID, map[string]any{
		"record_id": record.ID,
		"branch_id": record.BranchID,
	})

	return record, nil
}

// MarkSent applies the pending|error -> sent transition under the owning
// customer's lock. Sent is terminal; a record already sent is left alone.
func (s *Service) MarkSent(ctx context.Context, recordID, progressToken string) (domain.VisitRecord, error) {
	return s.transition(ctx, recordID, func(r domain.VisitRecord) (domain.VisitRecord, error) {
		return domain.MarkSent(r, progressToken, time.Now())
	}, domain.TopicVisitSynced)
}

// MarkError applies the pending|error -> error transition; this is the only
// place sync attempts grow.
func (s *Service) MarkError(ctx context.Context, recordID, reason string) (domain.VisitRecord, error) {
	return s.transition(ctx, recordID, func(r domain.VisitRecord) (domain.VisitRecord, error) {
		return domain.MarkError(r, reason, time.Now())
	}, domain.TopicVisitSyncFailed)
}

// Reset puts an errored record back to pending for the next sweep.
func (s *Service) Reset(ctx context.Context, recordID string) (domain.VisitRecord, error) {
	return s.transition(ctx, recordID, domain.ResetSync, "")
}

// ResetOwned is the customer-facing retry: it refuses to touch a record
// owned by somebody else.
func (s *Service) ResetOwned(ctx context.Context, recordID string, customerID uint) (domain.VisitRecord, error) {
	record, err := s.repo.FindByID(ctx, recordID)
	if err != nil {
		return domain.VisitRecord{}, fmt.Errorf("visit record not found: %w", err)
	}

	if record.CustomerID != customerID {
		return domain.VisitRecord{}, fmt.Errorf("visit record %s does not belong to customer %d", recordID, customerID)
	}

	return s.Reset(ctx, recordID)
}

func (s *Service) transition(
	ctx context.Context,
	recordID string,
	apply func(domain.VisitRecord) (domain.VisitRecord, error),
	topic string,
) (domain.VisitRecord, error) {
	record, err := s.repo.FindByID(ctx, recordID)
	if err != nil {
		return domain.VisitRecord{}, fmt.Errorf("visit record not found: %w", err)
	}

	lock := s.customerLock(record.CustomerID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read inside the critical section; another sweep may have moved the
	// record while we waited for the lock.
	record, err = s.repo.FindByID(ctx, recordID)
	if err != nil {
		return domain.VisitRecord{}, fmt.Errorf("visit record not found: %w", err)
	}

	next, err := apply(record)
	if err != nil {
		return record, err
	}

	if err := s.repo.Update(ctx, &next); err != nil {
		logger.Error("Failed to update visit record", "error", err, "record_id", recordID)
		return domain.VisitRecord{}, fmt.Errorf("failed to update visit record: %w", err)
	}

	if topic != "" {
		s.publish(topic, next.CustomerID, map[string]any{
			"record_id":     next.ID,
			"sync_state":    string(next.SyncState),
			"sync_attempts": next.SyncAttempts,
		})
	}

	return next, nil
}

// ResetAllForCustomer deletes every record a customer has accrued. Called
// exactly once per confirmed threshold redemption; this is how stamps are
// spent.
func (s *Service) ResetAllForCustomer(ctx context.Context, customerID uint) error {
	lock := s.customerLock(customerID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.DeleteByCustomer(ctx, customerID); err != nil {
		logger.Error("Failed to reset visit records", "error", err, "customer_id", customerID)
		return fmt.Errorf("failed to reset visit records: %w", err)
	}

	logger.Info("Visit records reset after redemption", "customer_id", customerID)
	return nil
}

// Visits lists a customer's records, newest first, for diagnostics display.
func (s *Service) Visits(ctx context.Context, customerID uint) ([]domain.VisitRecord, error) {
	return s.repo.FindByCustomer(ctx, customerID)
}

// Unsynced returns every record the sync engine still owes the remote
// ledger (pending or errored).
func (s *Service) Unsynced(ctx context.Context) ([]domain.VisitRecord, error) {
	return s.repo.FindUnsynced(ctx)
}

// SentVisits returns the accepted visit set the rule engine counts stamps
// from.
func (s *Service) SentVisits(ctx context.Context, customerID uint) ([]domain.VisitRecord, error) {
	return s.repo.FindSentByCustomer(ctx, customerID)
}

func (s *Service) publish(topic string, customerID uint, payload map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(domain.StateEvent{
		Topic:      topic,
		CustomerID: customerID,
		OccurredAt: time.Now(),
		Payload:    payload,
	})
}
