package visits

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"loyaltyStamp/business/qrcode"
	"loyaltyStamp/domain"
	"loyaltyStamp/pkg/events"
)

type fakeVisitRepo struct {
	mu      sync.Mutex
	records map[string]domain.VisitRecord
}

func newFakeVisitRepo() *fakeVisitRepo {
	return &fakeVisitRepo{records: make(map[string]domain.VisitRecord)}
}

func (f *fakeVisitRepo) Create(_ context.Context, record *domain.VisitRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[record.ID] = *record
	return nil
}

func (f *fakeVisitRepo) FindByID(_ context.Context, id string) (domain.VisitRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return domain.VisitRecord{}, errors.New("record not found")
	}
	return r, nil
}

func (f *fakeVisitRepo) FindByCustomer(_ context.Context, customerID uint) ([]domain.VisitRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.VisitRecord
	for _, r := range f.records {
		if r.CustomerID == customerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeVisitRepo) FindUnsynced(_ context.Context) ([]domain.VisitRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.VisitRecord
	for _, r := range f.records {
		if r.SyncState != domain.SyncSent {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeVisitRepo) FindSentByCustomer(_ context.Context, customerID uint) ([]domain.VisitRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.VisitRecord
	for _, r := range f.records {
		if r.CustomerID == customerID && r.SyncState == domain.SyncSent {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeVisitRepo) Update(_ context.Context, record *domain.VisitRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[record.ID]; !ok {
		return errors.New("record not found")
	}
	f.records[record.ID] = *record
	return nil
}

func (f *fakeVisitRepo) DeleteByCustomer(_ context.Context, customerID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.records {
		if r.CustomerID == customerID {
			delete(f.records, id)
		}
	}
	return nil
}

func parsedVisit() qrcode.ParsedVisit {
	return qrcode.ParsedVisit{
		BranchID:  "branch-1",
		TableID:   "t3",
		Amount:    12.5,
		Timestamp: time.Now().UnixMilli(),
		Nonce:     "bm9uY2U=",
	}
}

func TestAdmitCreatesPendingRecord(t *testing.T) {
	repo := newFakeVisitRepo()
	bus := events.NewBus()
	admitted, cancel := bus.Subscribe(domain.TopicVisitAdmitted)
	defer cancel()

	svc := NewService(repo, bus)

	record, err := svc.Admit(context.Background(), 7, parsedVisit(), "hash-1")
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	if record.SyncState != domain.SyncPending {
		t.Errorf("state = %s, want pending", record.SyncState)
	}
	if record.ID == "" {
		t.Error("record has no id")
	}
	if record.PayloadHash != "hash-1" {
		t.Errorf("payload hash = %q", record.PayloadHash)
	}

	select {
	case ev := <-admitted:
		if ev.CustomerID != 7 {
			t.Errorf("event customer = %d, want 7", ev.CustomerID)
		}
	case <-time.After(time.Second):
		t.Error("no admission event published")
	}
}

func TestMarkSentThenFurtherTransitionsRejected(t *testing.T) {
	repo := newFakeVisitRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	record, err := svc.Admit(ctx, 7, parsedVisit(), "hash-1")
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	sent, err := svc.MarkSent(ctx, record.ID, "tok-1")
	if err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if sent.SyncState != domain.SyncSent || sent.ProgressToken != "tok-1" {
		t.Errorf("record = %+v, want sent with tok-1", sent)
	}

	if _, err := svc.MarkError(ctx, record.ID, "late"); !errors.Is(err, domain.ErrAlreadySent) {
		t.Errorf("MarkError on sent: err = %v, want ErrAlreadySent", err)
	}
	if _, err := svc.Reset(ctx, record.ID); !errors.Is(err, domain.ErrAlreadySent) {
		t.Errorf("Reset on sent: err = %v, want ErrAlreadySent", err)
	}
}

func TestResetOwnedChecksOwnership(t *testing.T) {
	repo := newFakeVisitRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	record, err := svc.Admit(ctx, 7, parsedVisit(), "hash-1")
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if _, err := svc.MarkError(ctx, record.ID, "network failure"); err != nil {
		t.Fatalf("MarkError: %v", err)
	}

	if _, err := svc.ResetOwned(ctx, record.ID, 99); err == nil {
		t.Error("reset of another customer's record succeeded")
	}

	reset, err := svc.ResetOwned(ctx, record.ID, 7)
	if err != nil {
		t.Fatalf("ResetOwned: %v", err)
	}
	if reset.SyncState != domain.SyncPending {
		t.Errorf("state = %s, want pending", reset.SyncState)
	}
	if reset.SyncAttempts != 1 {
		t.Errorf("attempts = %d, want preserved", reset.SyncAttempts)
	}
}

func TestResetAllForCustomerDeletesOnlyTheirs(t *testing.T) {
	repo := newFakeVisitRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	if _, err := svc.Admit(ctx, 7, parsedVisit(), "h1"); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if _, err := svc.Admit(ctx, 7, parsedVisit(), "h2"); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	other, err := svc.Admit(ctx, 8, parsedVisit(), "h3")
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	if err := svc.ResetAllForCustomer(ctx, 7); err != nil {
		t.Fatalf("ResetAllForCustomer: %v", err)
	}

	mine, _ := svc.Visits(ctx, 7)
	if len(mine) != 0 {
		t.Errorf("customer 7 still has %d records", len(mine))
	}

	theirs, _ := svc.Visits(ctx, 8)
	if len(theirs) != 1 || theirs[0].ID != other.ID {
		t.Errorf("customer 8 records = %+v, want untouched", theirs)
	}
}

func TestUnsyncedSelectsPendingAndErrored(t *testing.T) {
	repo := newFakeVisitRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	a, _ := svc.Admit(ctx, 7, parsedVisit(), "h1")
	b, _ := svc.Admit(ctx, 7, parsedVisit(), "h2")
	c, _ := svc.Admit(ctx, 7, parsedVisit(), "h3")

	if _, err := svc.MarkSent(ctx, a.ID, "tok"); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if _, err := svc.MarkError(ctx, b.ID, "network failure"); err != nil {
		t.Fatalf("MarkError: %v", err)
	}

	unsynced, err := svc.Unsynced(ctx)
	if err != nil {
		t.Fatalf("Unsynced: %v", err)
	}

	ids := make(map[string]bool, len(unsynced))
	for _, r := range unsynced {
		ids[r.ID] = true
	}
	if len(ids) != 2 || !ids[b.ID] || !ids[c.ID] {
		t.Errorf("unsynced = %v, want errored and pending only", ids)
	}
}
