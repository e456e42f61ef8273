package redemption

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"loyaltyStamp/domain"
)

// fakeStore is an in-memory SessionStore with the same dual-key shape as
// the real one.
type fakeStore struct {
	mu         sync.Mutex
	byCustomer map[uint]domain.RedemptionSession
	byCode     map[string]domain.RedemptionSession
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byCustomer: make(map[uint]domain.RedemptionSession),
		byCode:     make(map[string]domain.RedemptionSession),
	}
}

func (f *fakeStore) GetByCustomer(_ context.Context, customerID uint) (*domain.RedemptionSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.byCustomer[customerID]; ok {
		copied := s
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) GetByCode(_ context.Context, code string) (*domain.RedemptionSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.byCode[code]; ok {
		copied := s
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) Save(_ context.Context, session domain.RedemptionSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byCustomer[session.CustomerID] = session
	f.byCode[session.Code] = session
	return nil
}

type fakeBenefits struct {
	mu       sync.Mutex
	benefit  domain.Benefit
	consumed []string
	denyErr  error
}

func (f *fakeBenefits) Redeemable(_ context.Context, benefitID string, _ uint, _ time.Time) (domain.Benefit, error) {
	if f.denyErr != nil {
		return domain.Benefit{}, f.denyErr
	}
	b := f.benefit
	b.ID = benefitID
	return b, nil
}

func (f *fakeBenefits) Consume(_ context.Context, benefitID string) (domain.Benefit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumed = append(f.consumed, benefitID)
	b := f.benefit
	b.ID = benefitID
	b.Used = true
	return b, nil
}

type fakeLedger struct {
	mu     sync.Mutex
	resets []uint
}

func (f *fakeLedger) ResetAllForCustomer(_ context.Context, customerID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, customerID)
	return nil
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []domain.RedemptionLog
}

func (f *fakeLogRepo) Create(_ context.Context, log *domain.RedemptionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *log)
	return nil
}

type fixture struct {
	svc      *Service
	store    *fakeStore
	benefits *fakeBenefits
	ledger   *fakeLedger
	logs     *fakeLogRepo
	clock    *time.Time
}

func newFixture(t *testing.T, ruleName string) *fixture {
	t.Helper()

	store := newFakeStore()
	ben := &fakeBenefits{benefit: domain.Benefit{
		Kind:      domain.BenefitFreeItem,
		RuleName:  ruleName,
		Active:    true,
		ExpiresAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}}
	ledger := &fakeLedger{}
	logs := &fakeLogRepo{}

	svc := NewService(store, ben, ledger, logs, nil, 60*time.Second)

	clock := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	f := &fixture{svc: svc, store: store, benefits: ben, ledger: ledger, logs: logs, clock: &clock}
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func TestRequestCodeIdempotentWhileActive(t *testing.T) {
	f := newFixture(t, "frequent_7d")
	ctx := context.Background()

	first, err := f.svc.RequestCode(ctx, 7, "ben-1", "branch-1")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if len(first.Code) != 6 {
		t.Fatalf("code = %q, want 6 digits", first.Code)
	}

	second, err := f.svc.RequestCode(ctx, 7, "ben-1", "branch-1")
	if err != nil {
		t.Fatalf("second RequestCode: %v", err)
	}
	if second.Code != first.Code {
		t.Errorf("second request issued a new code %q, want re-display of %q", second.Code, first.Code)
	}
}

func TestRequestCodeConcurrentSingleActive(t *testing.T) {
	f := newFixture(t, "frequent_7d")
	ctx := context.Background()

	const goroutines = 16
	codes := make([]string, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.svc.RequestCode(ctx, 7, "ben-1", "branch-1")
			if err != nil {
				t.Errorf("RequestCode: %v", err)
				return
			}
			codes[i] = s.Code
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if codes[i] != codes[0] {
			t.Fatalf("concurrent requests produced different codes: %q vs %q", codes[0], codes[i])
		}
	}
}

func TestRequestCodeAfterExpiryIssuesNew(t *testing.T) {
	f := newFixture(t, "frequent_7d")
	ctx := context.Background()

	first, err := f.svc.RequestCode(ctx, 7, "ben-1", "branch-1")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}

	f.advance(61 * time.Second)

	second, err := f.svc.RequestCode(ctx, 7, "ben-1", "branch-1")
	if err != nil {
		t.Fatalf("RequestCode after expiry: %v", err)
	}
	if second.Code == first.Code {
		t.Error("expired code was re-displayed instead of reissued")
	}
}

func TestCurrentSessionLazyExpiry(t *testing.T) {
	f := newFixture(t, "frequent_7d")
	ctx := context.Background()

	if _, err := f.svc.RequestCode(ctx, 7, "ben-1", "branch-1"); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}

	view, err := f.svc.CurrentSession(ctx, 7)
	if err != nil {
		t.Fatalf("CurrentSession: %v", err)
	}
	if view.State != domain.SessionActive {
		t.Errorf("state = %s, want active", view.State)
	}

	f.advance(2 * time.Minute)

	view, err = f.svc.CurrentSession(ctx, 7)
	if err != nil {
		t.Fatalf("CurrentSession after expiry: %v", err)
	}
	if view.State != domain.SessionExpired {
		t.Errorf("state = %s, want expired without any stored transition", view.State)
	}

	// The stored record never transitioned; only the view did.
	stored, _ := f.store.GetByCustomer(ctx, 7)
	if stored.State != domain.SessionActive {
		t.Errorf("stored state = %s, want still active", stored.State)
	}
}

func TestConfirmConsumesAndLogs(t *testing.T) {
	f := newFixture(t, "frequent_7d")
	ctx := context.Background()

	session, err := f.svc.RequestCode(ctx, 7, "ben-1", "branch-1")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}

	confirmed, err := f.svc.Confirm(ctx, session.Code, 42)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.State != domain.SessionConfirmed {
		t.Errorf("state = %s, want confirmed", confirmed.State)
	}

	if len(f.benefits.consumed) != 1 || f.benefits.consumed[0] != "ben-1" {
		t.Errorf("consumed = %v, want [ben-1]", f.benefits.consumed)
	}
	if len(f.logs.entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(f.logs.entries))
	}
	if f.logs.entries[0].StaffID != 42 {
		t.Errorf("staff id = %d, want 42", f.logs.entries[0].StaffID)
	}
	if len(f.ledger.resets) != 0 {
		t.Errorf("stamps reset for a non-threshold benefit: %v", f.ledger.resets)
	}
}

func TestConfirmThresholdBenefitSpendsStamps(t *testing.T) {
	f := newFixture(t, "threshold_10")
	ctx := context.Background()

	session, err := f.svc.RequestCode(ctx, 7, "ben-1", "branch-1")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}

	if _, err := f.svc.Confirm(ctx, session.Code, 42); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if len(f.ledger.resets) != 1 || f.ledger.resets[0] != 7 {
		t.Errorf("resets = %v, want [7]", f.ledger.resets)
	}
}

func TestConfirmReplayRejected(t *testing.T) {
	f := newFixture(t, "frequent_7d")
	ctx := context.Background()

	session, err := f.svc.RequestCode(ctx, 7, "ben-1", "branch-1")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}

	if _, err := f.svc.Confirm(ctx, session.Code, 42); err != nil {
		t.Fatalf("first Confirm: %v", err)
	}

	if _, err := f.svc.Confirm(ctx, session.Code, 42); !errors.Is(err, ErrSessionAlreadyTerminal) {
		t.Errorf("replayed Confirm: err = %v, want ErrSessionAlreadyTerminal", err)
	}

	if len(f.benefits.consumed) != 1 {
		t.Errorf("benefit consumed %d times, want once", len(f.benefits.consumed))
	}
}

func TestConfirmExpiredCode(t *testing.T) {
	f := newFixture(t, "frequent_7d")
	ctx := context.Background()

	session, err := f.svc.RequestCode(ctx, 7, "ben-1", "branch-1")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}

	f.advance(2 * time.Minute)

	if _, err := f.svc.Confirm(ctx, session.Code, 42); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("err = %v, want ErrSessionExpired", err)
	}
}

func TestConfirmUnknownCode(t *testing.T) {
	f := newFixture(t, "frequent_7d")

	if _, err := f.svc.Confirm(context.Background(), "000000", 42); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("err = %v, want ErrNoActiveSession", err)
	}
}

func TestRequestNewCodeCancelsPrevious(t *testing.T) {
	f := newFixture(t, "frequent_7d")
	ctx := context.Background()

	first, err := f.svc.RequestCode(ctx, 7, "ben-1", "branch-1")
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}

	second, err := f.svc.RequestNewCode(ctx, 7, "ben-1", "branch-1")
	if err != nil {
		t.Fatalf("RequestNewCode: %v", err)
	}
	if second.Code == first.Code {
		t.Fatal("renewal returned the old code")
	}

	// The old code is terminal now, not unknown.
	if _, err := f.svc.Confirm(ctx, first.Code, 42); !errors.Is(err, ErrSessionAlreadyTerminal) {
		t.Errorf("confirming the replaced code: err = %v, want ErrSessionAlreadyTerminal", err)
	}
}

func TestCancelRequiresActiveSession(t *testing.T) {
	f := newFixture(t, "frequent_7d")
	ctx := context.Background()

	if err := f.svc.Cancel(ctx, 7); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("cancel with no session: err = %v, want ErrNoActiveSession", err)
	}

	if _, err := f.svc.RequestCode(ctx, 7, "ben-1", "branch-1"); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}

	if err := f.svc.Cancel(ctx, 7); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if err := f.svc.Cancel(ctx, 7); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("second cancel: err = %v, want ErrNoActiveSession", err)
	}
}

func TestIssueRejectsUnredeemableBenefit(t *testing.T) {
	f := newFixture(t, "frequent_7d")
	f.benefits.denyErr = errors.New("benefit is not redeemable")

	if _, err := f.svc.RequestCode(context.Background(), 7, "ben-1", "branch-1"); err == nil {
		t.Error("issued a code for an unredeemable benefit")
	}
}
