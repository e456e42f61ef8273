package sync

import (
	"context"
	"time"

	"loyaltyStamp/domain"
	"loyaltyStamp/pkg/logger"
	"loyaltyStamp/pkg/metrics"
	"loyaltyStamp/pkg/worker"
)

// Ledger contract interface
type Ledger interface {
	Unsynced(ctx context.Context) ([]domain.VisitRecord, error)
	MarkSent(ctx context.Context, recordID, progressToken string) (domain.VisitRecord, error)
	MarkError(ctx context.Context, recordID, reason string) (domain.VisitRecord, error)
}

// RemoteLedger contract interface
type RemoteLedger interface {
	SubmitBatch(ctx context.Context, items []domain.VisitDescriptor) ([]domain.VisitSubmitResult, error)
	Status(ctx context.Context) (domain.LedgerStatus, error)
}

// SweepSummary reports what one reconciliation pass did.
type SweepSummary struct {
	Selected int `json:"selected"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
}

// Service reconciles pending and errored visit records with the remote
// ledger. It never retries on its own: each sweep is one pass, and retry
// policy lives with whoever schedules the next sweep.
type Service struct {
	ledger      Ledger
	remote      RemoteLedger
	callTimeout time.Duration
}

func NewService(ledger Ledger, remote RemoteLedger, callTimeout time.Duration) *Service {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &Service{
		ledger:      ledger,
		remote:      remote,
		callTimeout: callTimeout,
	}
}

// Sweep selects every non-sent record and submits the batch. Transport
// failure errors all of them; otherwise each record follows its per-item
// verdict. Failures land in ledger state, never back on the caller.
func (s *Service) Sweep(ctx context.Context) (SweepSummary, error) {
	start := time.Now()
	defer func() {
		metrics.SyncSweepDuration.Observe(time.Since(start).Seconds())
	}()

	records, err := s.ledger.Unsynced(ctx)
	if err != nil {
		logger.Error("Failed to load unsynced visit records", "error", err)
		return SweepSummary{}, err
	}

	summary := SweepSummary{Selected: len(records)}
	if len(records) == 0 {
		return summary, nil
	}

	items := make([]domain.VisitDescriptor, 0, len(records))
	for _, r := range records {
		items = append(items, domain.VisitDescriptor{
			RecordID:    r.ID,
			CustomerID:  r.CustomerID,
			BranchID:    r.BranchID,
			TableID:     r.TableID,
			Amount:      r.Amount,
			QRTimestamp: r.QRTimestamp,
			Nonce:       r.Nonce,
			Signature:   r.Signature,
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	results, err := s.remote.SubmitBatch(callCtx, items)
	if err != nil {
		// Timeouts and transport errors are one class: the whole batch
		// stays local and every record books a network failure.
		reason := "network failure: " + err.Error()
		for _, r := range records {
			if _, merr := s.ledger.MarkError(ctx, r.ID, reason); merr != nil {
				logger.Error("Failed to record sync failure", "error", merr, "record_id", r.ID)
			}
			metrics.SyncResultsTotal.WithLabelValues("network_failure").Inc()
			summary.Failed++
		}
		logger.Warn("Sync sweep failed against remote ledger", "error", err, "records", len(records))
		return summary, nil
	}

	verdicts := make(map[string]domain.VisitSubmitResult, len(results))
	for _, res := range results {
		verdicts[res.RecordID] = res
	}

	for _, r := range records {
		res, ok := verdicts[r.ID]
		switch {
		case !ok:
			if _, merr := s.ledger.MarkError(ctx, r.ID, "server rejected: no verdict returned"); merr != nil {
				logger.Error("Failed to record sync rejection", "error", merr, "record_id", r.ID)
			}
			metrics.SyncResultsTotal.WithLabelValues("server_rejected").Inc()
			summary.Failed++
		case res.Accepted:
			if _, merr := s.ledger.MarkSent(ctx, r.ID, res.ProgressToken); merr != nil {
				logger.Error("Failed to mark visit record sent", "error", merr, "record_id", r.ID)
				continue
			}
			metrics.SyncResultsTotal.WithLabelValues("sent").Inc()
			summary.Sent++
		default:
			if _, merr := s.ledger.MarkError(ctx, r.ID, "server rejected: "+res.Reason); merr != nil {
				logger.Error("Failed to record sync rejection", "error", merr, "record_id", r.ID)
			}
			metrics.SyncResultsTotal.WithLabelValues("server_rejected").Inc()
			summary.Failed++
		}
	}

	logger.Info("Sync sweep finished",
		"selected", summary.Selected,
		"sent", summary.Sent,
		"failed", summary.Failed,
	)

	return summary, nil
}

// Status proxies the remote ledger's status endpoint; both fields are opaque
// to us.
func (s *Service) Status(ctx context.Context) (domain.LedgerStatus, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	return s.remote.Status(callCtx)
}

// StartPeriodic schedules sweeps on the shared worker pool until the context
// ends. Tick-driven, not retry-driven: a failed sweep waits for the next
// tick like any other.
func (s *Service) StartPeriodic(ctx context.Context, interval time.Duration, pool *worker.Pool) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := pool.Submit(func() {
					if _, err := s.Sweep(context.Background()); err != nil {
						logger.Error("Scheduled sync sweep failed", "error", err)
					}
				})
				if err != nil {
					logger.Warn("Skipping scheduled sync sweep", "error", err)
				}
			}
		}
	}()
}
