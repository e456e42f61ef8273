package remoteledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"loyaltyStamp/domain"

	"github.com/pobyzaarif/goshortcute"
)

type LedgerConfig struct {
	BaseURL           string
	BasicAuthUsername string
	BasicAuthPassword string
	Timeout           time.Duration
}

// LedgerRepository talks to the remote visit ledger, the source of truth
// for accepted visits and confirmed redemptions. Everything it returns is
// treated as opaque by the sync engine.
type LedgerRepository struct {
	ledgerConfig LedgerConfig
	client       *http.Client
}

func NewLedgerRepository(cfg LedgerConfig) *LedgerRepository {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &LedgerRepository{
		ledgerConfig: cfg,
		client:       &http.Client{Timeout: timeout},
	}
}

type submitBatchRequest struct {
	Visits []domain.VisitDescriptor `json:"visits"`
}

type submitBatchResponse struct {
	Results []domain.VisitSubmitResult `json:"results"`
}

// SubmitBatch pushes pending visit descriptors and returns the remote
// ledger's per-item verdicts. Duplicate detection happens on the remote
// side; a rejected duplicate comes back as an ordinary per-item failure.
func (r *LedgerRepository) SubmitBatch(ctx context.Context, items []domain.VisitDescriptor) ([]domain.VisitSubmitResult, error) {
	payloadByte, err := json.Marshal(submitBatchRequest{Visits: items})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal json payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.ledgerConfig.BaseURL+"/v1/visits/batch", bytes.NewReader(payloadByte))
	if err != nil {
		return nil, err
	}

	r.setHeaders(req)

	res, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("ledger service returned negative response %v", res.StatusCode)
	}

	var parsed submitBatchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger response: %w", err)
	}

	return parsed.Results, nil
}

// Status reports remote reachability and outstanding item count.
func (r *LedgerRepository) Status(ctx context.Context) (domain.LedgerStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.ledgerConfig.BaseURL+"/v1/status", nil)
	if err != nil {
		return domain.LedgerStatus{}, err
	}

	r.setHeaders(req)

	res, err := r.client.Do(req)
	if err != nil {
		return domain.LedgerStatus{Reachable: false}, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return domain.LedgerStatus{Reachable: false}, fmt.Errorf("ledger service returned negative response %v", res.StatusCode)
	}

	var status domain.LedgerStatus
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		return domain.LedgerStatus{}, fmt.Errorf("failed to unmarshal ledger status: %w", err)
	}

	return status, nil
}

func (r *LedgerRepository) setHeaders(req *http.Request) {
	buildBasicAuth := goshortcute.StringtoBase64Encode(r.ledgerConfig.BasicAuthUsername + ":" + r.ledgerConfig.BasicAuthPassword)
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", "Basic "+buildBasicAuth)
}
