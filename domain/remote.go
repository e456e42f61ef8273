package domain

// VisitDescriptor is the shape a pending visit takes on the wire toward the
// remote ledger.
type VisitDescriptor struct {
	RecordID    string  `json:"record_id"`
	CustomerID  uint    `json:"customer_id"`
	BranchID    string  `json:"branch_id"`
	TableID     string  `json:"table_id"`
	Amount      float64 `json:"amount"`
	QRTimestamp int64   `json:"qr_timestamp"`
	Nonce       string  `json:"nonce"`
	Signature   string  `json:"signature"`
}

// VisitSubmitResult is the remote ledger's per-item verdict on a submitted
// batch. The progress token is opaque to us.
type VisitSubmitResult struct {
	RecordID      string `json:"record_id"`
	Accepted      bool   `json:"accepted"`
	Reason        string `json:"reason,omitempty"`
	ProgressToken string `json:"progress_token,omitempty"`
}

// LedgerStatus reports the remote ledger's reachability and backlog.
type LedgerStatus struct {
	Reachable   bool `json:"reachable"`
	Outstanding int  `json:"outstanding"`
}
