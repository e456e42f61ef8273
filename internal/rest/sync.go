package rest

import (
	"context"
	"loyaltyStamp/business/sync"
	"loyaltyStamp/domain"
	"loyaltyStamp/pkg/logger"
	"net/http"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type (
	SyncHandler struct {
		syncService SyncService
		timeout     time.Duration
	}

	SyncService interface {
		Sweep(ctx context.Context) (sync.SweepSummary, error)
		Status(ctx context.Context) (domain.LedgerStatus, error)
	}
)

func NewSyncHandler(syncService SyncService) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		timeout:     30 * time.Second,
	}
}

// RunSweep is the explicit trigger next to the periodic one; it runs the
// sweep inline so staff see the summary.
func (h *SyncHandler) RunSweep(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	summary, err := h.syncService.Sweep(ctx)
	if err != nil {
		logger.Error("Manual sync sweep failed", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(summary))
}

// GetStatus proxies the remote ledger's status endpoint.
func (h *SyncHandler) GetStatus(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	status, err := h.syncService.Status(ctx)
	if err != nil {
		logger.Warn("Remote ledger status check failed", err)
		return c.JSON(http.StatusOK, fres.Response.StatusOK(domain.LedgerStatus{Reachable: false}))
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(status))
}
