package rest

import (
	"context"
	"errors"
	"loyaltyStamp/business/qrcode"
	"loyaltyStamp/domain"
	"loyaltyStamp/pkg/logger"
	"loyaltyStamp/pkg/metrics"
	"net/http"
	"strings"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type (
	VisitsHandler struct {
		validate     *validator.Validate
		codec        *qrcode.Codec
		visitService VisitService
		timeout      time.Duration
	}

	VisitService interface {
		Admit(ctx context.Context, customerID uint, parsed qrcode.ParsedVisit, payloadHash string) (domain.VisitRecord, error)
		Visits(ctx context.Context, customerID uint) ([]domain.VisitRecord, error)
		ResetOwned(ctx context.Context, recordID string, customerID uint) (domain.VisitRecord, error)
	}

	ScanRequest struct {
		Payload string `json:"payload" validate:"required"`
	}
)

func NewVisitsHandler(codec *qrcode.Codec, visitService VisitService) *VisitsHandler {
	return &VisitsHandler{
		validate:     validator.New(),
		codec:        codec,
		visitService: visitService,
		timeout:      10 * time.Second,
	}
}

// Scan validates a signed visit payload and admits it into the ledger. A
// rejected payload is a normal outcome: the specific kind is logged and
// counted, the customer just sees an invalid code.
func (h *VisitsHandler) Scan(c echo.Context) error {
	customerID := c.Get("user_id").(uint)

	var request ScanRequest

	if err := c.Bind(&request); err != nil {
		logger.Error("Invalid request body", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		logger.Error("Failed to validate scan request", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	parsed, err := h.codec.Validate(request.Payload)
	if err != nil {
		outcome := scanOutcome(err)
		metrics.ScanOutcomesTotal.WithLabelValues(outcome).Inc()
		logger.Warn("Rejected visit payload", "outcome", outcome, "customer_id", customerID)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid code"})
	}

	metrics.ScanOutcomesTotal.WithLabelValues("accepted").Inc()

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	record, err := h.visitService.Admit(ctx, customerID, parsed, qrcode.PayloadHash(request.Payload))
	if err != nil {
		logger.Error("Failed to admit visit", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(record))
}

// GetVisits lists the customer's records with their sync state, for the
// stamp card and diagnostics view.
func (h *VisitsHandler) GetVisits(c echo.Context) error {
	customerID := c.Get("user_id").(uint)

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	records, err := h.visitService.Visits(ctx, customerID)
	if err != nil {
		logger.Error("Failed to get visits", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(records))
}

// RetryVisit resets an errored record to pending for the next sweep.
func (h *VisitsHandler) RetryVisit(c echo.Context) error {
	customerID := c.Get("user_id").(uint)
	recordID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	record, err := h.visitService.ResetOwned(ctx, recordID, customerID)
	if err != nil {
		logger.Error("Failed to reset visit record", err)
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "belong") {
			return c.JSON(http.StatusNotFound, ResponseError{Message: "visit record not found"})
		}
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(record))
}

func scanOutcome(err error) string {
	switch {
	case errors.Is(err, qrcode.ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, qrcode.ErrExpired):
		return "expired"
	default:
		return "malformed_payload"
	}
}
