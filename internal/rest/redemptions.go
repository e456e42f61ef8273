package rest

import (
	"context"
	"errors"
	"loyaltyStamp/business/redemption"
	"loyaltyStamp/domain"
	"loyaltyStamp/pkg/logger"
	"net/http"
	"strings"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type (
	RedemptionsHandler struct {
		validate          *validator.Validate
		redemptionService RedemptionService
		timeout           time.Duration
	}

	RedemptionService interface {
		RequestCode(ctx context.Context, customerID uint, benefitID, branchID string) (domain.RedemptionSession, error)
		RequestNewCode(ctx context.Context, customerID uint, benefitID, branchID string) (domain.RedemptionSession, error)
		CurrentSession(ctx context.Context, customerID uint) (domain.RedemptionSession, error)
		Confirm(ctx context.Context, code string, staffID uint) (domain.RedemptionSession, error)
		Cancel(ctx context.Context, customerID uint) error
	}

	RequestCodeRequest struct {
		BenefitID string `json:"benefit_id" validate:"required"`
		BranchID  string `json:"branch_id" validate:"required"`
	}

	ConfirmRequest struct {
		Code string `json:"code" validate:"required"`
	}

	// SessionView is the display shape: grouped code plus MM:SS countdown,
	// both derived from the session at read time.
	SessionView struct {
		Code          string `json:"code"`
		FormattedCode string `json:"formatted_code"`
		BenefitID     string `json:"benefit_id"`
		BranchID      string `json:"branch_id"`
		State         string `json:"state"`
		ExpiresAt     string `json:"expires_at"`
		Countdown     string `json:"countdown"`
	}
)

func NewRedemptionsHandler(redemptionService RedemptionService) *RedemptionsHandler {
	return &RedemptionsHandler{
		validate:          validator.New(),
		redemptionService: redemptionService,
		timeout:           10 * time.Second,
	}
}

func sessionView(s domain.RedemptionSession, now time.Time) SessionView {
	return SessionView{
		Code:          s.Code,
		FormattedCode: redemption.FormatCode(s.Code),
		BenefitID:     s.BenefitID,
		BranchID:      s.BranchID,
		State:         string(s.EffectiveState(now)),
		ExpiresAt:     s.ExpiresAt.Format(time.RFC3339),
		Countdown:     redemption.FormatCountdown(s.Remaining(now)),
	}
}

// RequestCode issues (or re-displays) the customer's one-time code.
func (h *RedemptionsHandler) RequestCode(c echo.Context) error {
	customerID := c.Get("user_id").(uint)

	var request RequestCodeRequest

	if err := c.Bind(&request); err != nil {
		logger.Error("Invalid request body", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		logger.Error("Failed to validate code request", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	session, err := h.redemptionService.RequestCode(ctx, customerID, request.BenefitID, request.BranchID)
	if err != nil {
		logger.Error("Failed to request redemption code", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(sessionView(session, time.Now())))
}

// RenewCode cancels whatever session exists and issues a fresh code; the
// customer's escape hatch once the countdown hits zero.
func (h *RedemptionsHandler) RenewCode(c echo.Context) error {
	customerID := c.Get("user_id").(uint)

	var request RequestCodeRequest

	if err := c.Bind(&request); err != nil {
		logger.Error("Invalid request body", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		logger.Error("Failed to validate renew request", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	session, err := h.redemptionService.RequestNewCode(ctx, customerID, request.BenefitID, request.BranchID)
	if err != nil {
		logger.Error("Failed to renew redemption code", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(sessionView(session, time.Now())))
}

// GetSession returns the current session view with lazy expiry applied.
func (h *RedemptionsHandler) GetSession(c echo.Context) error {
	customerID := c.Get("user_id").(uint)

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	session, err := h.redemptionService.CurrentSession(ctx, customerID)
	if err != nil {
		if errors.Is(err, redemption.ErrNoActiveSession) {
			return c.JSON(http.StatusNotFound, ResponseError{Message: err.Error()})
		}
		logger.Error("Failed to get redemption session", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(sessionView(session, time.Now())))
}

// Confirm is the staff-side confirmation of a displayed code.
func (h *RedemptionsHandler) Confirm(c echo.Context) error {
	staffID := c.Get("user_id").(uint)

	var request ConfirmRequest

	if err := c.Bind(&request); err != nil {
		logger.Error("Invalid request body", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		logger.Error("Failed to validate confirm request", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	// Staff type codes as displayed, with the readability space.
	code := strings.ReplaceAll(request.Code, " ", "")

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	session, err := h.redemptionService.Confirm(ctx, code, staffID)
	if err != nil {
		logger.Warn("Redemption confirmation rejected", "error", err, "staff_id", staffID)
		switch {
		case errors.Is(err, redemption.ErrNoActiveSession),
			errors.Is(err, redemption.ErrSessionExpired),
			errors.Is(err, redemption.ErrSessionAlreadyTerminal),
			errors.Is(err, redemption.ErrCustomerMismatch):
			return c.JSON(http.StatusConflict, ResponseError{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(sessionView(session, time.Now())))
}

// CancelSession is the customer-side cancel.
func (h *RedemptionsHandler) CancelSession(c echo.Context) error {
	customerID := c.Get("user_id").(uint)

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	if err := h.redemptionService.Cancel(ctx, customerID); err != nil {
		if errors.Is(err, redemption.ErrNoActiveSession) {
			return c.JSON(http.StatusNotFound, ResponseError{Message: err.Error()})
		}
		logger.Error("Failed to cancel redemption session", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK("Redemption session cancelled"))
}
