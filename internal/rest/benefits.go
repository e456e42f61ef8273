package rest

import (
	"context"
	"loyaltyStamp/domain"
	"loyaltyStamp/pkg/logger"
	"loyaltyStamp/pkg/worker"
	"net/http"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type (
	BenefitsHandler struct {
		validate       *validator.Validate
		benefitService BenefitService
		pool           *worker.Pool
		timeout        time.Duration
	}

	BenefitService interface {
		Evaluate(ctx context.Context, customerID uint, now time.Time) ([]domain.Benefit, error)
		AvailableBenefits(ctx context.Context, customerID uint, now time.Time) ([]domain.Benefit, error)
		ApplyBenefits(ctx context.Context, amount float64, benefits []domain.Benefit, allowStacking bool) (float64, error)
	}

	ApplyBenefitsRequest struct {
		CustomerID    uint     `json:"customer_id" validate:"required"`
		Amount        float64  `json:"amount" validate:"required,gt=0"`
		BenefitIDs    []string `json:"benefit_ids" validate:"required,min=1"`
		AllowStacking bool     `json:"allow_stacking"`
	}
)

func NewBenefitsHandler(benefitService BenefitService, pool *worker.Pool) *BenefitsHandler {
	return &BenefitsHandler{
		validate:       validator.New(),
		benefitService: benefitService,
		pool:           pool,
		timeout:        10 * time.Second,
	}
}

// GetBenefits lists the customer's benefits; expired ones carry the expired
// status label instead of being hidden.
func (h *BenefitsHandler) GetBenefits(c echo.Context) error {
	customerID := c.Get("user_id").(uint)

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	benefits, err := h.benefitService.AvailableBenefits(ctx, customerID, time.Now())
	if err != nil {
		logger.Error("Failed to get benefits", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(benefits))
}

// Evaluate enqueues a rule evaluation on the shared pool; results surface
// through the benefit list and the event bus.
func (h *BenefitsHandler) Evaluate(c echo.Context) error {
	customerID := c.Get("user_id").(uint)

	err := h.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		if _, err := h.benefitService.Evaluate(ctx, customerID, time.Now()); err != nil {
			logger.Error("Benefit evaluation failed", "error", err, "customer_id", customerID)
		}
	})
	if err != nil {
		logger.Warn("Failed to enqueue benefit evaluation", err)
		return c.JSON(http.StatusServiceUnavailable, ResponseError{Message: "evaluation queue is full, try again"})
	}

	return c.JSON(http.StatusAccepted, fres.Response.StatusOK("Evaluation scheduled"))
}

// Apply computes the discount for a bill at the counter and consumes the
// applied benefits.
func (h *BenefitsHandler) Apply(c echo.Context) error {
	var request ApplyBenefitsRequest

	if err := c.Bind(&request); err != nil {
		logger.Error("Invalid request body", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		logger.Error("Failed to validate apply request", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	available, err := h.benefitService.AvailableBenefits(ctx, request.CustomerID, time.Now())
	if err != nil {
		logger.Error("Failed to load benefits for apply", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	byID := make(map[string]domain.Benefit, len(available))
	for _, b := range available {
		byID[b.ID] = b
	}

	// Apply in the order the request listed them.
	selected := make([]domain.Benefit, 0, len(request.BenefitIDs))
	for _, id := range request.BenefitIDs {
		if b, ok := byID[id]; ok {
			selected = append(selected, b)
		}
	}

	discount, err := h.benefitService.ApplyBenefits(ctx, request.Amount, selected, request.AllowStacking)
	if err != nil {
		logger.Error("Failed to apply benefits", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(map[string]interface{}{
		"amount":   request.Amount,
		"discount": discount,
		"payable":  request.Amount - discount,
	}))
}
