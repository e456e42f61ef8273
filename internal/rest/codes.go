package rest

import (
	"loyaltyStamp/business/qrcode"
	"loyaltyStamp/pkg/logger"
	"net/http"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type (
	// CodesHandler is the venue side: staff mint signed payloads that the
	// table QR displays.
	CodesHandler struct {
		validate *validator.Validate
		codec    *qrcode.Codec
	}

	IssueCodeRequest struct {
		BranchID string  `json:"branch_id" validate:"required"`
		TableID  string  `json:"table_id" validate:"required"`
		Amount   float64 `json:"amount" validate:"required,gt=0"`
	}
)

func NewCodesHandler(codec *qrcode.Codec) *CodesHandler {
	return &CodesHandler{
		validate: validator.New(),
		codec:    codec,
	}
}

func (h *CodesHandler) IssueCode(c echo.Context) error {
	var request IssueCodeRequest

	if err := c.Bind(&request); err != nil {
		logger.Error("Invalid request body", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		logger.Error("Failed to validate issue code request", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	payload, err := h.codec.Encode(request.BranchID, request.TableID, request.Amount, time.Now())
	if err != nil {
		logger.Error("Failed to encode visit payload", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(map[string]interface{}{
		"payload": payload,
	}))
}
