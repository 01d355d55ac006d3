package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/dto"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/factory"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/service"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/session"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/types"
)

type ConfirmationController struct {
	confirmationService *service.ConfirmationService
	logger              logrus.FieldLogger
}

func NewConfirmationController(confirmationService *service.ConfirmationService) *ConfirmationController {
	return &ConfirmationController{
		confirmationService: confirmationService,
		logger:              factory.NewModuleLogger("confirmations-controller"),
	}
}

func (c *ConfirmationController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &dto.HealthResponse{Status: "ok"})
}

// CheckoutReturn handles the browser landing on the checkout success URL.
// It starts (or joins) the confirmation and answers 202 while polling, or
// waits for the terminal state when wait=true.
func (c *ConfirmationController) CheckoutReturn(ctx echo.Context) error {
	req, err := types.NewConfirmationRequestFromQuery(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid query params")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}
	sess, ok := session.FromEcho(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "Not authenticated")
	}

	l := factory.LoggerWithContext(c.logger, ctx).WithField("session_id", req.GetSessionId())
	item, err := c.confirmationService.Start(ctx.Request().Context(), req.GetSessionId(), sess)
	if err != nil {
		return c.writeServiceError(ctx, l, err, "Start confirmation failed")
	}

	if wait, _ := strconv.ParseBool(ctx.QueryParam("wait")); wait && !item.Terminal() {
		item, err = c.confirmationService.Await(ctx.Request().Context(), req.GetSessionId())
		if err != nil {
			return c.writeServiceError(ctx, l, err, "Await confirmation failed")
		}
	}

	status := http.StatusAccepted
	if item.Terminal() {
		status = http.StatusOK
	}
	return ctx.JSON(status, &dto.ConfirmationEnvelopeResponse{Confirmation: mapper.ConfirmationToDTO(item)})
}

func (c *ConfirmationController) GetConfirmation(ctx echo.Context) error {
	req, err := types.NewConfirmationRequestFromPath(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.confirmationService.Get(ctx.Request().Context(), req.GetSessionId())
	if err != nil {
		return c.writeServiceError(ctx, factory.LoggerWithContext(c.logger, ctx), err, "Get confirmation failed")
	}

	return ctx.JSON(http.StatusOK, &dto.ConfirmationEnvelopeResponse{Confirmation: mapper.ConfirmationToDTO(item)})
}

func (c *ConfirmationController) writeServiceError(ctx echo.Context, l logrus.FieldLogger, err error, msg string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		return writeError(ctx, http.StatusUnauthorized, "Not authenticated")
	case errors.Is(err, service.ErrConfirmationNotFound):
		return writeError(ctx, http.StatusNotFound, "confirmation not found")
	case errors.Is(err, service.ErrAlreadyInFlight):
		return writeError(ctx, http.StatusConflict, err.Error())
	default:
		l.WithError(err).Error(msg)
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &dto.ErrorResponse{Error: message})
}
