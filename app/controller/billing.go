package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/factory"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/service"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/session"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/types"
)

type BillingController struct {
	billingService *service.BillingService
	logger         logrus.FieldLogger
}

func NewBillingController(billingService *service.BillingService) *BillingController {
	return &BillingController{
		billingService: billingService,
		logger:         factory.NewModuleLogger("billing-controller"),
	}
}

func (c *BillingController) CreateCheckout(ctx echo.Context) error {
	req, err := types.NewCreateCheckoutRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}
	sess, ok := session.FromEcho(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "Not authenticated")
	}

	resp, err := c.billingService.CreateCheckout(ctx.Request().Context(), sess.Token(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Create checkout failed")
	}
	return ctx.JSON(http.StatusOK, mapper.CheckoutToDTO(resp))
}

func (c *BillingController) Cancel(ctx echo.Context) error {
	sess, ok := session.FromEcho(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "Not authenticated")
	}

	resp, err := c.billingService.Cancel(ctx.Request().Context(), sess.Token())
	if err != nil {
		return c.writeServiceError(ctx, err, "Cancel subscription failed")
	}
	return ctx.JSON(http.StatusOK, mapper.CancelToDTO(resp))
}

func (c *BillingController) Details(ctx echo.Context) error {
	sess, ok := session.FromEcho(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "Not authenticated")
	}

	resp, err := c.billingService.Details(ctx.Request().Context(), sess.Token())
	if err != nil {
		return c.writeServiceError(ctx, err, "Subscription details failed")
	}
	return ctx.JSON(http.StatusOK, mapper.DetailsToDTO(resp))
}

func (c *BillingController) RedeemPromo(ctx echo.Context) error {
	req, err := types.NewRedeemPromoRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}
	sess, ok := session.FromEcho(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "Not authenticated")
	}

	resp, err := c.billingService.RedeemPromo(ctx.Request().Context(), sess.Token(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Redeem promo failed")
	}
	return ctx.JSON(http.StatusOK, mapper.PromoToDTO(resp))
}

// ExchangeOAuthSession is unauthenticated: the caller is trading the id from
// the OAuth return fragment for its first token.
func (c *BillingController) ExchangeOAuthSession(ctx echo.Context) error {
	req, err := types.NewOAuthSessionRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	resp, err := c.billingService.ExchangeOAuthSession(ctx.Request().Context(), req.GetSessionId())
	if err != nil {
		return c.writeServiceError(ctx, err, "OAuth session exchange failed")
	}
	return ctx.JSON(http.StatusOK, mapper.TokenToDTO(resp))
}

func (c *BillingController) writeServiceError(ctx echo.Context, err error, msg string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInvalidPackage):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrOriginNotAllowed):
		return writeError(ctx, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		return writeError(ctx, http.StatusUnauthorized, "Not authenticated")
	case errors.Is(err, service.ErrNotFound):
		return writeError(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUpstream):
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn(msg)
		return writeError(ctx, http.StatusBadGateway, "backend unavailable")
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(msg)
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}
