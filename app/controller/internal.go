package controller

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/dto"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/factory"
)

type staleCleanupRunner interface {
	RunStaleCleanupBatch(ctx context.Context) error
}

// InternalController serves maintenance endpoints reachable only by other
// services.
type InternalController struct {
	cleanup staleCleanupRunner
	logger  logrus.FieldLogger
}

func NewInternalController(cleanup staleCleanupRunner) *InternalController {
	return &InternalController{
		cleanup: cleanup,
		logger:  factory.NewModuleLogger("internal-controller"),
	}
}

func (c *InternalController) RunStaleCleanup(ctx echo.Context) error {
	if err := c.cleanup.RunStaleCleanupBatch(ctx.Request().Context()); err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Stale confirmation cleanup failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
	return ctx.JSON(http.StatusOK, &dto.HealthResponse{Status: "ok"})
}
