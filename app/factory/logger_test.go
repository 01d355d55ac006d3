package factory

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func TestNewModuleLogger(t *testing.T) {
	logger := NewModuleLogger("confirmation-controller")
	entry, ok := logger.(*logrus.Entry)
	if !ok {
		t.Fatalf("expected *logrus.Entry, got %T", logger)
	}
	if entry.Data["module"] != "confirmation-controller" {
		t.Fatalf("expected module field, got %+v", entry.Data)
	}
}

func TestLoggerWithContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/subscription/success?session_id=cs_1", nil)
	req.Header.Set("X-Request-ID", "rest-test-123")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	logger := LoggerWithContext(logrus.NewEntry(logrus.StandardLogger()), ctx)
	entry, ok := logger.(*logrus.Entry)
	if !ok {
		t.Fatalf("expected *logrus.Entry, got %T", logger)
	}
	if entry.Data["request_id"] != "rest-test-123" {
		t.Fatalf("expected request_id field, got %+v", entry.Data)
	}
}

func TestLoggerWithContextFallsBackToResponseHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/confirmations/cs_1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Response().Header().Set(echo.HeaderXRequestID, "generated-456")

	entry := LoggerWithContext(NewModuleLogger("billing-controller"), ctx).(*logrus.Entry)
	if entry.Data["request_id"] != "generated-456" {
		t.Fatalf("expected generated request_id, got %+v", entry.Data)
	}
	if entry.Data["module"] != "billing-controller" {
		t.Fatalf("expected module field to survive, got %+v", entry.Data)
	}
}
