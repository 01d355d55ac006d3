package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/backend"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/factory"
	"github.com/vibast-solutions/ms-go-payment-confirmations/config"
)

const (
	PackageMonthly = "monthly"
	PackageYearly  = "yearly"
)

type createCheckoutRequest interface {
	GetPackageId() string
	GetOriginUrl() string
}

type redeemPromoRequest interface {
	GetCode() string
}

type billingBackend interface {
	CreateCheckout(ctx context.Context, token, packageID, originURL string) (*backend.CheckoutSessionResponse, error)
	CancelSubscription(ctx context.Context, token string) (*backend.CancelResponse, error)
	SubscriptionDetails(ctx context.Context, token string) (*backend.SubscriptionDetails, error)
	RedeemPromo(ctx context.Context, token, code string) (*backend.PromoRedemption, error)
	ExchangeOAuthSession(ctx context.Context, sessionID string) (*backend.TokenResponse, error)
}

// BillingService fronts the backend's subscription endpoints. The caller's
// bearer token is forwarded unchanged.
type BillingService struct {
	backend billingBackend
	cfg     config.ConfirmationConfig
	logger  logrus.FieldLogger
}

func NewBillingService(client billingBackend, cfg config.ConfirmationConfig) *BillingService {
	return &BillingService{
		backend: client,
		cfg:     cfg,
		logger:  factory.NewModuleLogger("billing-service"),
	}
}

func (s *BillingService) CreateCheckout(ctx context.Context, token string, req createCheckoutRequest) (*backend.CheckoutSessionResponse, error) {
	packageID := strings.ToLower(strings.TrimSpace(req.GetPackageId()))
	if packageID != PackageMonthly && packageID != PackageYearly {
		return nil, ErrInvalidPackage
	}

	origin, err := normalizeOrigin(req.GetOriginUrl())
	if err != nil {
		return nil, err
	}
	if !s.originAllowed(origin) {
		return nil, ErrOriginNotAllowed
	}

	resp, err := s.backend.CreateCheckout(ctx, token, packageID, origin)
	if err != nil {
		return nil, mapBackendError(err)
	}
	return resp, nil
}

func (s *BillingService) Cancel(ctx context.Context, token string) (*backend.CancelResponse, error) {
	resp, err := s.backend.CancelSubscription(ctx, token)
	if err != nil {
		return nil, mapBackendError(err)
	}
	return resp, nil
}

func (s *BillingService) Details(ctx context.Context, token string) (*backend.SubscriptionDetails, error) {
	resp, err := s.backend.SubscriptionDetails(ctx, token)
	if err != nil {
		return nil, mapBackendError(err)
	}
	return resp, nil
}

func (s *BillingService) RedeemPromo(ctx context.Context, token string, req redeemPromoRequest) (*backend.PromoRedemption, error) {
	code := strings.ToUpper(strings.TrimSpace(req.GetCode()))
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}

	resp, err := s.backend.RedeemPromo(ctx, token, code)
	if err != nil {
		return nil, mapBackendError(err)
	}
	return resp, nil
}

// ExchangeOAuthSession trades the id delivered in an OAuth return fragment
// for an application token.
func (s *BillingService) ExchangeOAuthSession(ctx context.Context, sessionID string) (*backend.TokenResponse, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}

	resp, err := s.backend.ExchangeOAuthSession(ctx, sessionID)
	if err != nil {
		return nil, mapBackendError(err)
	}
	return resp, nil
}

func (s *BillingService) originAllowed(origin string) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// normalizeOrigin reduces an absolute URL to scheme://host[:port]. The
// backend builds the checkout return URLs from it.
func normalizeOrigin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: origin_url must be an absolute http(s) url", ErrInvalidRequest)
	}
	return u.Scheme + "://" + u.Host, nil
}

func mapBackendError(err error) error {
	var statusErr *backend.StatusError
	if !errors.As(err, &statusErr) {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	switch {
	case statusErr.Unauthorized():
		return ErrUnauthorized
	case statusErr.Code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, statusErr.Message)
	case statusErr.Code >= 400 && statusErr.Code < 500:
		return fmt.Errorf("%w: %s", ErrInvalidRequest, statusErr.Message)
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}
