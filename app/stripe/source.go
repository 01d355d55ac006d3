// Package stripe reads checkout session status straight from Stripe, for
// deployments where the service holds the Stripe secret key itself.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v81"
	stripeCheckoutSession "github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/entity"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/session"
)

// metadataUserID is the checkout session metadata key the backend sets to the
// purchasing user's id.
const metadataUserID = "user_id"

type checkoutSessionGetter interface {
	Get(id string, params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error)
}

// PaymentConfirmer is the backend status read. The backend activates the
// subscription when it sees a paid session, so it must run once with the
// user's token before the user record is refreshed.
type PaymentConfirmer interface {
	CheckoutStatus(ctx context.Context, token, sessionID string) (*entity.CheckoutStatus, error)
}

// StatusSource implements the poller status lookup against the Stripe API.
// Pending reads stay on Stripe; a paid session is confirmed with the backend.
type StatusSource struct {
	sessions  checkoutSessionGetter
	confirmer PaymentConfirmer
}

func NewStatusSource(secretKey string, confirmer PaymentConfirmer) *StatusSource {
	return &StatusSource{
		sessions: &stripeCheckoutSession.Client{
			B:   stripeapi.GetBackend(stripeapi.APIBackend),
			Key: secretKey,
		},
		confirmer: confirmer,
	}
}

func (s *StatusSource) CheckoutStatus(ctx context.Context, token string, sessionID string) (*entity.CheckoutStatus, error) {
	params := &stripeapi.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.sessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripeapi.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: stripe rejected the secret key", session.ErrUnauthorized)
		}
		return nil, fmt.Errorf("retrieve checkout session %s: %w", sessionID, err)
	}
	if err := checkOwner(sess, token); err != nil {
		return nil, err
	}

	status := &entity.CheckoutStatus{
		SessionID:     sess.ID,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   sess.AmountTotal,
		Currency:      string(sess.Currency),
	}
	if !status.Paid() {
		return status, nil
	}

	confirmed, err := s.confirmer.CheckoutStatus(ctx, token, sessionID)
	if err != nil {
		return nil, fmt.Errorf("confirm paid checkout session %s: %w", sessionID, err)
	}
	return confirmed, nil
}

// checkOwner rejects tokens whose subject is not the user the session was
// created for.
func checkOwner(sess *stripeapi.CheckoutSession, token string) error {
	owner := strings.TrimSpace(sess.Metadata[metadataUserID])
	if owner == "" {
		owner = strings.TrimSpace(sess.ClientReferenceID)
	}
	if owner == "" {
		return nil
	}
	if session.SubjectFromToken(token) != owner {
		return fmt.Errorf("%w: checkout session belongs to another user", session.ErrUnauthorized)
	}
	return nil
}
