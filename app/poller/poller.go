// Package poller resolves the outcome of a hosted checkout session by
// querying its status a bounded number of times.
package poller

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/entity"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/factory"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/session"
)

const (
	DefaultMaxAttempts = 5
	DefaultInterval    = 2000 * time.Millisecond
)

var ErrMissingSessionID = errors.New("session_id is required")

type StatusSource interface {
	CheckoutStatus(ctx context.Context, token, sessionID string) (*entity.CheckoutStatus, error)
}

type UserRefresher interface {
	Refresh(ctx context.Context, token string) (*entity.User, error)
}

type Config struct {
	MaxAttempts int
	Interval    time.Duration
	// Deadline bounds a whole sequence in wall-clock time. Zero disables it
	// and leaves the attempt counter as the only bound.
	Deadline             time.Duration
	RetryTransportErrors bool
}

type Request struct {
	SessionID string
	Token     string
	// OnUser receives the refreshed user record after a confirmed payment.
	OnUser func(*entity.User)
	// OnAttempt is called with the 1-based attempt number before each status read.
	OnAttempt func(attempt int)
}

type Outcome struct {
	SessionID  string
	State      entity.ConfirmationState
	Reason     entity.FailureReason
	Attempts   int
	LastStatus *entity.CheckoutStatus
	User       *entity.User
	Err        error
	RefreshErr error
}

func (o Outcome) Succeeded() bool {
	return o.State == entity.ConfirmationStateSucceeded
}

type Option func(*Poller)

// WithTokenCheck replaces the local bearer token check run before the first
// attempt. Passing nil disables it.
func WithTokenCheck(check func(token string, now time.Time) error) Option {
	return func(p *Poller) {
		p.tokenCheck = check
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

type Poller struct {
	cfg        Config
	source     StatusSource
	refresher  UserRefresher
	tokenCheck func(token string, now time.Time) error
	logger     logrus.FieldLogger
}

func New(cfg Config, source StatusSource, refresher UserRefresher, opts ...Option) *Poller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	p := &Poller{
		cfg:        cfg,
		source:     source,
		refresher:  refresher,
		tokenCheck: session.ValidateToken,
		logger:     factory.NewModuleLogger("confirmation-poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Budget is the longest a sequence can run before its own bounds stop it.
func (p *Poller) Budget() time.Duration {
	budget := time.Duration(p.cfg.MaxAttempts) * p.cfg.Interval
	if p.cfg.Deadline > budget {
		budget = p.cfg.Deadline
	}
	return budget
}

// Run executes one polling sequence and returns its terminal outcome. It
// never restarts itself; cancelling ctx stops it before the next attempt.
func (p *Poller) Run(ctx context.Context, req Request) Outcome {
	out := Outcome{SessionID: strings.TrimSpace(req.SessionID)}
	l := p.logger.WithField("session_id", out.SessionID)

	if out.SessionID == "" {
		return fail(out, entity.FailureReasonError, ErrMissingSessionID)
	}
	if p.tokenCheck != nil {
		if err := p.tokenCheck(req.Token, time.Now()); err != nil {
			l.WithError(err).Warn("Confirmation rejected before polling")
			return fail(out, entity.FailureReasonUnauthorized, err)
		}
	}

	if p.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Deadline)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := wait(ctx, p.cfg.Interval); err != nil {
				return interrupted(out, ctx.Err(), lastErr)
			}
		}
		if ctx.Err() != nil {
			return interrupted(out, ctx.Err(), lastErr)
		}

		out.Attempts = attempt + 1
		if req.OnAttempt != nil {
			req.OnAttempt(out.Attempts)
		}

		status, err := p.source.CheckoutStatus(ctx, req.Token, out.SessionID)
		if err != nil {
			if ctx.Err() != nil {
				return interrupted(out, ctx.Err(), err)
			}
			if isUnauthorized(err) {
				l.WithError(err).Warn("Checkout status rejected the bearer token")
				return fail(out, entity.FailureReasonUnauthorized, err)
			}
			lastErr = err
			l.WithError(err).WithField("attempt", out.Attempts).Warn("Checkout status request failed")
			if !p.cfg.RetryTransportErrors {
				return fail(out, entity.FailureReasonError, err)
			}
			continue
		}

		out.LastStatus = status
		switch {
		case status.Paid():
			return p.succeed(ctx, req, out, l)
		case status.Expired():
			l.WithField("attempt", out.Attempts).Info("Checkout session expired")
			return fail(out, entity.FailureReasonExpired, nil)
		}
		l.WithFields(logrus.Fields{
			"attempt":        out.Attempts,
			"status":         status.Status,
			"payment_status": status.PaymentStatus,
		}).Debug("Checkout still pending")
	}

	l.WithField("attempts", out.Attempts).Info("Checkout confirmation timed out")
	return fail(out, entity.FailureReasonTimeout, lastErr)
}

func (p *Poller) succeed(ctx context.Context, req Request, out Outcome, l logrus.FieldLogger) Outcome {
	out.State = entity.ConfirmationStateSucceeded
	out.Reason = entity.FailureReasonNone

	user, err := p.refresher.Refresh(ctx, req.Token)
	if err != nil {
		out.RefreshErr = err
		l.WithError(err).Warn("Payment confirmed but user refresh failed")
		return out
	}
	out.User = user
	if req.OnUser != nil {
		req.OnUser(user)
	}
	l.WithField("attempts", out.Attempts).Info("Payment confirmed")
	return out
}

func fail(out Outcome, reason entity.FailureReason, err error) Outcome {
	out.State = entity.ConfirmationStateFailed
	out.Reason = reason
	out.Err = err
	return out
}

func interrupted(out Outcome, ctxErr, lastErr error) Outcome {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		if lastErr == nil {
			lastErr = ctxErr
		}
		return fail(out, entity.FailureReasonTimeout, lastErr)
	}
	return fail(out, entity.FailureReasonCanceled, ctxErr)
}

type unauthorizedError interface {
	Unauthorized() bool
}

func isUnauthorized(err error) bool {
	if errors.Is(err, session.ErrUnauthorized) {
		return true
	}
	var authErr unauthorizedError
	return errors.As(err, &authErr) && authErr.Unauthorized()
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
