package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/entity"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/factory"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/poller"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/repository"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/session"
	"github.com/vibast-solutions/ms-go-payment-confirmations/config"
)

const ledgerWriteTimeout = 5 * time.Second

// ConfirmationLedger persists confirmation sequences. It is optional: without
// one the service only knows about sequences tracked in this process.
type ConfirmationLedger interface {
	Create(ctx context.Context, item *entity.Confirmation) error
	Update(ctx context.Context, item *entity.Confirmation) error
	FindBySessionID(ctx context.Context, sessionID string) (*entity.Confirmation, error)
	ListStalePolling(ctx context.Context, cutoff time.Time) ([]*entity.Confirmation, error)
}

type confirmationTracker interface {
	Start(ctx context.Context, req poller.StartRequest) (*poller.Task, bool, error)
	Get(sessionID string) (*poller.Task, bool)
}

type ConfirmationService struct {
	tracker confirmationTracker
	ledger  ConfirmationLedger
	cfg     config.ConfirmationConfig
	logger  logrus.FieldLogger
	now     func() time.Time
}

func NewConfirmationService(tracker confirmationTracker, ledger ConfirmationLedger, cfg config.ConfirmationConfig) *ConfirmationService {
	return &ConfirmationService{
		tracker: tracker,
		ledger:  ledger,
		cfg:     cfg,
		logger:  factory.NewModuleLogger("confirmation-service"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start begins confirming sessionID for the caller, or reports the sequence
// already known for it. A session id is confirmed at most once: later calls
// observe the same sequence instead of starting another.
func (s *ConfirmationService) Start(ctx context.Context, sessionID string, sess *session.Session) (*entity.Confirmation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	if sess == nil || sess.Token() == "" {
		return nil, ErrUnauthorized
	}

	if task, ok := s.tracker.Get(sessionID); ok {
		c := task.Snapshot()
		return &c, nil
	}

	var existing *entity.Confirmation
	if s.ledger != nil {
		row, err := s.ledger.FindBySessionID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if row != nil && row.Terminal() {
			return row, nil
		}
		existing = row
	}

	userID := userIDFor(sess)
	if s.ledger != nil && existing == nil {
		now := s.now()
		row := &entity.Confirmation{
			SessionID: sessionID,
			UserID:    userID,
			State:     entity.ConfirmationStatePolling,
			StartedAt: now,
			UpdatedAt: now,
		}
		if err := s.ledger.Create(ctx, row); err != nil && !errors.Is(err, repository.ErrConfirmationAlreadyExists) {
			return nil, err
		}
		existing = row
	}

	task, started, err := s.tracker.Start(ctx, poller.StartRequest{
		Request: poller.Request{
			SessionID: sessionID,
			Token:     sess.Token(),
			OnUser:    sess.Replace,
		},
		UserID: userID,
		OnDone: s.record,
	})
	if err != nil {
		if errors.Is(err, poller.ErrAlreadyInFlight) {
			if existing != nil {
				return existing, nil
			}
			return nil, ErrAlreadyInFlight
		}
		return nil, err
	}

	if started {
		s.logger.WithField("session_id", sessionID).Info("Confirmation started")
	}
	c := task.Snapshot()
	return &c, nil
}

// Get reports live progress for a sequence tracked here, falling back to the
// ledger for sequences run elsewhere or already evicted.
func (s *ConfirmationService) Get(ctx context.Context, sessionID string) (*entity.Confirmation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}

	if task, ok := s.tracker.Get(sessionID); ok {
		c := task.Snapshot()
		return &c, nil
	}
	if s.ledger == nil {
		return nil, ErrConfirmationNotFound
	}

	row, err := s.ledger.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrConfirmationNotFound
	}
	return row, nil
}

// Await blocks until the sequence tracked for sessionID is terminal or ctx is
// done. Sequences not tracked here are returned as last recorded.
func (s *ConfirmationService) Await(ctx context.Context, sessionID string) (*entity.Confirmation, error) {
	task, ok := s.tracker.Get(strings.TrimSpace(sessionID))
	if !ok {
		return s.Get(ctx, sessionID)
	}
	if _, err := task.Wait(ctx); err != nil {
		return nil, err
	}
	c := task.Snapshot()
	return &c, nil
}

// RunStaleCleanupBatch closes ledger rows left in polling by a process that
// died mid-sequence.
func (s *ConfirmationService) RunStaleCleanupBatch(ctx context.Context) error {
	if s.ledger == nil {
		return nil
	}

	now := s.now()
	cutoff := now.Add(-s.cfg.StaleAfter)
	items, err := s.ledger.ListStalePolling(ctx, cutoff)
	if err != nil {
		return err
	}

	msg := "confirmation abandoned before reaching a terminal state"
	for _, item := range items {
		if _, ok := s.tracker.Get(item.SessionID); ok {
			continue
		}
		finishedAt := now
		item.State = entity.ConfirmationStateFailed
		item.Reason = entity.FailureReasonTimeout
		item.Error = &msg
		item.FinishedAt = &finishedAt
		item.UpdatedAt = now
		_ = s.ledger.Update(ctx, item)
	}

	return nil
}

func (s *ConfirmationService) record(c entity.Confirmation) {
	l := s.logger.WithFields(logrus.Fields{
		"session_id": c.SessionID,
		"state":      c.State,
		"reason":     c.Reason,
		"attempts":   c.Attempts,
	})
	l.Info("Confirmation finished")

	if s.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ledgerWriteTimeout)
	defer cancel()
	if err := s.ledger.Update(ctx, &c); err != nil {
		l.WithError(err).Warn("Failed to record confirmation outcome")
	}
}

func userIDFor(sess *session.Session) *string {
	if user := sess.User(); user != nil && user.ID != "" {
		id := user.ID
		return &id
	}
	if sub := session.SubjectFromToken(sess.Token()); sub != "" {
		return &sub
	}
	return nil
}
