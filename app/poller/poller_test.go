package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/backend"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/entity"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type step struct {
	status        string
	paymentStatus string
	err           error
}

func pending() step { return step{status: entity.CheckoutStatusOpen, paymentStatus: entity.PaymentStatusUnpaid} }
func paid() step {
	return step{status: entity.CheckoutStatusComplete, paymentStatus: entity.PaymentStatusPaid}
}
func expired() step {
	return step{status: entity.CheckoutStatusExpired, paymentStatus: entity.PaymentStatusUnpaid}
}

type scriptedSource struct {
	mu       sync.Mutex
	steps    []step
	calls    int
	sessions []string
	block    chan struct{}
}

func (s *scriptedSource) CheckoutStatus(ctx context.Context, _ string, sessionID string) (*entity.CheckoutStatus, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.sessions = append(s.sessions, sessionID)
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	st := pending()
	if idx < len(s.steps) {
		st = s.steps[idx]
	}
	if st.err != nil {
		return nil, st.err
	}
	return &entity.CheckoutStatus{SessionID: sessionID, Status: st.status, PaymentStatus: st.paymentStatus}, nil
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type countingRefresher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRefresher) Refresh(_ context.Context, token string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &entity.User{ID: "u1", SubscriptionStatus: entity.SubscriptionStatusActive}, nil
}

func (r *countingRefresher) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestPoller(source StatusSource, refresher UserRefresher, mutate ...func(*Config)) *Poller {
	cfg := Config{MaxAttempts: 5, Interval: time.Millisecond}
	for _, fn := range mutate {
		fn(&cfg)
	}
	return New(cfg, source, refresher, WithTokenCheck(nil))
}

func TestPaidOnThirdAttempt(t *testing.T) {
	source := &scriptedSource{steps: []step{pending(), pending(), paid()}}
	refresher := &countingRefresher{}
	var delivered *entity.User

	out := newTestPoller(source, refresher).Run(context.Background(), Request{
		SessionID: "cs_1",
		Token:     "tok",
		OnUser:    func(u *entity.User) { delivered = u },
	})

	require.Equal(t, entity.ConfirmationStateSucceeded, out.State)
	require.True(t, out.Succeeded())
	require.Equal(t, 3, out.Attempts)
	require.Equal(t, 3, source.Calls())
	require.Equal(t, 1, refresher.Calls())
	require.NotNil(t, delivered)
	require.True(t, delivered.HasActiveSubscription())
	require.Same(t, delivered, out.User)
}

func TestAllPendingTimesOut(t *testing.T) {
	source := &scriptedSource{}
	refresher := &countingRefresher{}

	out := newTestPoller(source, refresher).Run(context.Background(), Request{SessionID: "cs_1", Token: "tok"})

	require.Equal(t, entity.ConfirmationStateFailed, out.State)
	require.Equal(t, entity.FailureReasonTimeout, out.Reason)
	require.Equal(t, 5, out.Attempts)
	require.Equal(t, 5, source.Calls())
	require.Equal(t, 0, refresher.Calls())
}

func TestExpiredStopsImmediately(t *testing.T) {
	source := &scriptedSource{steps: []step{expired(), paid()}}
	refresher := &countingRefresher{}

	out := newTestPoller(source, refresher).Run(context.Background(), Request{SessionID: "cs_1", Token: "tok"})

	require.Equal(t, entity.FailureReasonExpired, out.Reason)
	require.Equal(t, 1, source.Calls())
	require.Equal(t, 0, refresher.Calls())
}

func TestExpiredMidSequence(t *testing.T) {
	source := &scriptedSource{steps: []step{pending(), pending(), expired()}}

	out := newTestPoller(source, &countingRefresher{}).Run(context.Background(), Request{SessionID: "cs_1", Token: "tok"})

	require.Equal(t, entity.FailureReasonExpired, out.Reason)
	require.Equal(t, 3, source.Calls())
}

func TestNeverExceedsMaxAttempts(t *testing.T) {
	for _, max := range []int{1, 2, 7} {
		source := &scriptedSource{}
		out := newTestPoller(source, &countingRefresher{}, func(c *Config) { c.MaxAttempts = max }).
			Run(context.Background(), Request{SessionID: "cs_1", Token: "tok"})
		require.Equal(t, max, source.Calls())
		require.Equal(t, entity.FailureReasonTimeout, out.Reason)
	}
}

func TestTransportErrorIsTerminalByDefault(t *testing.T) {
	boom := errors.New("connection reset")
	source := &scriptedSource{steps: []step{pending(), {err: boom}, paid()}}

	out := newTestPoller(source, &countingRefresher{}).Run(context.Background(), Request{SessionID: "cs_1", Token: "tok"})

	require.Equal(t, entity.FailureReasonError, out.Reason)
	require.ErrorIs(t, out.Err, boom)
	require.Equal(t, 2, source.Calls())
}

func TestTransportErrorRetriedWithinBudget(t *testing.T) {
	boom := errors.New("connection reset")
	source := &scriptedSource{steps: []step{{err: boom}, {err: boom}, paid()}}
	refresher := &countingRefresher{}

	out := newTestPoller(source, refresher, func(c *Config) { c.RetryTransportErrors = true }).
		Run(context.Background(), Request{SessionID: "cs_1", Token: "tok"})

	require.True(t, out.Succeeded())
	require.Equal(t, 3, source.Calls())
	require.Equal(t, 1, refresher.Calls())
}

func TestTransportErrorsExhaustBudget(t *testing.T) {
	boom := errors.New("connection reset")
	source := &scriptedSource{steps: []step{{err: boom}, {err: boom}, {err: boom}}}

	out := newTestPoller(source, &countingRefresher{}, func(c *Config) {
		c.RetryTransportErrors = true
		c.MaxAttempts = 3
	}).Run(context.Background(), Request{SessionID: "cs_1", Token: "tok"})

	require.Equal(t, entity.FailureReasonTimeout, out.Reason)
	require.ErrorIs(t, out.Err, boom)
	require.Equal(t, 3, source.Calls())
}

func TestUnauthorizedIsNeverRetried(t *testing.T) {
	source := &scriptedSource{steps: []step{{err: &backend.StatusError{Code: 401, Message: "Token expired"}}}}

	out := newTestPoller(source, &countingRefresher{}, func(c *Config) { c.RetryTransportErrors = true }).
		Run(context.Background(), Request{SessionID: "cs_1", Token: "tok"})

	require.Equal(t, entity.FailureReasonUnauthorized, out.Reason)
	require.Equal(t, 1, source.Calls())
}

func TestDefaultTokenCheckRejectsMalformedToken(t *testing.T) {
	source := &scriptedSource{}
	p := New(Config{MaxAttempts: 5, Interval: time.Millisecond}, source, &countingRefresher{})

	out := p.Run(context.Background(), Request{SessionID: "cs_1", Token: "not-a-jwt"})

	require.Equal(t, entity.FailureReasonUnauthorized, out.Reason)
	require.Equal(t, 0, source.Calls())
}

func TestMissingSessionID(t *testing.T) {
	source := &scriptedSource{}
	out := newTestPoller(source, &countingRefresher{}).Run(context.Background(), Request{SessionID: "  ", Token: "tok"})

	require.ErrorIs(t, out.Err, ErrMissingSessionID)
	require.Equal(t, 0, source.Calls())
}

func TestRefreshFailureKeepsSuccess(t *testing.T) {
	source := &scriptedSource{steps: []step{paid()}}
	refresher := &countingRefresher{err: errors.New("me unavailable")}
	called := false

	out := newTestPoller(source, refresher).Run(context.Background(), Request{
		SessionID: "cs_1",
		Token:     "tok",
		OnUser:    func(*entity.User) { called = true },
	})

	require.True(t, out.Succeeded())
	require.Error(t, out.RefreshErr)
	require.Nil(t, out.User)
	require.False(t, called)
	require.Equal(t, 1, refresher.Calls())
}

func TestCancellationStopsScheduling(t *testing.T) {
	source := &scriptedSource{}
	ctx, cancel := context.WithCancel(context.Background())
	p := newTestPoller(source, &countingRefresher{}, func(c *Config) { c.Interval = time.Hour })

	done := make(chan Outcome, 1)
	go func() {
		done <- p.Run(ctx, Request{SessionID: "cs_1", Token: "tok"})
	}()

	require.Eventually(t, func() bool { return source.Calls() == 1 }, time.Second, time.Millisecond)
	cancel()

	out := <-done
	require.Equal(t, entity.FailureReasonCanceled, out.Reason)
	require.Equal(t, 1, source.Calls())
}

func TestDeadlineReportsTimeout(t *testing.T) {
	source := &scriptedSource{}
	p := newTestPoller(source, &countingRefresher{}, func(c *Config) {
		c.Interval = time.Hour
		c.Deadline = 20 * time.Millisecond
	})

	out := p.Run(context.Background(), Request{SessionID: "cs_1", Token: "tok"})

	require.Equal(t, entity.FailureReasonTimeout, out.Reason)
	require.Equal(t, 1, source.Calls())
}

func TestOnAttemptIsMonotonic(t *testing.T) {
	source := &scriptedSource{steps: []step{pending(), pending(), pending(), paid()}}
	var seen []int

	newTestPoller(source, &countingRefresher{}).Run(context.Background(), Request{
		SessionID: "cs_1",
		Token:     "tok",
		OnAttempt: func(n int) { seen = append(seen, n) },
	})

	require.Equal(t, []int{1, 2, 3, 4}, seen)
}

func TestBudget(t *testing.T) {
	p := New(Config{}, &scriptedSource{}, &countingRefresher{})
	require.Equal(t, 10*time.Second, p.Budget())

	p = New(Config{MaxAttempts: 2, Interval: time.Second, Deadline: time.Minute}, &scriptedSource{}, &countingRefresher{})
	require.Equal(t, time.Minute, p.Budget())
}
