package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vibast-solutions/ms-go-payment-confirmations/app/entity"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/latch"
)

// ErrAlreadyInFlight means another process owns the sequence for this session.
var ErrAlreadyInFlight = errors.New("confirmation already in flight")

// Task is one tracked polling sequence.
type Task struct {
	sessionID string
	userID    *string
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	attempts  atomic.Int32

	mu         sync.Mutex
	outcome    *Outcome
	finishedAt time.Time
}

func (t *Task) SessionID() string {
	return t.sessionID
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel stops scheduling further attempts. The task still reports a
// terminal outcome (canceled) once the running attempt returns.
func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-t.done:
		out, _ := t.Outcome()
		return out, nil
	}
}

func (t *Task) Outcome() (Outcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outcome == nil {
		return Outcome{}, false
	}
	return *t.outcome, true
}

// Snapshot renders the task as a ledger record.
func (t *Task) Snapshot() entity.Confirmation {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := entity.Confirmation{
		SessionID: t.sessionID,
		UserID:    t.userID,
		State:     entity.ConfirmationStatePolling,
		Attempts:  t.attempts.Load(),
		StartedAt: t.startedAt,
		UpdatedAt: t.startedAt,
	}
	if t.outcome != nil {
		finishedAt := t.finishedAt
		c.State = t.outcome.State
		c.Reason = t.outcome.Reason
		c.Attempts = int32(t.outcome.Attempts)
		c.FinishedAt = &finishedAt
		c.UpdatedAt = finishedAt
		if t.outcome.Err != nil {
			msg := t.outcome.Err.Error()
			c.Error = &msg
		}
	}
	return c
}

func (t *Task) finish(out Outcome, at time.Time) {
	t.mu.Lock()
	t.outcome = &out
	t.finishedAt = at
	t.mu.Unlock()
	close(t.done)
}

func (t *Task) expired(now time.Time, retention time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome != nil && now.Sub(t.finishedAt) >= retention
}

type StartRequest struct {
	Request
	UserID *string
	// OnDone runs on the task goroutine once the outcome is recorded.
	OnDone func(entity.Confirmation)
}

// Tracker owns polling sequences keyed by checkout session id. Starting the
// same id twice while a sequence is running, or within the retention window
// after it finished, returns the existing task.
type Tracker struct {
	poller    *Poller
	latch     latch.Latch
	retention time.Duration
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	tasks     map[string]*Task
	acquiring map[string]chan struct{}
}

func NewTracker(p *Poller, l latch.Latch, retention time.Duration) *Tracker {
	if l == nil {
		l = latch.NewMemory()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		poller:    p,
		latch:     l,
		retention: retention,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		tasks:     make(map[string]*Task),
		acquiring: make(map[string]chan struct{}),
	}
}

// Start begins a sequence for req.SessionID, or joins the one already
// tracked. started is false when an existing task is returned.
func (tr *Tracker) Start(ctx context.Context, req StartRequest) (task *Task, started bool, err error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return nil, false, ErrMissingSessionID
	}

	for {
		tr.mu.Lock()
		if tr.ctx.Err() != nil {
			tr.mu.Unlock()
			return nil, false, context.Canceled
		}

		now := tr.now()
		tr.pruneLocked(now)
		if existing, ok := tr.tasks[sessionID]; ok {
			tr.mu.Unlock()
			return existing, false, nil
		}

		// Another caller is acquiring the latch for this id; wait for it
		// and look again.
		if acquiring, ok := tr.acquiring[sessionID]; ok {
			tr.mu.Unlock()
			select {
			case <-acquiring:
				continue
			case <-ctx.Done():
				return nil, false, ctx.Err()
			}
		}

		acquiring := make(chan struct{})
		tr.acquiring[sessionID] = acquiring
		tr.mu.Unlock()

		return tr.acquireAndRun(ctx, sessionID, req, acquiring)
	}
}

// acquireAndRun takes the latch without holding tr.mu, so a slow latch
// backend only delays callers of the same session id.
func (tr *Tracker) acquireAndRun(ctx context.Context, sessionID string, req StartRequest, acquiring chan struct{}) (*Task, bool, error) {
	acquired, latchErr := tr.latch.Acquire(ctx, sessionID, tr.poller.Budget()+tr.retention)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.acquiring, sessionID)
	defer close(acquiring)

	if latchErr != nil {
		return nil, false, fmt.Errorf("acquire confirmation latch: %w", latchErr)
	}
	if !acquired {
		return nil, false, ErrAlreadyInFlight
	}
	if tr.ctx.Err() != nil {
		return nil, false, context.Canceled
	}

	taskCtx, cancel := context.WithCancel(tr.ctx)
	task := &Task{
		sessionID: sessionID,
		userID:    req.UserID,
		startedAt: tr.now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	tr.tasks[sessionID] = task

	runReq := req.Request
	runReq.SessionID = sessionID
	onAttempt := req.OnAttempt
	runReq.OnAttempt = func(attempt int) {
		task.attempts.Store(int32(attempt))
		if onAttempt != nil {
			onAttempt(attempt)
		}
	}

	tr.wg.Add(1)
	go func() {
		defer tr.wg.Done()
		defer cancel()

		out := tr.poller.Run(taskCtx, runReq)
		task.finish(out, tr.now())
		if req.OnDone != nil {
			req.OnDone(task.Snapshot())
		}
	}()

	return task, true, nil
}

func (tr *Tracker) Get(sessionID string) (*Task, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.pruneLocked(tr.now())
	task, ok := tr.tasks[strings.TrimSpace(sessionID)]
	return task, ok
}

// Shutdown cancels every running sequence and waits for them to return.
func (tr *Tracker) Shutdown() {
	tr.mu.Lock()
	tr.cancel()
	tr.mu.Unlock()
	tr.wg.Wait()
}

func (tr *Tracker) pruneLocked(now time.Time) {
	for id, task := range tr.tasks {
		if task.expired(now, tr.retention) {
			delete(tr.tasks, id)
		}
	}
}
