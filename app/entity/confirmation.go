package entity

import "time"

type ConfirmationState string

const (
	ConfirmationStatePolling   ConfirmationState = "polling"
	ConfirmationStateSucceeded ConfirmationState = "succeeded"
	ConfirmationStateFailed    ConfirmationState = "failed"
)

type FailureReason string

const (
	FailureReasonNone         FailureReason = ""
	FailureReasonExpired      FailureReason = "expired"
	FailureReasonTimeout      FailureReason = "timeout"
	FailureReasonError        FailureReason = "error"
	FailureReasonUnauthorized FailureReason = "unauthorized"
	FailureReasonCanceled     FailureReason = "canceled"
)

type Confirmation struct {
	ID         uint64
	SessionID  string
	UserID     *string
	State      ConfirmationState
	Reason     FailureReason
	Attempts   int32
	Error      *string
	StartedAt  time.Time
	FinishedAt *time.Time
	UpdatedAt  time.Time
}

func (c *Confirmation) Terminal() bool {
	return c.State == ConfirmationStateSucceeded || c.State == ConfirmationStateFailed
}
