package dto

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ConfirmationResponse struct {
	SessionID  string  `json:"session_id"`
	UserID     *string `json:"user_id,omitempty"`
	State      string  `json:"state"`
	Reason     string  `json:"reason,omitempty"`
	Attempts   int32   `json:"attempts"`
	Error      *string `json:"error,omitempty"`
	StartedAt  string  `json:"started_at"`
	FinishedAt *string `json:"finished_at,omitempty"`
}

type ConfirmationEnvelopeResponse struct {
	Confirmation ConfirmationResponse `json:"confirmation"`
}
