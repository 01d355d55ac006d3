package dto

type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

type CancelResponse struct {
	Message  string `json:"message"`
	CancelAt string `json:"cancel_at,omitempty"`
}

type SubscriptionDetailsResponse struct {
	Status            string  `json:"status"`
	Message           string  `json:"message,omitempty"`
	CurrentPeriodEnd  *string `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool    `json:"cancel_at_period_end"`
	Plan              *string `json:"plan,omitempty"`
}

type PromoRedemptionResponse struct {
	Message             string `json:"message"`
	SubscriptionStatus  string `json:"subscription_status"`
	SubscriptionEndDate string `json:"subscription_end_date,omitempty"`
}

type UserResponse struct {
	ID                  string  `json:"id"`
	Email               string  `json:"email"`
	Name                string  `json:"name"`
	SubscriptionStatus  string  `json:"subscription_status"`
	SubscriptionEndDate *string `json:"subscription_end_date,omitempty"`
}

type TokenResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user,omitempty"`
}
