package entity

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusInactive = "inactive"
	SubscriptionStatusPastDue  = "past_due"
)

type User struct {
	ID                  string   `json:"id"`
	Email               string   `json:"email"`
	Name                string   `json:"name"`
	SubscriptionStatus  string   `json:"subscription_status"`
	SubscriptionEndDate *string  `json:"subscription_end_date,omitempty"`
	DietaryPreferences  []string `json:"dietary_preferences,omitempty"`
	CookingMethods      []string `json:"cooking_methods,omitempty"`
	HealthGoal          *string  `json:"health_goal,omitempty"`
	Allergies           []string `json:"allergies,omitempty"`
	OAuthProvider       *string  `json:"oauth_provider,omitempty"`
	PictureURL          *string  `json:"picture_url,omitempty"`
}

func (u *User) HasActiveSubscription() bool {
	return u != nil && u.SubscriptionStatus == SubscriptionStatusActive
}
