package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-payment-confirmations/app/backend"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/dto"
	"github.com/vibast-solutions/ms-go-payment-confirmations/app/entity"
	"google.golang.org/protobuf/types/known/structpb"
)

func ConfirmationToDTO(item *entity.Confirmation) dto.ConfirmationResponse {
	if item == nil {
		return dto.ConfirmationResponse{}
	}

	return dto.ConfirmationResponse{
		SessionID:  item.SessionID,
		UserID:     item.UserID,
		State:      string(item.State),
		Reason:     string(item.Reason),
		Attempts:   item.Attempts,
		Error:      item.Error,
		StartedAt:  item.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: formatTime(item.FinishedAt),
	}
}

// ConfirmationToStruct renders the confirmation as a protobuf Struct with the
// same field names as the JSON response.
func ConfirmationToStruct(item *entity.Confirmation) (*structpb.Struct, error) {
	resp := ConfirmationToDTO(item)
	fields := map[string]interface{}{
		"session_id": resp.SessionID,
		"state":      resp.State,
		"attempts":   float64(resp.Attempts),
		"started_at": resp.StartedAt,
	}
	if resp.Reason != "" {
		fields["reason"] = resp.Reason
	}
	if resp.UserID != nil {
		fields["user_id"] = *resp.UserID
	}
	if resp.Error != nil {
		fields["error"] = *resp.Error
	}
	if resp.FinishedAt != nil {
		fields["finished_at"] = *resp.FinishedAt
	}
	return structpb.NewStruct(fields)
}

func CheckoutToDTO(item *backend.CheckoutSessionResponse) dto.CheckoutResponse {
	if item == nil {
		return dto.CheckoutResponse{}
	}
	return dto.CheckoutResponse{URL: item.URL, SessionID: item.SessionID}
}

func CancelToDTO(item *backend.CancelResponse) dto.CancelResponse {
	if item == nil {
		return dto.CancelResponse{}
	}
	return dto.CancelResponse{Message: item.Message, CancelAt: item.CancelAt}
}

func DetailsToDTO(item *backend.SubscriptionDetails) dto.SubscriptionDetailsResponse {
	if item == nil {
		return dto.SubscriptionDetailsResponse{}
	}
	return dto.SubscriptionDetailsResponse{
		Status:            item.Status,
		Message:           item.Message,
		CurrentPeriodEnd:  item.CurrentPeriodEnd,
		CancelAtPeriodEnd: item.CancelAtPeriodEnd,
		Plan:              item.Plan,
	}
}

func PromoToDTO(item *backend.PromoRedemption) dto.PromoRedemptionResponse {
	if item == nil {
		return dto.PromoRedemptionResponse{}
	}
	return dto.PromoRedemptionResponse{
		Message:             item.Message,
		SubscriptionStatus:  item.SubscriptionStatus,
		SubscriptionEndDate: item.SubscriptionEndDate,
	}
}

func UserToDTO(item *entity.User) *dto.UserResponse {
	if item == nil {
		return nil
	}
	return &dto.UserResponse{
		ID:                  item.ID,
		Email:               item.Email,
		Name:                item.Name,
		SubscriptionStatus:  item.SubscriptionStatus,
		SubscriptionEndDate: item.SubscriptionEndDate,
	}
}

func TokenToDTO(item *backend.TokenResponse) dto.TokenResponse {
	if item == nil {
		return dto.TokenResponse{}
	}
	return dto.TokenResponse{Token: item.Token, User: UserToDTO(item.User)}
}

func formatTime(v *time.Time) *string {
	if v == nil {
		return nil
	}
	s := v.UTC().Format(time.RFC3339)
	return &s
}
