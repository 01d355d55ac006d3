package types

// Request messages shared by the HTTP and gRPC surfaces. Getters are nil-safe
// so services can depend on small accessor interfaces.

type ConfirmationRequest struct {
	SessionId string `json:"session_id" validate:"required,max=255"`
}

func (r *ConfirmationRequest) GetSessionId() string {
	if r == nil {
		return ""
	}
	return r.SessionId
}

type CreateCheckoutRequest struct {
	PackageId string `json:"package_id" validate:"required,oneof=monthly yearly"`
	OriginUrl string `json:"origin_url" validate:"required,url,startswith=http"`
}

func (r *CreateCheckoutRequest) GetPackageId() string {
	if r == nil {
		return ""
	}
	return r.PackageId
}

func (r *CreateCheckoutRequest) GetOriginUrl() string {
	if r == nil {
		return ""
	}
	return r.OriginUrl
}

type RedeemPromoRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

func (r *RedeemPromoRequest) GetCode() string {
	if r == nil {
		return ""
	}
	return r.Code
}

type OAuthSessionRequest struct {
	SessionId string `json:"session_id" validate:"required"`
}

func (r *OAuthSessionRequest) GetSessionId() string {
	if r == nil {
		return ""
	}
	return r.SessionId
}
