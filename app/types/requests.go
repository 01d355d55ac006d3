package types

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// validationError turns the first failed rule into a client-facing message.
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	fe := errs[0]
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url", "startswith":
		return fmt.Errorf("%s must be an absolute http(s) url", field)
	case "max":
		return fmt.Errorf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Errorf("%s is invalid", field)
	}
}

func jsonFieldName(field string) string {
	switch field {
	case "SessionId":
		return "session_id"
	case "PackageId":
		return "package_id"
	case "OriginUrl":
		return "origin_url"
	default:
		return strings.ToLower(field)
	}
}

func NewConfirmationRequestFromQuery(ctx echo.Context) (*ConfirmationRequest, error) {
	return &ConfirmationRequest{SessionId: strings.TrimSpace(ctx.QueryParam("session_id"))}, nil
}

func NewConfirmationRequestFromPath(ctx echo.Context) (*ConfirmationRequest, error) {
	return &ConfirmationRequest{SessionId: strings.TrimSpace(ctx.Param("session_id"))}, nil
}

func (r *ConfirmationRequest) Validate() error {
	if err := validatorInstance().Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func NewCreateCheckoutRequestFromContext(ctx echo.Context) (*CreateCheckoutRequest, error) {
	var body CreateCheckoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.PackageId = strings.ToLower(strings.TrimSpace(body.PackageId))
	body.OriginUrl = strings.TrimRight(strings.TrimSpace(body.OriginUrl), "/")
	return &body, nil
}

func (r *CreateCheckoutRequest) Validate() error {
	if err := validatorInstance().Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func NewRedeemPromoRequestFromContext(ctx echo.Context) (*RedeemPromoRequest, error) {
	var body RedeemPromoRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Code = strings.ToUpper(strings.TrimSpace(body.Code))
	return &body, nil
}

func (r *RedeemPromoRequest) Validate() error {
	if err := validatorInstance().Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

func NewOAuthSessionRequestFromContext(ctx echo.Context) (*OAuthSessionRequest, error) {
	var body OAuthSessionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.SessionId = strings.TrimSpace(body.SessionId)
	return &body, nil
}

func (r *OAuthSessionRequest) Validate() error {
	if err := validatorInstance().Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}
