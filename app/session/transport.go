package session

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"google.golang.org/grpc/metadata"
)

const contextKey = "session"

// EchoMiddleware requires a bearer token and stores the resulting Session on
// the echo context.
func EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token, ok := ParseBearer(ctx.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return ctx.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
			}
			ctx.Set(contextKey, New(token))
			return next(ctx)
		}
	}
}

func FromEcho(ctx echo.Context) (*Session, bool) {
	sess, ok := ctx.Get(contextKey).(*Session)
	return sess, ok && sess != nil
}

// FromIncomingGRPC reads the bearer token from the authorization metadata.
func FromIncomingGRPC(ctx context.Context) (*Session, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, false
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return nil, false
	}
	token, ok := ParseBearer(values[0])
	if !ok {
		return nil, false
	}
	return New(token), true
}
