package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/product_api/internal/logging"
	"github.com/Skotchmaster/product_api/internal/models"
	"github.com/Skotchmaster/product_api/internal/service"
	"github.com/Skotchmaster/product_api/internal/tokens"
)

const (
	claimsKey = "token_claims"
	userKey   = "user"
)

var (
	ErrNotAuthenticated = echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	ErrBadCredentials   = echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
	ErrNotEnoughRights  = echo.NewHTTPError(http.StatusForbidden, "Not enough permissions")
)

type UserLookup interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
}

// RequireAuth resolves the bearer token to a stored user. Missing, invalid or
// expired tokens and tokens whose user no longer exists are rejected with 401.
func RequireAuth(ts *tokens.Service, users UserLookup) echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		ContextKey: claimsKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return ts.Verify(auth)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			l := logging.FromContext(c.Request().Context())
			h := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
				l.Warn("auth_error", "status", 401, "reason", "missing bearer token")
				return ErrNotAuthenticated
			}
			l.Warn("auth_error", "status", 401, "reason", "invalid token", "error", err)
			return ErrBadCredentials
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(loadUser(users, next))
	}
}

func loadUser(users UserLookup, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx)

		claims, ok := c.Get(claimsKey).(*tokens.Claims)
		if !ok {
			return ErrBadCredentials
		}

		user, err := users.UserByEmail(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				l.Warn("auth_error", "status", 401, "reason", "token subject not found")
				return ErrBadCredentials
			}
			return err
		}

		c.Set(userKey, user)
		c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, l.With("user_id", user.ID))))
		return next(c)
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := UserFromContext(c)
		if !ok {
			return ErrBadCredentials
		}
		if !user.IsAdmin() {
			logging.FromContext(c.Request().Context()).Warn("auth_error", "status", 403, "reason", "admin access required")
			return ErrNotEnoughRights
		}
		return next(c)
	}
}

func UserFromContext(c echo.Context) (*models.User, bool) {
	u, ok := c.Get(userKey).(*models.User)
	return u, ok && u != nil
}
