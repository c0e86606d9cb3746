package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/product_api/internal/logging"
	"github.com/Skotchmaster/product_api/internal/middleware/auth"
	"github.com/Skotchmaster/product_api/internal/service"
	"github.com/Skotchmaster/product_api/internal/transport"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

// Signup takes username, email and password from the query string or from
// form / JSON body fields.
func (h *AuthHTTP) Signup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.signup")

	var req transport.SignupRequest
	b := &echo.DefaultBinder{}
	if err := b.BindQueryParams(c, &req); err != nil {
		l.Warn("signup_error", "status", 422, "reason", "invalid query", "error", err)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid query parameters").SetInternal(err)
	}
	if err := bindBody(c, &req); err != nil {
		l.Warn("signup_error", "status", 422, "reason", "invalid input", "error", err)
		return err
	}

	user, err := h.Svc.Signup(ctx, req)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyRegistered) {
			l.Warn("signup_error", "status", 400, "reason", "already registered")
			return echo.NewHTTPError(http.StatusBadRequest, "Username or email already registered")
		}
		l.Error("signup_error", "status", 500, "error", err)
		return err
	}

	l.Info("user_registered", "user_id", user.ID)
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "User created successfully"})
}

// Login implements the OAuth2 password grant form: username (or email),
// password and an optional grant_type.
func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := bindBody(c, &req); err != nil {
		l.Warn("login_error", "status", 422, "reason", "invalid form", "error", err)
		return err
	}

	tok, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			l.Warn("login_error", "status", 401, "reason", "invalid credentials")
			return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")
		}
		l.Error("login_error", "status", 500, "error", err)
		return err
	}

	return c.JSON(http.StatusOK, tok)
}

func (h *AuthHTTP) Profile(c echo.Context) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return auth.ErrBadCredentials
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{
		Message: fmt.Sprintf("Welcome %s to your profile!", user.Username),
	})
}
