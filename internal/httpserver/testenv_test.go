package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/product_api/internal/logging"
	"github.com/Skotchmaster/product_api/internal/models"
	"github.com/Skotchmaster/product_api/internal/repo"
	"github.com/Skotchmaster/product_api/internal/service"
	"github.com/Skotchmaster/product_api/internal/testutil"
	"github.com/Skotchmaster/product_api/internal/tokens"
)

type testEnv struct {
	E      *echo.Echo
	DB     *gorm.DB
	Tokens *tokens.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb := testutil.NewDB(t)
	r := &repo.GormRepo{DB: gdb}

	ts, err := tokens.New(tokens.Config{Secret: []byte("test-secret"), Method: "HS256", TTL: 30 * time.Minute})
	require.NoError(t, err)

	e := NewEcho(logging.New("error", io.Discard), nil)
	Register(e, &Deps{
		CatalogHandler: &CatalogHTTP{Svc: service.NewCatalogService(r)},
		AuthHandler:    &AuthHTTP{Svc: service.NewAuthService(r, ts)},
		Tokens:         ts,
		DB:             r,
	})

	return &testEnv{E: e, DB: gdb, Tokens: ts}
}

// tokenFor seeds a user with the given role and returns a bearer token for it.
func (env *testEnv) tokenFor(t *testing.T, username, role string) string {
	t.Helper()
	u := testutil.SeedUser(t, env.DB, username, username+"@example.com", "pw", role)
	tok, _, err := env.Tokens.Issue(u.Email)
	require.NoError(t, err)
	return tok
}

func (env *testEnv) adminToken(t *testing.T) string {
	return env.tokenFor(t, "admin", models.RoleAdmin)
}

func (env *testEnv) userToken(t *testing.T) string {
	return env.tokenFor(t, "user", models.RoleUser)
}

func (env *testEnv) do(method, target, token string, body any) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["detail"]
}

func productBody(name string) map[string]any {
	return map[string]any{
		"name":        name,
		"description": "a " + name,
		"price":       9.5,
		"quantity":    3,
		"in_stock":    true,
	}
}
