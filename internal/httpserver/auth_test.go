package httpserver

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/product_api/internal/models"
	"github.com/Skotchmaster/product_api/internal/tokens"
	"github.com/Skotchmaster/product_api/internal/transport"
)

func TestHome(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello from the product catalog API", decode[map[string]string](t, rec)["message"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health/ready", "", nil).Code)
}

func TestSignupLoginProfile(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/signup?username=alice&email=alice@example.com&password=s3cret", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "User created successfully", decode[map[string]string](t, rec)["message"])

	var stored models.User
	require.NoError(t, env.DB.Where("username = ?", "alice").First(&stored).Error)
	assert.Equal(t, models.RoleUser, stored.Role)
	assert.NotEqual(t, "s3cret", stored.HashedPassword)

	for _, login := range []string{"alice", "alice@example.com"} {
		rec = env.postForm("/login", url.Values{"username": {login}, "password": {"s3cret"}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		tok := decode[transport.TokenResponse](t, rec)
		assert.Equal(t, "bearer", tok.TokenType)
		require.NotEmpty(t, tok.AccessToken)

		rec = env.do(http.MethodGet, "/profile", tok.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Welcome alice to your profile!", decode[map[string]string](t, rec)["message"])
	}
}

func TestSignup_FormAndDuplicates(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postForm("/signup", url.Values{"username": {"bob"}, "email": {"bob@example.com"}, "password": {"pw"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.postForm("/signup", url.Values{"username": {"bob"}, "email": {"new@example.com"}, "password": {"pw"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username or email already registered", detail(t, rec))

	rec = env.postForm("/signup", url.Values{"username": {"robert"}, "email": {"bob@example.com"}, "password": {"pw"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.postForm("/signup", url.Values{"username": {"carol"}, "email": {"carol@example.com"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, detail(t, rec), "password")
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	rec := env.postForm("/signup", url.Values{"username": {"dave"}, "email": {"dave@example.com"}, "password": {"pw"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.postForm("/login", url.Values{"username": {"dave"}, "password": {"wrong"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect username or password", detail(t, rec))
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = env.postForm("/login", url.Values{"username": {"nobody"}, "password": {"pw"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect username or password", detail(t, rec))

	rec = env.postForm("/login", url.Values{"username": {"dave"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.postForm("/login", url.Values{"username": {"dave"}, "password": {"pw"}, "grant_type": {"client_credentials"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.postForm("/login", url.Values{"username": {"dave"}, "password": {"pw"}, "grant_type": {"password"}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfile_RejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// valid signature but the subject has no account
	tok, _, err := env.Tokens.Issue("ghost@example.com")
	require.NoError(t, err)
	rec = env.do(http.MethodGet, "/profile", tok, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Could not validate credentials", detail(t, rec))

	other, err := tokens.New(tokens.Config{Secret: []byte("other"), TTL: time.Minute})
	require.NoError(t, err)
	env.userToken(t)
	forged, _, err := other.Issue("user@example.com")
	require.NoError(t, err)
	rec = env.do(http.MethodGet, "/profile", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
