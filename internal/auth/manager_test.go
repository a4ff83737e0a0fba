package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/blog-api/internal/auth"
	"github.com/yourusername/blog-api/internal/metrics"
	"github.com/yourusername/blog-api/internal/store"
	"github.com/yourusername/blog-api/internal/testutil"
)

type authHarness struct {
	router  *gin.Engine
	users   *store.Users
	manager *auth.Manager
	metrics *metrics.Metrics
	now     time.Time
}

func newAuthHarness(t *testing.T) *authHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &authHarness{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }

	db := testutil.NewSQLiteDB(t)
	h.users = store.New(db).Users
	h.metrics = metrics.New(prometheus.NewRegistry())

	sessionManager := auth.NewSessionManager(auth.NewMemoryStore(clock), time.Hour, auth.WithClock(clock))
	h.manager = auth.NewManager(auth.Options{
		Users:    h.users,
		Sessions: sessionManager,
		Limits:   auth.DefaultLoginLimits,
		Metrics:  h.metrics,
		Logger:   testutil.DiscardLogger(),
		Now:      clock,
	})

	router := gin.New()
	router.Use(sessions.Sessions("blog_session", cookie.NewStore([]byte("test-secret-0123456789abcdef0123456789"))))
	router.POST("/signup", h.manager.Signup)
	router.POST("/login", h.manager.Login)
	router.DELETE("/logout", h.manager.Logout)
	router.GET("/me", h.manager.RequireLogin(), func(c *gin.Context) {
		id, ok := auth.CurrentUserID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})
	h.router = router
	return h
}

func (h *authHarness) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "blog_session" {
			return c
		}
	}
	t.Fatalf("no session cookie in response: %v", rec.Header())
	return nil
}

func (h *authHarness) signup(t *testing.T, name, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	return h.do(testutil.NewJSONRequest(t, http.MethodPost, "/signup", map[string]string{
		"name": name, "email": email, "password": password,
	}))
}

func (h *authHarness) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	return h.do(testutil.NewJSONRequest(t, http.MethodPost, "/login", map[string]string{
		"email": email, "password": password,
	}))
}

func TestSignupCreatesUserAndSession(t *testing.T) {
	h := newAuthHarness(t)

	rec := h.signup(t, "Ada", "ada@example.com", "secret")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Message string            `json:"message"`
		User    map[string]string `json:"user"`
	}
	testutil.DecodeJSON(t, rec, &body)
	assert.Equal(t, "User created!", body.Message)
	assert.Equal(t, map[string]string{"name": "Ada", "email": "ada@example.com"}, body.User)
	assert.NotContains(t, rec.Body.String(), "password")

	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	me := h.do(httptest.NewRequest(http.MethodGet, "/me", nil), cookie)
	assert.Equal(t, http.StatusOK, me.Code)

	stored, err := h.users.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", stored.PasswordHash)
	assert.True(t, auth.VerifyPassword("secret", stored.PasswordHash))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(h.metrics.SignupsTotal))
}

func TestSignupValidation(t *testing.T) {
	h := newAuthHarness(t)

	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{name: "missing email", body: map[string]string{"name": "A", "password": "p"}, want: "email is required"},
		{name: "bad email", body: map[string]string{"name": "A", "email": "nope", "password": "p"}, want: "email must be a valid email address"},
		{name: "missing password", body: map[string]string{"name": "A", "email": "a@example.com"}, want: "password is required"},
		{name: "missing name", body: map[string]string{"email": "a@example.com", "password": "p"}, want: "name is required"},
		{name: "multibyte password over 72 bytes", body: map[string]string{"name": "Kei", "email": "kei@example.com", "password": strings.Repeat("日", 30)}, want: "password must be at most 72 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(testutil.NewJSONRequest(t, http.MethodPost, "/signup", tt.body))
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

			var body struct {
				Code   string   `json:"code"`
				Errors []string `json:"errors"`
			}
			testutil.DecodeJSON(t, rec, &body)
			assert.Equal(t, "VALIDATION_ERROR", body.Code)
			assert.Contains(t, body.Errors, tt.want)
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	h := newAuthHarness(t)

	require.Equal(t, http.StatusCreated, h.signup(t, "Ada", "ada@example.com", "secret").Code)
	rec := h.signup(t, "Other", "ada@example.com", "different")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Errors []string `json:"errors"`
	}
	testutil.DecodeJSON(t, rec, &body)
	assert.Equal(t, []string{"email must be unique"}, body.Errors)
}

func TestLoginSuccess(t *testing.T) {
	h := newAuthHarness(t)
	require.Equal(t, http.StatusCreated, h.signup(t, "Ada", "ada@example.com", "secret").Code)

	rec := h.login(t, "ada@example.com", "secret")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Message string            `json:"message"`
		User    map[string]string `json:"user"`
	}
	testutil.DecodeJSON(t, rec, &body)
	assert.Equal(t, "Logged in successfully", body.Message)
	assert.Equal(t, "Ada", body.User["name"])

	me := h.do(httptest.NewRequest(http.MethodGet, "/me", nil), sessionCookie(t, rec))
	assert.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(h.metrics.LoginsTotal.WithLabelValues(metrics.LoginSucceeded)))
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	h := newAuthHarness(t)
	require.Equal(t, http.StatusCreated, h.signup(t, "Ada", "ada@example.com", "secret").Code)

	wrongPassword := h.login(t, "ada@example.com", "wrong")
	unknownEmail := h.login(t, "nobody@example.com", "secret")

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.JSONEq(t, wrongPassword.Body.String(), unknownEmail.Body.String())
	assert.JSONEq(t, `{"code":"INVALID_CREDENTIALS","message":"Incorrect credentials"}`, wrongPassword.Body.String())

	for _, c := range wrongPassword.Result().Cookies() {
		assert.NotEqual(t, "blog_session", c.Name, "failed login must not set a session cookie")
	}
}

func TestLoginLockout(t *testing.T) {
	h := newAuthHarness(t)
	require.Equal(t, http.StatusCreated, h.signup(t, "Ada", "ada@example.com", "secret").Code)

	for i := 0; i < auth.DefaultLoginLimits.MaxAttempts; i++ {
		require.Equal(t, http.StatusUnauthorized, h.login(t, "ada@example.com", "wrong").Code)
	}

	rec := h.login(t, "ada@example.com", "secret")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "600", rec.Header().Get("Retry-After"))

	h.now = h.now.Add(auth.DefaultLoginLimits.Lock)
	assert.Equal(t, http.StatusOK, h.login(t, "ada@example.com", "secret").Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	h := newAuthHarness(t)
	rec := h.signup(t, "Ada", "ada@example.com", "secret")
	require.Equal(t, http.StatusCreated, rec.Code)
	cookie := sessionCookie(t, rec)

	out := h.do(httptest.NewRequest(http.MethodDelete, "/logout", nil), cookie)
	require.Equal(t, http.StatusOK, out.Code)
	assert.JSONEq(t, `{"message":"Logged out"}`, out.Body.String())
	assert.True(t, sessionCookie(t, out).MaxAge < 0, "logout should expire the cookie")

	// 古いCookieを再送してもサーバー側で破棄済み
	me := h.do(httptest.NewRequest(http.MethodGet, "/me", nil), cookie)
	assert.Equal(t, http.StatusUnauthorized, me.Code)
	assert.JSONEq(t, `{"code":"UNAUTHORIZED","message":"You must be logged in to view this page."}`, me.Body.String())
}

func TestLogoutWithoutSession(t *testing.T) {
	h := newAuthHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodDelete, "/logout", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	h := newAuthHarness(t)
	rec := h.signup(t, "Ada", "ada@example.com", "secret")
	require.Equal(t, http.StatusCreated, rec.Code)
	cookie := sessionCookie(t, rec)

	h.now = h.now.Add(59 * time.Minute)
	assert.Equal(t, http.StatusOK, h.do(httptest.NewRequest(http.MethodGet, "/me", nil), cookie).Code)

	h.now = h.now.Add(time.Minute)
	assert.Equal(t, http.StatusUnauthorized, h.do(httptest.NewRequest(http.MethodGet, "/me", nil), cookie).Code)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(h.metrics.SessionsRejected))
}

func TestRequireLoginWithoutCookie(t *testing.T) {
	h := newAuthHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginReplacesPreviousSession(t *testing.T) {
	h := newAuthHarness(t)
	signup := h.signup(t, "Ada", "ada@example.com", "secret")
	require.Equal(t, http.StatusCreated, signup.Code)
	first := sessionCookie(t, signup)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/login", map[string]string{
		"email": "ada@example.com", "password": "secret",
	})
	login := h.do(req, first)
	require.Equal(t, http.StatusOK, login.Code)
	second := sessionCookie(t, login)

	assert.Equal(t, http.StatusUnauthorized, h.do(httptest.NewRequest(http.MethodGet, "/me", nil), first).Code)
	assert.Equal(t, http.StatusOK, h.do(httptest.NewRequest(http.MethodGet, "/me", nil), second).Code)
}

func TestSignupAcceptsPasswordOfExactly72Bytes(t *testing.T) {
	h := newAuthHarness(t)

	rec := h.signup(t, "Kei", "kei@example.com", strings.Repeat("日", 24))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusOK, h.login(t, "kei@example.com", strings.Repeat("日", 24)).Code)
}

type unavailableSessionStore struct{}

func (unavailableSessionStore) Get(context.Context, string) (*auth.Session, error) {
	return nil, errors.New("session store unavailable")
}

func (unavailableSessionStore) Set(context.Context, *auth.Session, time.Duration) error {
	return errors.New("session store unavailable")
}

func (unavailableSessionStore) Delete(context.Context, string) error { return nil }

func TestSignupSucceedsWhenSessionCannotBeStarted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := store.New(testutil.NewSQLiteDB(t)).Users
	manager := auth.NewManager(auth.Options{
		Users:    users,
		Sessions: auth.NewSessionManager(unavailableSessionStore{}, time.Hour),
		Logger:   testutil.DiscardLogger(),
	})

	router := gin.New()
	router.Use(sessions.Sessions("blog_session", cookie.NewStore([]byte("test-secret-0123456789abcdef0123456789"))))
	router.POST("/signup", manager.Signup)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/signup", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "secret",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		assert.NotEqual(t, "blog_session", c.Name, "no session cookie without a stored session")
	}

	stored, err := users.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.True(t, auth.VerifyPassword("secret", stored.PasswordHash))
}
