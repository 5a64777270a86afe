package dummy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("X-Session-ID", "test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegisterAndLogin(t *testing.T) {
	srv := NewServer(ServerConfig{})
	h := srv.Handler()
	creds := `{"username":"amy","password":"pw"}`

	assert.Equal(t, http.StatusCreated, post(t, h, "/api/register", creds).Code)
	dup := post(t, h, "/api/register", creds)
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Contains(t, dup.Body.String(), "already exists")
	assert.Equal(t, http.StatusBadRequest, post(t, h, "/api/register", `{}`).Code)

	assert.Equal(t, http.StatusUnauthorized, post(t, h, "/api/login", `{"username":"amy","password":"nope"}`).Code)

	login := post(t, h, "/api/login", creds)
	require.Equal(t, http.StatusOK, login.Code)
	cookies := login.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/api/lessons/3", nil)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	c := srv.Counters()
	assert.Equal(t, int64(6), c.Requests)
	assert.Equal(t, int64(1), c.Untagged)
	assert.Equal(t, int64(3), c.Registrations)
	assert.Equal(t, int64(2), c.Logins)
}

func TestRegisterValidatesLevel(t *testing.T) {
	h := NewServer(ServerConfig{}).Handler()

	assert.Equal(t, http.StatusCreated, post(t, h, "/api/register", `{"username":"di","password":"pw","level":"advanced"}`).Code)
	bad := post(t, h, "/api/register", `{"username":"ed","password":"pw","level":"expert"}`)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.NotContains(t, bad.Body.String(), "exist", "must not read as a duplicate user")
}

func TestContentRequiresSession(t *testing.T) {
	srv := NewServer(ServerConfig{})
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/progress", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), srv.Counters().Unauthorized)
}

func TestInjectedErrors(t *testing.T) {
	h := NewServer(ServerConfig{ErrorRate: 1}).Handler()
	creds := `{"username":"bo","password":"pw"}`
	post(t, h, "/api/register", creds)
	cookie := post(t, h, "/api/login", creds).Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodPost, "/api/quizzes/1/submit", strings.NewReader(`{}`))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRejectLogins(t *testing.T) {
	h := NewServer(ServerConfig{RejectLogins: true}).Handler()
	creds := `{"username":"cy","password":"pw"}`
	post(t, h, "/api/register", creds)
	assert.Equal(t, http.StatusUnauthorized, post(t, h, "/api/login", creds).Code)
}
