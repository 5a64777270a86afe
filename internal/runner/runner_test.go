package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lessonload/internal/catalog"
	"lessonload/internal/dummy"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.ErrorLevel)
	os.Exit(m.Run())
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.TotalUsers = 30
	cfg.Concurrency = 10
	cfg.Coverage = 100
	cfg.Pacing = 0
	cfg.Timeout = 2 * time.Second
	cfg.TargetScenarios = 30
	return cfg
}

func platform(t *testing.T, cfg dummy.ServerConfig) (*dummy.Server, *httptest.Server) {
	t.Helper()
	srv := dummy.NewServer(cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func newRunner(t *testing.T, cfg Config) *Runner {
	t.Helper()
	r, err := NewRunner(cfg, nil, nil)
	require.NoError(t, err)
	return r
}

func identityRequests(r *Runner) int {
	total := 0
	for _, id := range r.Pool.Identities {
		total += id.Metrics.Requests()
	}
	return total
}

func TestRunAgainstHealthyPlatform(t *testing.T) {
	srv, ts := platform(t, dummy.ServerConfig{})
	r := newRunner(t, testConfig(ts.URL))

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	snap := res.Snapshot
	assert.Equal(t, uint64(30), snap.Scenarios)
	assert.Zero(t, snap.Fail)
	assert.Equal(t, 100.0, snap.SuccessRate())
	assert.Less(t, snap.AvgResponse(), time.Second)
	assert.Equal(t, []int{10, 10, 10}, res.Summary.BatchSizes)

	expected := 0
	for _, id := range r.Pool.Identities {
		expected += len(r.Selection(id.Category))
	}
	assert.Equal(t, uint64(expected), snap.Requests)
	assert.Equal(t, int(snap.Requests), identityRequests(r))

	c := srv.Counters()
	assert.Zero(t, c.Untagged, "every request carries the correlation header")
	assert.Zero(t, c.Unauthorized, "content calls carry the session cookie")
	assert.Equal(t, int64(30), c.Logins)

	for _, tier := range catalog.Tiers {
		assert.Equal(t, 10, res.ByTier[tier].Identities)
		assert.Equal(t, 10, res.ByTier[tier].Scenarios)
	}
}

func TestFailedCallsDoNotStopTraversal(t *testing.T) {
	_, ts := platform(t, dummy.ServerConfig{ErrorRate: 1})
	r := newRunner(t, testConfig(ts.URL))

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	snap := res.Snapshot
	assert.Equal(t, uint64(30), snap.Scenarios, "scenarios complete despite endpoint failures")
	// The health check is served outside the failing content handlers.
	assert.Equal(t, uint64(30), snap.Success)
	assert.Equal(t, snap.Requests-30, snap.Fail)
	assert.Equal(t, 30, snap.Errors["Lesson List: 500"])

	for _, id := range r.Pool.Identities {
		assert.Len(t, id.Metrics.Errors, len(r.Selection(id.Category))-1)
		assert.Contains(t, id.Metrics.Errors, "Quiz List: 500")
		assert.NotContains(t, id.Metrics.Errors, "Health Check: 500")
	}
	assert.Equal(t, int(snap.Requests), identityRequests(r))
}

func TestRejectedLoginSkipsTraversal(t *testing.T) {
	srv, ts := platform(t, dummy.ServerConfig{RejectLogins: true})
	r := newRunner(t, testConfig(ts.URL))

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	snap := res.Snapshot
	assert.Zero(t, snap.Scenarios)
	assert.Equal(t, uint64(30), snap.AuthFailures)
	assert.Equal(t, uint64(30), snap.Fail)
	assert.Equal(t, uint64(30), snap.Requests)
	assert.Equal(t, 30, snap.Errors["authentication: 401"])
	assert.Zero(t, srv.Counters().Unauthorized, "no content call after failed login")

	for _, id := range r.Pool.Identities {
		assert.True(t, id.AuthFailed)
		assert.False(t, id.Authenticated())
		assert.Equal(t, 1, id.Metrics.Failed)
	}
}

func TestUnreachablePlatform(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	r := newRunner(t, testConfig(url))
	id := r.Pool.Identities[0]

	got := r.Execute(context.Background(), r.Selection(id.Category)[0], id)
	assert.Zero(t, got.StatusCode)
	require.Error(t, got.Err)
	assert.NotEmpty(t, got.Err.Error())
	assert.True(t, got.Failed())

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	snap := res.Snapshot
	assert.Zero(t, snap.Success)
	assert.Equal(t, 0.0, snap.SuccessRate())
	assert.Equal(t, 30, snap.Errors["authentication (exception)"])
}

func TestExecuteTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.Timeout = 50 * time.Millisecond
	r := newRunner(t, cfg)
	id := r.Pool.Identities[0]

	start := time.Now()
	got := r.Execute(context.Background(), catalog.Endpoint{Name: "Lesson List", Path: "/api/lessons"}, id)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, got.StatusCode)
	assert.ErrorIs(t, got.Err, ErrTimeout)
	assert.Equal(t, "Lesson List (exception)", ErrorKey("Lesson List", got))
}

func TestExecuteReturnsStatusWithoutClassifying(t *testing.T) {
	headers := make(chan http.Header, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance"))
	}))
	defer ts.Close()

	r := newRunner(t, testConfig(ts.URL))
	id := r.Pool.Identities[0]
	id.Credential = "session=abc"

	got := r.Execute(context.Background(), catalog.Endpoint{Name: "Story List", Path: "/api/stories"}, id)
	require.NoError(t, got.Err)
	assert.Equal(t, http.StatusServiceUnavailable, got.StatusCode)
	assert.Equal(t, "maintenance", got.Body)
	assert.Equal(t, "Story List: 503", ErrorKey("Story List", got))

	seen := <-headers
	assert.Equal(t, "session=abc", seen.Get("Cookie"))
	assert.Equal(t, id.Token, seen.Get(HeaderSessionID))
	assert.Equal(t, "standard-"+id.Category.String(), seen.Get(HeaderRunTag))
}

func TestAuthenticateToleratesExistingUser(t *testing.T) {
	srv, ts := platform(t, dummy.ServerConfig{})
	r := newRunner(t, testConfig(ts.URL))
	id := r.Pool.Identities[0]

	require.NoError(t, r.Authenticate(context.Background(), id))
	first := id.Credential
	require.NotEmpty(t, first)
	assert.True(t, strings.HasPrefix(first, dummy.SessionCookie+"="))

	// Registering again hits 409, which must not block the login.
	id.Credential = ""
	require.NoError(t, r.Authenticate(context.Background(), id))
	assert.NotEmpty(t, id.Credential)
	assert.NotEqual(t, first, id.Credential)
	assert.Equal(t, int64(2), srv.Counters().Registrations)
}

func TestAuthenticateWithoutCredential(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	r := newRunner(t, testConfig(ts.URL))
	err := r.Authenticate(context.Background(), r.Pool.Identities[0])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCredential)

	var ae *AuthError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "authentication: no credential", ae.Key)
}

func TestAuthenticateRejected(t *testing.T) {
	_, ts := platform(t, dummy.ServerConfig{RejectLogins: true})
	r := newRunner(t, testConfig(ts.URL))

	id := r.Pool.Identities[0]
	err := r.Authenticate(context.Background(), id)
	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.Empty(t, id.Credential)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "authentication: 401", ae.Key)
}

func TestSoakReusesCachedCredentials(t *testing.T) {
	srv, ts := platform(t, dummy.ServerConfig{})
	cfg := testConfig(ts.URL)
	cfg.TotalUsers = 3
	cfg.Concurrency = 3
	cfg.Pattern = "soak"
	cfg.TargetScenarios = 9
	cfg.Duration = time.Minute
	cfg.Seed = 11
	r := newRunner(t, cfg)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(9), res.Snapshot.Scenarios)
	assert.Equal(t, int64(3), srv.Counters().Logins, "identities log in once and reuse the cookie")
	for _, id := range r.Pool.Identities {
		assert.Equal(t, 3, id.Metrics.ScenariosRun)
	}
}

func TestSoakEndsWhenNoIdentityCanAuthenticate(t *testing.T) {
	srv, ts := platform(t, dummy.ServerConfig{RejectLogins: true})
	cfg := testConfig(ts.URL)
	cfg.TotalUsers = 5
	cfg.Concurrency = 5
	cfg.Pattern = "soak"
	cfg.TargetScenarios = 100
	cfg.Duration = time.Minute
	r := newRunner(t, cfg)

	start := time.Now()
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 10*time.Second, "soak must not wait out its duration")
	assert.Equal(t, []int{5}, res.Summary.BatchSizes)
	assert.Equal(t, 5, res.Summary.Dispatched)
	assert.Equal(t, int64(5), srv.Counters().Logins)
	assert.Equal(t, uint64(5), res.Snapshot.AuthFailures)
	assert.Zero(t, res.Snapshot.Scenarios)
}

func TestAuthFailedIdentityIsNotRetried(t *testing.T) {
	srv, ts := platform(t, dummy.ServerConfig{RejectLogins: true})
	r := newRunner(t, testConfig(ts.URL))
	id := r.Pool.Identities[0]

	r.Simulate(context.Background(), id)
	r.Simulate(context.Background(), id)
	assert.Equal(t, int64(1), srv.Counters().Logins)
	assert.Equal(t, uint64(1), r.Stats.Snapshot().AuthFailures)
}

func TestCredentialNormalisation(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Add("Set-Cookie", "session=abc; Path=/; HttpOnly")
	resp.Header.Add("Set-Cookie", "csrf=xyz; Path=/")
	resp.Header.Add("Set-Cookie", "stale=; Max-Age=0")
	assert.Equal(t, "session=abc; csrf=xyz", credentialFrom(resp))

	assert.Empty(t, credentialFrom(&http.Response{Header: http.Header{}}))
}

func TestClassifyRegister(t *testing.T) {
	tests := []struct {
		name string
		res  RequestResult
		want RegisterOutcome
	}{
		{"created", RequestResult{StatusCode: 201}, RegisterCreated},
		{"conflict", RequestResult{StatusCode: 409}, RegisterExists},
		{"bad request for existing user", RequestResult{StatusCode: 400, Body: `{"error":"Username already taken"}`}, RegisterExists},
		{"malformed request", RequestResult{StatusCode: 400, Body: `{"error":"password too short"}`}, RegisterError},
		{"server error", RequestResult{StatusCode: 500}, RegisterError},
		{"transport", RequestResult{Err: errors.New("connection refused")}, RegisterError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRegister(tt.res))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	ok := DefaultConfig()
	require.NoError(t, ok.Validate())
	assert.Equal(t, 300, ok.IdentityCount())

	bad := map[string]func(*Config){
		"relative url":     func(c *Config) { c.BaseURL = "/api" },
		"zero concurrency": func(c *Config) { c.Concurrency = 0 },
		"zero coverage":    func(c *Config) { c.Coverage = 0 },
		"coverage over":    func(c *Config) { c.Coverage = 120 },
		"zero timeout":     func(c *Config) { c.Timeout = 0 },
		"unknown pattern":  func(c *Config) { c.Pattern = "burst" },
		"endless soak":     func(c *Config) { c.Pattern = "soak"; c.Duration = 0 },
		"broken template":  func(c *Config) { c.UsernameTemplate = "{{.Category" },
		"negative users":   func(c *Config) { c.TotalUsers = -1 },
	}
	for name, mutate := range bad {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestNamer(t *testing.T) {
	n, err := NewNamer("user_{{category}}_{{pad 3 .Index}}_{{runID}}", "r1")
	require.NoError(t, err)
	name, err := n.Name(catalog.CategoryAdvanced, 7)
	require.NoError(t, err)
	assert.Equal(t, "user_advanced_007_r1", name)

	_, err = NewNamer("  ", "r1")
	assert.Error(t, err)

	n, err = NewNamer("{{.Missing}}", "r1")
	require.NoError(t, err)
	_, err = n.Name(catalog.CategoryBeginner, 0)
	assert.Error(t, err)
}

func TestDefaultTemplateYieldsUniquePool(t *testing.T) {
	r := newRunner(t, testConfig("http://localhost:1"))
	seen := map[string]bool{}
	for _, id := range r.Pool.Identities {
		assert.False(t, seen[id.Username])
		seen[id.Username] = true
		assert.Contains(t, id.Username, r.RunID)
	}
}
