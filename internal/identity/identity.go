package identity

import (
	"time"

	"lessonload/internal/catalog"
)

// Metrics is the per-identity record. It is owned by the session currently
// simulating the identity and is never shared across goroutines.
type Metrics struct {
	Completed     int
	Failed        int
	TotalResponse time.Duration
	MinResponse   time.Duration
	MaxResponse   time.Duration
	VisitedNames  []string
	Errors        []string
	ScenariosRun  int
}

// Requests is the number of calls recorded for the identity.
func (m *Metrics) Requests() int {
	return m.Completed + m.Failed
}

// RecordSuccess notes a successful call to the named endpoint. Only
// successful calls contribute to the response time figures.
func (m *Metrics) RecordSuccess(name string, elapsed time.Duration) {
	m.Completed++
	m.visit(name)
	m.TotalResponse += elapsed
	if m.MinResponse == 0 || elapsed < m.MinResponse {
		m.MinResponse = elapsed
	}
	if elapsed > m.MaxResponse {
		m.MaxResponse = elapsed
	}
}

// RecordFailure notes a failed call and the error key describing it.
func (m *Metrics) RecordFailure(name string, key string) {
	m.Failed++
	m.visit(name)
	m.Errors = append(m.Errors, key)
}

func (m *Metrics) visit(name string) {
	if name != "" {
		m.VisitedNames = append(m.VisitedNames, name)
	}
}

// Identity is one simulated user.
type Identity struct {
	ID       string
	Username string
	Category catalog.Category
	// Token correlates every request of this identity on the server side.
	Token     string
	StartedAt time.Time

	// Credential is the reusable Cookie header value, empty until login succeeds.
	Credential string
	// AuthFailed is set once authentication has been given up on.
	AuthFailed bool

	Metrics Metrics
}

// Authenticated reports whether a session credential is cached.
func (id *Identity) Authenticated() bool {
	return id.Credential != ""
}
