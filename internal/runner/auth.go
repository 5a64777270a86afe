package runner

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"lessonload/internal/identity"
)

const (
	RegisterPath = "/api/register"
	LoginPath    = "/api/login"

	authEndpoint = "authentication"
)

// RegisterOutcome classifies the registration response.
type RegisterOutcome int

const (
	RegisterCreated RegisterOutcome = iota
	RegisterExists
	RegisterError
)

func (o RegisterOutcome) String() string {
	switch o {
	case RegisterCreated:
		return "created"
	case RegisterExists:
		return "exists"
	}
	return "error"
}

// ClassifyRegister maps a registration response onto an outcome. 409 always
// means the user exists; a 400 only does when the body says so.
func ClassifyRegister(res RequestResult) RegisterOutcome {
	switch {
	case res.Err != nil:
		return RegisterError
	case res.StatusCode < 300:
		return RegisterCreated
	case res.StatusCode == http.StatusConflict:
		return RegisterExists
	case res.StatusCode == http.StatusBadRequest && mentionsExisting(res.Body):
		return RegisterExists
	}
	return RegisterError
}

func mentionsExisting(body string) bool {
	b := strings.ToLower(body)
	for _, marker := range []string{"exist", "taken", "duplicate", "already"} {
		if strings.Contains(b, marker) {
			return true
		}
	}
	return false
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Level    string `json:"level,omitempty"`
}

// AuthError is returned when no credential could be obtained. Key is the
// error frequency key recorded for the failure.
type AuthError struct {
	Key string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s: %v", e.Key, e.Err) }

func (e *AuthError) Unwrap() error { return e.Err }

// Authenticate registers id (tolerating an existing account) and logs it in,
// caching the session cookie on the identity.
func (r *Runner) Authenticate(ctx context.Context, id *identity.Identity) error {
	log := logrus.WithFields(logrus.Fields{"user": id.Username, "category": id.Category})

	creds := credentials{
		Username: id.Username,
		Password: r.Cfg.Password,
		Email:    id.Username + "@loadtest.local",
		Level:    id.Category.String(),
	}

	reg := r.do(ctx, "register", http.MethodPost, RegisterPath, creds, id)
	switch ClassifyRegister(reg) {
	case RegisterExists:
		log.WithField("status", reg.StatusCode).Debug("User already registered")
	case RegisterError:
		log.WithFields(logrus.Fields{
			"status": reg.StatusCode,
			"error":  reg.Err,
		}).Warn("Registration failed, attempting login anyway")
	}

	login := r.do(ctx, "login", http.MethodPost, LoginPath, credentials{
		Username: creds.Username,
		Password: creds.Password,
	}, id)
	switch {
	case login.Err != nil:
		return &AuthError{Key: authEndpoint + " (exception)", Err: login.Err}
	case login.StatusCode >= 400:
		return &AuthError{
			Key: fmt.Sprintf("%s: %d", authEndpoint, login.StatusCode),
			Err: fmt.Errorf("%w with status %d", ErrAuthRejected, login.StatusCode),
		}
	case login.Cookie == "":
		return &AuthError{Key: authEndpoint + ": no credential", Err: ErrNoCredential}
	}

	id.Credential = login.Cookie
	return nil
}
