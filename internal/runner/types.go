package runner

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"lessonload/internal/catalog"
	"lessonload/internal/pattern"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNoCredential means login answered without a session cookie.
	ErrNoCredential = errors.New("login response carried no session credential")
	ErrAuthRejected = errors.New("login rejected")
	ErrTimeout      = errors.New("request timed out")
)

type Config struct {
	BaseURL string

	// TotalUsers wins over UsersPerCategory when both are set.
	TotalUsers       int
	UsersPerCategory int

	Coverage    float64 // percent of applicable endpoints per session
	Concurrency int
	Timeout     time.Duration
	Pacing      time.Duration

	Pattern         string
	TargetScenarios int
	Duration        time.Duration // soak wall clock
	Seed            int64

	Password         string
	UsernameTemplate string

	MinSuccessRate   float64
	MaxAvgResponseMs float64

	Live bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "http://localhost:8080",
		UsersPerCategory: 100,
		Coverage:         90,
		Concurrency:      50,
		Timeout:          10 * time.Second,
		Pacing:           100 * time.Millisecond,
		Pattern:          string(pattern.Standard),
		TargetScenarios:  300,
		Duration:         10 * time.Minute,
		Password:         "LoadTest123!",
		UsernameTemplate: "loadtest_{{.Category}}_{{.Index}}_{{.RunID}}",
		MinSuccessRate:   95,
		MaxAvgResponseMs: 1000,
	}
}

// IdentityCount is the pool size the configuration asks for.
func (c Config) IdentityCount() int {
	if c.TotalUsers > 0 {
		return c.TotalUsers
	}
	return c.UsersPerCategory * len(catalog.Tiers)
}

// PatternName returns the parsed load pattern.
func (c Config) PatternName() (pattern.Name, error) {
	return pattern.ParseName(c.Pattern)
}

func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base URL %q must be absolute", ErrInvalidConfig, c.BaseURL)
	}
	if c.TotalUsers < 0 || c.UsersPerCategory < 0 {
		return fmt.Errorf("%w: user counts must not be negative", ErrInvalidConfig)
	}
	if c.Coverage <= 0 || c.Coverage > 100 {
		return fmt.Errorf("%w: coverage %.1f%% outside (0, 100]", ErrInvalidConfig, c.Coverage)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be positive", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if c.Pacing < 0 {
		return fmt.Errorf("%w: pacing must not be negative", ErrInvalidConfig)
	}
	name, err := c.PatternName()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if name == pattern.Soak && c.Duration <= 0 {
		return fmt.Errorf("%w: soak needs a positive duration", ErrInvalidConfig)
	}
	if c.TargetScenarios < 0 {
		return fmt.Errorf("%w: target scenarios must not be negative", ErrInvalidConfig)
	}
	if _, err := NewNamer(c.UsernameTemplate, ""); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// RequestResult is the outcome of one call. Classification of HTTP status is
// left to the caller.
type RequestResult struct {
	Endpoint   string
	StatusCode int
	Elapsed    time.Duration
	Err        error

	// Cookie is the normalised session credential found on the response, if any.
	Cookie string
	// Body holds the start of non-2xx response bodies.
	Body string
}

// Failed reports a transport error or an HTTP status of 400 and above.
func (r RequestResult) Failed() bool {
	return r.Err != nil || r.StatusCode >= 400
}

// ErrorKey is the frequency-table key for a failed call.
func ErrorKey(endpoint string, r RequestResult) string {
	if r.Err != nil {
		return endpoint + " (exception)"
	}
	return fmt.Sprintf("%s: %d", endpoint, r.StatusCode)
}
