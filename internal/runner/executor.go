package runner

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"lessonload/internal/catalog"
	"lessonload/internal/identity"
)

const (
	HeaderRunTag    = "X-Load-Test"
	HeaderSessionID = "X-Session-ID"

	maxBodySnippet = 4 << 10
)

// NewHTTPClient builds the shared client. Timeouts are applied per request
// through the context, and redirects are not followed so login cookies on a
// 3xx response stay visible.
func NewHTTPClient(maxConns int) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = maxConns
	t.MaxConnsPerHost = maxConns
	t.MaxIdleConnsPerHost = maxConns
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	return &http.Client{
		Transport: t,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Execute issues one catalog call on behalf of id.
func (r *Runner) Execute(ctx context.Context, ep catalog.Endpoint, id *identity.Identity) RequestResult {
	return r.do(ctx, ep.Name, ep.Method.String(), ep.Path, ep.Body, id)
}

func (r *Runner) do(ctx context.Context, name, method, path string, payload any, id *identity.Identity) RequestResult {
	res := RequestResult{Endpoint: name}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			res.Err = fmt.Errorf("encode body: %w", err)
			return res
		}
		body = bytes.NewReader(b)
	}

	ctx, cancel := context.WithTimeout(ctx, r.Cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, r.url(path), body)
	if err != nil {
		res.Err = err
		return res
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRunTag, fmt.Sprintf("%s-%s", r.pattern, id.Category))
	req.Header.Set(HeaderSessionID, id.Token)
	if id.Credential != "" {
		req.Header.Set("Cookie", id.Credential)
	}

	atomic.AddInt64(&r.inflight, 1)
	defer atomic.AddInt64(&r.inflight, -1)

	start := time.Now()
	resp, err := r.Client.Do(req)
	if err != nil {
		res.Elapsed = time.Since(start)
		if isTimeout(ctx, err) {
			res.Err = fmt.Errorf("%w after %s", ErrTimeout, r.Cfg.Timeout)
		} else {
			res.Err = err
		}
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	res.Cookie = credentialFrom(resp)
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySnippet))
		res.Body = string(b)
	}
	io.Copy(io.Discard, resp.Body)
	res.Elapsed = time.Since(start)
	return res
}

func (r *Runner) url(path string) string {
	return strings.TrimRight(r.Cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// credentialFrom folds every Set-Cookie of the response into one reusable
// Cookie header value.
func credentialFrom(resp *http.Response) string {
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Value == "" || c.MaxAge < 0 {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
