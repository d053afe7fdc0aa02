// Package apiclient is the resilient HTTP pipeline for talking to the
// food-bank platform API. Every outbound request gets CSRF-token
// attachment, a transparent single-flight session refresh on 401, and
// bounded retry on transport failure. Terminal auth failures clear local
// session state and send the user to the login page.
package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	csrfPath        = "/auth/csrf"
	refreshPath     = "/auth/refresh"
	loginPage       = "/login"
	setPasswordPage = "/set-password"

	csrfHeader = "X-CSRF-Token"

	msgInvalidCSRF = "Invalid CSRF token"

	// maxPeekBody bounds how much of an error response is read when
	// inspecting its message.
	maxPeekBody = 1 << 20
)

// ErrRefreshFailed indicates the session could not be refreshed; local
// session state has been cleared.
var ErrRefreshFailed = errors.New("session refresh failed")

// Options configures a Client. Zero-value hooks are safe: a nil Navigate or
// ClearSession is a no-op, a nil CurrentPath never suppresses redirects.
type Options struct {
	// BaseURL is the API origin, e.g. "https://ops.foodbank.example".
	BaseURL string
	// HTTPClient is the underlying transport client. Defaults to a client
	// with a 30s timeout.
	HTTPClient *http.Client
	// Retries is the number of additional attempts on transport failure.
	Retries int
	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration

	// Navigate changes the current page, used to send the user to login on
	// terminal auth failure.
	Navigate func(path string)
	// CurrentPath reports the current page, used to suppress the login
	// redirect while the user is already authenticating.
	CurrentPath func() string
	// ClearSession drops local session state (cached identity, etc.).
	ClearSession func()
}

// Client is the request pipeline. The CSRF token cache and the in-flight
// refresh slot are per-Client; two Clients in one process do not share
// state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	baseDelay  time.Duration
	sleep      func(time.Duration)

	csrf csrfCache

	// refreshGroup holds at most one in-flight refresh; concurrent 401
	// observers join it and share its outcome.
	refreshGroup singleflight.Group

	navigate     func(string)
	currentPath  func() string
	clearSession func()
}

// New builds a Client from options.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// A cookie jar is required: the session and refresh tokens travel
		// as cookies set by the login and refresh endpoints.
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{Timeout: 30 * time.Second, Jar: jar}
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	return &Client{
		baseURL:      opts.BaseURL,
		httpClient:   httpClient,
		retries:      retries,
		baseDelay:    baseDelay,
		sleep:        defaultSleep,
		navigate:     opts.Navigate,
		currentPath:  opts.CurrentPath,
		clearSession: opts.ClearSession,
	}
}

// Do sends the request through the full pipeline:
//
//	ensure CSRF token → attach header → dispatch →
//	on CSRF 403: refetch token, retry once →
//	on 401: single-flight refresh, retry once →
//	on terminal failure: clear session, redirect to login.
//
// Bodies are buffered before the first send so a retried request carries
// identical bytes even though the caller's reader was consumed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := bufferBody(req); err != nil {
		return nil, err
	}

	token, err := c.ensureCSRFToken(req)
	if err != nil {
		return nil, err
	}
	req.Header.Set(csrfHeader, token)

	resp, err := c.fetchWithRetry(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusForbidden {
		return c.handleCSRFRejection(req, resp)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return c.handleUnauthorized(req, resp)
	}
	return resp, nil
}

// handleCSRFRejection refetches the anti-forgery token and retries exactly
// once. Any other 403, and a second CSRF 403, surface as-is.
func (c *Client) handleCSRFRejection(req *http.Request, resp *http.Response) (*http.Response, error) {
	msg, restored := peekMessage(resp)
	if msg != msgInvalidCSRF {
		return restored, nil
	}

	c.invalidateCSRFToken()
	token, err := c.fetchCSRFToken(req)
	if err != nil {
		return restored, nil
	}

	retry, err := cloneRequest(req, 1)
	if err != nil {
		return restored, nil
	}
	retry.Header.Set(csrfHeader, token)

	restored.Body.Close()
	retried, err := c.fetchWithRetry(retry)
	if err != nil {
		return nil, err
	}
	// The retried request may hit an expired session; it still gets the
	// refresh path. Bounded: one CSRF retry plus one post-refresh retry.
	if retried.StatusCode == http.StatusUnauthorized {
		return c.handleUnauthorized(retry, retried)
	}
	return retried, nil
}

// handleUnauthorized coordinates the shared refresh slot and retries the
// original request once after a successful (or concurrently completed)
// refresh. A 401 from the refresh endpoint itself, or a failed refresh, is
// terminal: clear session state and go to login.
func (c *Client) handleUnauthorized(req *http.Request, resp *http.Response) (*http.Response, error) {
	if req.URL.Path == refreshPath {
		c.terminate()
		return resp, nil
	}

	_, err, _ := c.refreshGroup.Do("session-refresh", func() (interface{}, error) {
		return nil, c.refreshSession(req)
	})
	if err != nil {
		c.terminate()
		return resp, nil
	}

	retry, cloneErr := cloneRequest(req, 1)
	if cloneErr != nil {
		return resp, nil
	}
	resp.Body.Close()
	return c.fetchWithRetry(retry)
}

// refreshSession performs one refresh call. 200, 204 and 409 all count as
// success: a 409 means another caller already rotated the token, which
// leaves us with a fresh session regardless.
func (c *Client) refreshSession(orig *http.Request) error {
	req, err := http.NewRequestWithContext(orig.Context(), http.MethodPost, c.baseURL+refreshPath, nil)
	if err != nil {
		return err
	}
	if token, ok := c.csrf.get(); ok {
		req.Header.Set(csrfHeader, token)
	}

	resp, err := c.fetchWithRetry(req)
	if err != nil {
		// A transport failure during refresh is terminal for this chain;
		// refresh is never retried beyond fetchWithRetry's own attempts.
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusConflict:
		return nil
	default:
		return fmt.Errorf("%w: status %d", ErrRefreshFailed, resp.StatusCode)
	}
}

// terminate clears local session state and sends the user to the login
// page, unless they are already on the login or set-password page.
func (c *Client) terminate() {
	if c.clearSession != nil {
		c.clearSession()
	}
	if c.navigate == nil {
		return
	}
	if c.currentPath != nil {
		switch c.currentPath() {
		case loginPage, setPasswordPage:
			return
		}
	}
	c.navigate(loginPage)
}

// bufferBody makes the request body replayable: the whole body is read once
// up front and every send, first included, reads from its own copy.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.GetBody != nil {
		return nil
	}
	buf, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return err
	}
	req.Body = io.NopCloser(bytes.NewReader(buf))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}
	req.ContentLength = int64(len(buf))
	return nil
}

// peekMessage reads an error response's message field and returns the
// response with its body restored for the eventual caller.
func peekMessage(resp *http.Response) (string, *http.Response) {
	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxPeekBody))
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(buf))
	if err != nil {
		return "", resp
	}
	var envelope struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(buf, &envelope) != nil {
		return "", resp
	}
	return envelope.Message, resp
}
