package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrBodyNotReplayable indicates a request body cannot be resent.
var ErrBodyNotReplayable = errors.New("request body is not replayable")

// fetchWithRetry dispatches the request, retrying only on transport-level
// failure. Any received HTTP status, 500s included, is a valid response and
// returns immediately; status-driven retries (CSRF, 401) belong to the
// pipeline above this layer.
//
// Delay before retry attempt k (0-indexed) is baseDelay·2^k. When all
// retries are exhausted the last transport error is returned, annotated
// with the attempt count.
func (c *Client) fetchWithRetry(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		current, err := cloneRequest(req, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(current)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt < c.retries {
			c.sleep(c.baseDelay * (1 << attempt))
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retries+1, lastErr)
}

// cloneRequest returns the request itself on the first attempt and a
// GetBody-backed clone afterwards, so every attempt sends identical bytes.
func cloneRequest(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 {
		return req, nil
	}
	if req.Body == nil {
		return req.Clone(req.Context()), nil
	}
	if req.GetBody == nil {
		return nil, ErrBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

func defaultSleep(d time.Duration) {
	time.Sleep(d)
}
