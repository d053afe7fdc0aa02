package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// csrfCache holds the process-wide (per Client) anti-forgery token behind an
// explicit accessor so tests can reset it and two embedded clients never
// share state.
type csrfCache struct {
	mu    sync.Mutex
	token string
}

func (c *csrfCache) get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.token != ""
}

func (c *csrfCache) set(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *csrfCache) clear() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// ensureCSRFToken returns the cached token, fetching it once when absent.
// The token lives in memory only; it is never persisted.
func (c *Client) ensureCSRFToken(orig *http.Request) (string, error) {
	if token, ok := c.csrf.get(); ok {
		return token, nil
	}
	return c.fetchCSRFToken(orig)
}

func (c *Client) invalidateCSRFToken() {
	c.csrf.clear()
}

// fetchCSRFToken calls the csrf endpoint and caches the result.
func (c *Client) fetchCSRFToken(orig *http.Request) (string, error) {
	req, err := http.NewRequestWithContext(orig.Context(), http.MethodGet, c.baseURL+csrfPath, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.fetchWithRetry(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("csrf token fetch: status %d", resp.StatusCode)
	}

	var payload struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("csrf token fetch: %w", err)
	}
	if payload.CSRFToken == "" {
		return "", fmt.Errorf("csrf token fetch: empty token")
	}

	c.csrf.set(payload.CSRFToken)
	return payload.CSRFToken, nil
}
