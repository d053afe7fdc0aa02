package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// apiStub is a wire-level fake of the platform's session endpoints plus one
// protected resource. Protected requests 401 until a refresh lands.
type apiStub struct {
	mux *http.ServeMux

	csrfFetches  atomic.Int32
	refreshCalls atomic.Int32
	dataHits     atomic.Int32

	refreshed     atomic.Bool
	refreshStatus int
	refreshDelay  time.Duration

	// firstWave releases the initial burst of protected requests together so
	// their 401s land simultaneously.
	firstWave *sync.WaitGroup
}

func newAPIStub() *apiStub {
	s := &apiStub{mux: http.NewServeMux(), refreshStatus: http.StatusNoContent}

	s.mux.HandleFunc("GET /auth/csrf", func(w http.ResponseWriter, r *http.Request) {
		n := s.csrfFetches.Add(1)
		fmt.Fprintf(w, `{"csrfToken":"csrf-%d"}`, n)
	})

	s.mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls.Add(1)
		if s.refreshDelay > 0 {
			time.Sleep(s.refreshDelay)
		}
		if s.refreshStatus == http.StatusUnauthorized {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Invalid token"}`)
			return
		}
		s.refreshed.Store(true)
		w.WriteHeader(s.refreshStatus)
	})

	s.mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		s.dataHits.Add(1)
		if !s.refreshed.Load() {
			if s.firstWave != nil {
				s.firstWave.Done()
				s.firstWave.Wait()
			}
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Token expired"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"ok":true}`)
	})

	return s
}

func newStubClient(t *testing.T, stub *apiStub, opts Options) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(stub.mux)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL
	if opts.HTTPClient == nil {
		opts.HTTPClient = srv.Client()
	}
	c := New(opts)
	c.sleep = func(time.Duration) {}
	return c, srv
}

func TestDo_ConcurrentUnauthorizedSharesOneRefresh(t *testing.T) {
	const callers = 5

	stub := newAPIStub()
	stub.refreshDelay = 100 * time.Millisecond
	stub.firstWave = &sync.WaitGroup{}
	stub.firstWave.Add(callers)

	c, srv := newStubClient(t, stub, Options{})

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/data", nil)
			resp, err := c.Do(req)
			if err != nil {
				errs <- err
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				errs <- fmt.Errorf("status %d", resp.StatusCode)
				return
			}
			errs <- nil
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("caller failed: %v", err)
		}
	}

	if n := stub.refreshCalls.Load(); n != 1 {
		t.Fatalf("expected exactly 1 refresh on the wire, got %d", n)
	}
	// Each caller's original request plus exactly one retry.
	if n := stub.dataHits.Load(); n != 2*callers {
		t.Fatalf("expected %d data requests, got %d", 2*callers, n)
	}
}

func TestDo_RefreshConflictCountsAsSuccess(t *testing.T) {
	stub := newAPIStub()
	stub.refreshStatus = http.StatusConflict

	c, srv := newStubClient(t, stub, Options{})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/data", nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("a 409 refresh means another caller rotated for us; expected 200, got %d", resp.StatusCode)
	}
}

func TestDo_RefreshFailureTerminates(t *testing.T) {
	stub := newAPIStub()
	stub.refreshStatus = http.StatusUnauthorized

	var cleared, navigated atomic.Bool
	var target string
	c, srv := newStubClient(t, stub, Options{
		ClearSession: func() { cleared.Store(true) },
		Navigate: func(path string) {
			navigated.Store(true)
			target = path
		},
		CurrentPath: func() string { return "/clients/c1" },
	})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/data", nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	// The original 401 surfaces; the pipeline never swallows the response.
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected the original 401, got %d", resp.StatusCode)
	}
	if !cleared.Load() {
		t.Fatalf("session state must be cleared on terminal auth failure")
	}
	if !navigated.Load() || target != "/login" {
		t.Fatalf("expected redirect to /login, got navigated=%v target=%q", navigated.Load(), target)
	}
}

func TestDo_RedirectSuppressedOnAuthPages(t *testing.T) {
	for _, page := range []string{"/login", "/set-password"} {
		t.Run(page, func(t *testing.T) {
			stub := newAPIStub()
			stub.refreshStatus = http.StatusUnauthorized

			var cleared, navigated atomic.Bool
			c, srv := newStubClient(t, stub, Options{
				ClearSession: func() { cleared.Store(true) },
				Navigate:     func(string) { navigated.Store(true) },
				CurrentPath:  func() string { return page },
			})

			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/data", nil)
			resp, err := c.Do(req)
			if err != nil {
				t.Fatalf("do: %v", err)
			}
			resp.Body.Close()

			if !cleared.Load() {
				t.Fatalf("session must still be cleared on %s", page)
			}
			if navigated.Load() {
				t.Fatalf("redirect must be suppressed while on %s", page)
			}
		})
	}
}

func TestDo_RefreshEndpointUnauthorizedIsTerminal(t *testing.T) {
	stub := newAPIStub()
	stub.refreshStatus = http.StatusUnauthorized

	var cleared atomic.Bool
	c, srv := newStubClient(t, stub, Options{
		ClearSession: func() { cleared.Store(true) },
	})

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/auth/refresh", nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if !cleared.Load() {
		t.Fatalf("a 401 from the refresh endpoint itself is terminal")
	}
	// No nested refresh is attempted for the refresh endpoint's own 401.
	if n := stub.refreshCalls.Load(); n != 1 {
		t.Fatalf("expected 1 refresh request, got %d", n)
	}
}

func TestDo_CSRFRejectionRefetchesOnce(t *testing.T) {
	var csrfFetches, submits atomic.Int32
	var tokens []string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/csrf", func(w http.ResponseWriter, r *http.Request) {
		n := csrfFetches.Add(1)
		fmt.Fprintf(w, `{"csrfToken":"csrf-%d"}`, n)
	})
	mux.HandleFunc("POST /submit", func(w http.ResponseWriter, r *http.Request) {
		submits.Add(1)
		tokens = append(tokens, r.Header.Get("X-CSRF-Token"))
		if r.Header.Get("X-CSRF-Token") != "csrf-2" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"Invalid CSRF token"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/submit", nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected success after token refetch, got %d", resp.StatusCode)
	}
	if n := csrfFetches.Load(); n != 2 {
		t.Fatalf("expected initial fetch plus one refetch, got %d", n)
	}
	if submits.Load() != 2 || tokens[0] != "csrf-1" || tokens[1] != "csrf-2" {
		t.Fatalf("expected one retry carrying the fresh token, got %d submits, tokens %v", submits.Load(), tokens)
	}
}

func TestDo_SecondCSRFRejectionSurfaces(t *testing.T) {
	var csrfFetches, submits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/csrf", func(w http.ResponseWriter, r *http.Request) {
		n := csrfFetches.Add(1)
		fmt.Fprintf(w, `{"csrfToken":"csrf-%d"}`, n)
	})
	mux.HandleFunc("POST /submit", func(w http.ResponseWriter, r *http.Request) {
		submits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"Invalid CSRF token"}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/submit", nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("second rejection must surface, got %d", resp.StatusCode)
	}
	// Bounded at two submit attempts; the pipeline never loops on CSRF.
	if submits.Load() != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", submits.Load())
	}
}

func TestDo_CSRFRetryUnauthorizedTakesRefreshPath(t *testing.T) {
	stub := newAPIStub()

	var submits atomic.Int32
	stub.mux.HandleFunc("POST /submit", func(w http.ResponseWriter, r *http.Request) {
		submits.Add(1)
		// The first token is stale; the session is expired until the
		// refresh lands.
		if r.Header.Get("X-CSRF-Token") == "csrf-1" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"Invalid CSRF token"}`)
			return
		}
		if !stub.refreshed.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Token expired"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	c, srv := newStubClient(t, stub, Options{})

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/submit", nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("a 401 on the CSRF retry must still take the refresh path, got %d", resp.StatusCode)
	}
	if n := submits.Load(); n != 3 {
		t.Fatalf("expected original + CSRF retry + post-refresh retry, got %d attempts", n)
	}
	if n := stub.refreshCalls.Load(); n != 1 {
		t.Fatalf("expected 1 refresh, got %d", n)
	}
	if n := stub.csrfFetches.Load(); n != 2 {
		t.Fatalf("expected initial fetch plus one refetch, got %d", n)
	}
}

func TestDo_AuthorizationForbiddenPassesThrough(t *testing.T) {
	var submits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/csrf", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"csrfToken":"csrf-1"}`)
	})
	mux.HandleFunc("POST /submit", func(w http.ResponseWriter, r *http.Request) {
		submits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"Forbidden"}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/submit", nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if submits.Load() != 1 {
		t.Fatalf("an authorization 403 must not trigger a retry, got %d attempts", submits.Load())
	}
	// The peeked body is restored for the caller.
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("Forbidden")) {
		t.Fatalf("response body not restored: %q", body)
	}
}

func TestDo_MultipartBodyReplayedAfterRefresh(t *testing.T) {
	stub := newAPIStub()

	var bodies [][]byte
	stub.mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, body)
		if !stub.refreshed.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Token expired"}`)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	c, srv := newStubClient(t, stub, Options{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("manifest", "deliveries.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fmt.Fprintln(fw, "client_id,route\nc1,north")
	mw.Close()
	want := buf.Bytes()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/upload", bytes.NewReader(want))
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after refresh and retry, got %d", resp.StatusCode)
	}
	if len(bodies) != 2 {
		t.Fatalf("expected 2 upload attempts, got %d", len(bodies))
	}
	if !bytes.Equal(bodies[0], want) || !bytes.Equal(bodies[1], want) {
		t.Fatalf("retried upload must send byte-identical content")
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(Options{BaseURL: "http://api.test"})
	if c.retries != 0 {
		t.Fatalf("default retries should be 0, got %d", c.retries)
	}
	if c.baseDelay != 250*time.Millisecond {
		t.Fatalf("default base delay wrong: %v", c.baseDelay)
	}
	if c.httpClient == nil || c.httpClient.Jar == nil {
		t.Fatalf("default client must carry a cookie jar for session cookies")
	}

	c = New(Options{Retries: -3})
	if c.retries != 0 {
		t.Fatalf("negative retries must clamp to 0, got %d", c.retries)
	}
}
