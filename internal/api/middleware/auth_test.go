package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/pantrylink/foodbank-api/internal/core/domain"
)

type stubAuthenticator struct {
	result domain.AuthResult
	calls  int
}

func (s *stubAuthenticator) Authenticate(context.Context, *http.Request) domain.AuthResult {
	s.calls++
	return s.result
}

func testCookies() CookieConfig {
	return CookieConfig{Path: "/", Secure: true, SameSite: http.SameSiteLaxMode}
}

func TestRequireAuth_OK(t *testing.T) {
	e := echo.New()
	principal := &domain.Principal{ID: "s1", Type: domain.PrincipalStaff, Role: domain.RoleStaff}
	auth := &stubAuthenticator{result: domain.AuthResult{Status: domain.AuthOK, Principal: principal}}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := RequireAuth(auth, testCookies())(func(c echo.Context) error {
		called = true
		if PrincipalFrom(c) != principal {
			t.Fatalf("principal not attached to context")
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
}

func TestRequireAuth_Missing(t *testing.T) {
	e := echo.New()
	auth := &stubAuthenticator{result: domain.AuthResult{Status: domain.AuthMissing}}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RequireAuth(auth, testCookies())(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), MsgMissingToken) {
		t.Fatalf("body %q missing %q", rec.Body.String(), MsgMissingToken)
	}
}

func TestRequireAuth_Invalid(t *testing.T) {
	e := echo.New()
	auth := &stubAuthenticator{result: domain.AuthResult{Status: domain.AuthInvalid}}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RequireAuth(auth, testCookies())(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), MsgInvalidToken) {
		t.Fatalf("body %q missing %q", rec.Body.String(), MsgInvalidToken)
	}
}

func TestRequireAuth_ExpiredClearsCookie(t *testing.T) {
	e := echo.New()
	auth := &stubAuthenticator{result: domain.AuthResult{Status: domain.AuthExpired}}
	cookies := testCookies()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RequireAuth(auth, cookies)(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), MsgTokenExpired) {
		t.Fatalf("body %q missing %q", rec.Body.String(), MsgTokenExpired)
	}

	// The clearing cookie must carry the same attributes the session cookie
	// is set with; a mismatched path or SameSite silently fails to clear.
	var cleared *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "token" {
			cleared = ck
		}
	}
	if cleared == nil {
		t.Fatalf("no clearing Set-Cookie emitted")
	}
	if cleared.MaxAge >= 0 {
		t.Fatalf("cookie not expired: MaxAge=%d", cleared.MaxAge)
	}
	if cleared.Path != cookies.Path || cleared.Secure != cookies.Secure || cleared.SameSite != cookies.SameSite {
		t.Fatalf("clearing attributes mismatch set attributes: %+v", cleared)
	}
}

func TestOptionalAuth_MissingContinuesAnonymous(t *testing.T) {
	e := echo.New()
	auth := &stubAuthenticator{result: domain.AuthResult{Status: domain.AuthMissing}}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := OptionalAuth(auth, testCookies())(func(c echo.Context) error {
		called = true
		if PrincipalFrom(c) != nil {
			t.Fatalf("anonymous request must carry no principal")
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
}

func TestOptionalAuth_InvalidStillRejected(t *testing.T) {
	e := echo.New()
	auth := &stubAuthenticator{result: domain.AuthResult{Status: domain.AuthInvalid}}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := OptionalAuth(auth, testCookies())(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
