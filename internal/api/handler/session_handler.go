package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pantrylink/foodbank-api/internal/api/metrics"
	"github.com/pantrylink/foodbank-api/internal/api/middleware"
	"github.com/pantrylink/foodbank-api/internal/core/domain"
	"github.com/pantrylink/foodbank-api/internal/core/ports"
)

// RefreshRoute is the refresh endpoint path. The refresh cookie is scoped to
// it, and the client pipeline special-cases 401s from it.
const RefreshRoute = "/auth/refresh"

// SessionHandler owns the login/refresh/logout/csrf endpoints.
type SessionHandler struct {
	sessions ports.SessionService
	cookies  middleware.CookieConfig
}

func NewSessionHandler(sessions ports.SessionService, cookies middleware.CookieConfig) *SessionHandler {
	return &SessionHandler{sessions: sessions, cookies: cookies}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string              `json:"token"`
	Staff *domain.StaffMember `json:"staff"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// Login authenticates a staff member and sets the session and refresh cookies.
//
// @Summary      Staff login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	staff, pair, err := h.sessions.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	c.SetCookie(h.cookies.SessionCookie(pair.SessionToken, pair.SessionExpiry))
	c.SetCookie(h.cookies.RefreshCookie(pair.RefreshToken, pair.RefreshExpiry, RefreshRoute))
	return c.JSON(http.StatusOK, loginResponse{Token: pair.SessionToken, Staff: staff})
}

// Refresh rotates the refresh cookie into a new session. 204 on success,
// 409 when a concurrent caller already rotated this token (callers treat
// that as success), 401 on anything else.
//
// @Summary      Refresh session
// @Tags         auth
// @Produce      json
// @Success      204
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /auth/refresh [post]
func (h *SessionHandler) Refresh(c echo.Context) error {
	cookie, err := c.Request().Cookie(middleware.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		metrics.SessionRefreshTotal.WithLabelValues("denied").Inc()
		return echo.NewHTTPError(http.StatusUnauthorized, middleware.MsgMissingToken)
	}

	pair, err := h.sessions.Refresh(c.Request().Context(), cookie.Value)
	if err != nil {
		if err == domain.ErrRefreshConflict {
			metrics.SessionRefreshTotal.WithLabelValues("conflict").Inc()
		} else {
			metrics.SessionRefreshTotal.WithLabelValues("denied").Inc()
		}
		return err
	}

	metrics.SessionRefreshTotal.WithLabelValues("rotated").Inc()
	c.SetCookie(h.cookies.SessionCookie(pair.SessionToken, pair.SessionExpiry))
	c.SetCookie(h.cookies.RefreshCookie(pair.RefreshToken, pair.RefreshExpiry, RefreshRoute))
	return c.NoContent(http.StatusNoContent)
}

// Logout clears both session cookies.
//
// @Summary      Logout
// @Tags         auth
// @Success      204
// @Router       /auth/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	c.SetCookie(h.cookies.ClearSessionCookie())
	c.SetCookie(h.cookies.ClearRefreshCookie(RefreshRoute))
	return c.NoContent(http.StatusNoContent)
}

// Me returns the resolved principal for the current session.
//
// @Summary      Current principal
// @Tags         auth
// @Produce      json
// @Success      200  {object}  domain.Principal
// @Failure      401  {object}  map[string]string
// @Router       /auth/me [get]
func (h *SessionHandler) Me(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// CSRFToken mints an anti-forgery token, sets its double-submit cookie and
// returns it to the caller.
//
// @Summary      Fetch CSRF token
// @Tags         auth
// @Produce      json
// @Success      200  {object}  csrfResponse
// @Router       /auth/csrf [get]
func (h *SessionHandler) CSRFToken(c echo.Context) error {
	token, err := middleware.NewCSRFToken()
	if err != nil {
		return err
	}
	c.SetCookie(h.cookies.CSRFCookie(token))
	return c.JSON(http.StatusOK, csrfResponse{CSRFToken: token})
}
