package http

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vncsmyrnk/taskboard/internal/config"
	"github.com/vncsmyrnk/taskboard/internal/core/domain"
	"github.com/vncsmyrnk/taskboard/internal/core/ports"
)

type cookieConfig struct {
	accessName  string
	refreshName string
	csrfName    string
	domain      string
	secure      bool
	sameSite    http.SameSite
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

type AuthHandler struct {
	authService ports.AuthService
	cookies     cookieConfig
	metrics     *Metrics
	logger      *zap.Logger
}

func NewAuthHandler(authService ports.AuthService, settings *config.Settings, metrics *Metrics, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookies: cookieConfig{
			accessName:  settings.AccessTokenCookieName,
			refreshName: settings.RefreshTokenCookieName,
			csrfName:    settings.CSRFCookieName,
			domain:      settings.CookieDomain,
			secure:      settings.CookieSecure,
			sameSite:    settings.SameSite(),
			accessTTL:   settings.AccessTokenTTL(),
			refreshTTL:  settings.RefreshTokenTTL(),
		},
		metrics: metrics,
		logger:  logger.Named("auth_handler"),
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type sessionResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	CSRFToken   string       `json:"csrf_token,omitempty"`
	User        userResponse `json:"user"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrf_token"`
}

// SignUp godoc
// @Summary      Registers a new user
// @Description  Creates the account and starts a session. Tokens are set as cookies.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      201
// @Failure      400
// @Failure      409
// @Router       /auth/signup [post]
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	session, err := h.authService.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.writeSession(w, http.StatusCreated, session)
}

// SignIn godoc
// @Summary      Signs a user in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      401
// @Router       /auth/signin [post]
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	session, err := h.authService.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.writeSession(w, http.StatusOK, session)
}

// Refresh godoc
// @Summary      Rotates the session tokens
// @Description  Exchanges the refresh token cookie for a new access and refresh token. A refresh token works once.
// @Tags         auth
// @Produce      json
// @Success      200
// @Failure      401
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(h.cookies.refreshName)
	if err != nil || cookie.Value == "" {
		h.metrics.tokenVerifications.WithLabelValues(string(domain.RefreshToken), "missing").Inc()
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	session, err := h.authService.Refresh(r.Context(), cookie.Value)
	if err != nil {
		h.metrics.tokenVerifications.WithLabelValues(string(domain.RefreshToken), verificationResult(err)).Inc()
		if isTokenFailure(err) {
			h.expireCookies(w)
		}
		writeServiceError(w, r, h.logger, err)
		return
	}
	h.metrics.tokenVerifications.WithLabelValues(string(domain.RefreshToken), "ok").Inc()

	h.writeSession(w, http.StatusOK, session)
}

// SignOut godoc
// @Summary      Signs the user out
// @Description  Revokes the refresh token and clears the session cookies
// @Tags         auth
// @Success      200
// @Router       /auth/signout [post]
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(h.cookies.refreshName)
	if err == nil && cookie.Value != "" {
		if err := h.authService.SignOut(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("failed to revoke refresh token on sign out", zap.Error(err))
		}
	}

	h.expireCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CSRF issues a fresh CSRF token for the authenticated caller.
func (h *AuthHandler) CSRF(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	token, err := h.authService.IssueCSRF(id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.setCSRFCookie(w, token)
	writeJSON(w, http.StatusOK, csrfResponse{CSRFToken: token})
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, status int, session *domain.Session) {
	h.setAccessTokenCookie(w, session.AccessToken.Value)
	h.setRefreshTokenCookie(w, session.RefreshToken.Value)
	h.setCSRFCookie(w, session.CSRFToken)

	writeJSON(w, status, sessionResponse{
		AccessToken: session.AccessToken.Value,
		TokenType:   "bearer",
		ExpiresAt:   session.AccessToken.ExpiresAt,
		CSRFToken:   session.CSRFToken,
		User: userResponse{
			ID:    session.User.ID.String(),
			Email: session.User.Email,
		},
	})
}

func (h *AuthHandler) setAccessTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.accessName,
		Value:    token,
		Path:     "/",
		Domain:   h.cookies.domain,
		HttpOnly: true,
		Secure:   h.cookies.secure,
		SameSite: h.cookies.sameSite,
		MaxAge:   int(h.cookies.accessTTL.Seconds()),
	})
}

func (h *AuthHandler) setRefreshTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.refreshName,
		Value:    token,
		Path:     "/auth",
		Domain:   h.cookies.domain,
		HttpOnly: true,
		Secure:   h.cookies.secure,
		SameSite: h.cookies.sameSite,
		MaxAge:   int(h.cookies.refreshTTL.Seconds()),
	})
}

// The CSRF cookie is readable by scripts so the client can echo it back in
// the header.
func (h *AuthHandler) setCSRFCookie(w http.ResponseWriter, token string) {
	if token == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.csrfName,
		Value:    token,
		Path:     "/",
		Domain:   h.cookies.domain,
		HttpOnly: false,
		Secure:   h.cookies.secure,
		SameSite: h.cookies.sameSite,
		MaxAge:   int(h.cookies.refreshTTL.Seconds()),
	})
}

func (h *AuthHandler) expireCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: h.cookies.accessName, MaxAge: -1, Path: "/", Domain: h.cookies.domain})
	http.SetCookie(w, &http.Cookie{Name: h.cookies.refreshName, MaxAge: -1, Path: "/auth", Domain: h.cookies.domain})
	http.SetCookie(w, &http.Cookie{Name: h.cookies.csrfName, MaxAge: -1, Path: "/", Domain: h.cookies.domain})
}
