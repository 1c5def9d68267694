package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/notekeeper/notekeeper/internal/config"
	"github.com/notekeeper/notekeeper/internal/models"
	"github.com/notekeeper/notekeeper/internal/sessions"
	"github.com/notekeeper/notekeeper/internal/tokens"
	"github.com/notekeeper/notekeeper/internal/users"
	"github.com/notekeeper/notekeeper/pkg/logger"
	"github.com/notekeeper/notekeeper/pkg/middleware"
)

// Auth paths. LoginPath is the default login page; NOTES_LOGIN_PATH moves it.
const (
	LoginPath  = "/auth/login/"
	LogoutPath = "/auth/logout/"
	SignupPath = "/auth/signup/"
)

// LoginRequest is accepted form-encoded or as JSON. Mode "keycloak" runs a
// password grant against the configured realm; anything else checks local
// accounts.
type LoginRequest struct {
	Mode     string `form:"mode" json:"mode"`
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
	Next     string `form:"next" json:"next"`
}

type SignupRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
	Email    string `form:"email" json:"email"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	idTokens    middleware.Verifier
	httpClient  *http.Client
}

// NewAuthHandler wires the login/logout/signup pages. idTokens verifies
// Keycloak ID tokens and may be nil, which disables keycloak mode.
func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service, idTokens middleware.Verifier) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u, sessionsSvc: s, idTokens: idTokens, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// Register mounts the login page at the configured login path, the same
// one the route gate redirects anonymous visitors to.
func (h *AuthHandler) Register(r gin.IRouter) {
	login := h.loginPath()
	r.GET(login, h.LoginForm)
	r.POST(login, h.Login)
	r.GET(LogoutPath, h.Logout)
	r.POST(LogoutPath, h.Logout)
	r.GET(SignupPath, h.SignupForm)
	r.POST(SignupPath, h.Signup)
}

func (h *AuthHandler) loginPath() string {
	if h.cfg.Notes.LoginPath != "" {
		return h.cfg.Notes.LoginPath
	}
	return LoginPath
}

func (h *AuthHandler) LoginForm(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"form": gin.H{"username": "", "password": ""}, "next": c.Query("next")})
}

// Login starts a cookie session. A local "next" (from the form or the query
// string) is followed; otherwise the user and an access token are returned.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Next == "" {
		req.Next = c.Query("next")
	}

	var (
		u   *models.User
		err error
	)
	switch req.Mode {
	case "keycloak":
		u, err = h.keycloakLogin(c.Request.Context(), req.Username, req.Password)
	default:
		u, err = h.usersSvc.Authenticate(c.Request.Context(), req.Username, req.Password)
	}
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "form": gin.H{"username": req.Username}})
			return
		}
		logger.Errorf("login (%s) failed: %v", req.Mode, err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	sid, err := h.sessionsSvc.Create(c.Request.Context(), u.Actor(), h.cfg.Session.TTL)
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Session.CookieName, sid, int(h.cfg.Session.TTL.Seconds()), "/", "", h.cfg.Session.Secure, true)

	if next, ok := SafeNext(req.Next); ok {
		c.Redirect(http.StatusFound, next)
		return
	}
	resp := gin.H{"user": u}
	if h.cfg.JWT.Secret != "" {
		access, err := tokens.GenerateAccessToken(h.cfg, u, h.cfg.JWT.AccessTokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
			return
		}
		resp["accessToken"] = access
		resp["expiresIn"] = int(h.cfg.JWT.AccessTokenTTL.Seconds())
	}
	c.JSON(http.StatusOK, resp)
}

// Logout ends the cookie session and blacklists a presented bearer token
// until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	if at, ok := middleware.BearerToken(c); ok {
		if exp, err := parseExpFromJWT(at); err == nil {
			if ttl := time.Until(exp); ttl > 0 {
				if err := sessions.BlacklistAccessToken(c.Request.Context(), at, ttl); err != nil {
					logger.Errorf("blacklist access token: %v", err)
					c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist access token"})
					return
				}
			}
		}
	}
	if sid, err := c.Cookie(h.cfg.Session.CookieName); err == nil && sid != "" {
		if err := h.sessionsSvc.Delete(c.Request.Context(), sid); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
			return
		}
	}
	c.SetCookie(h.cfg.Session.CookieName, "", -1, "/", "", h.cfg.Session.Secure, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) SignupForm(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"form": gin.H{"username": "", "password": "", "email": ""}})
}

// Signup registers a local account and sends the user to the login page.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, err := h.usersSvc.Register(c.Request.Context(), req.Username, req.Password, req.Email)
	switch {
	case err == nil:
		c.Redirect(http.StatusFound, h.loginPath())
	case errors.Is(err, users.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"username": []string{err.Error()}}, "form": gin.H{"username": req.Username, "email": req.Email}})
	case errors.Is(err, users.ErrInvalidSignup):
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"__all__": []string{err.Error()}}, "form": gin.H{"username": req.Username, "email": req.Email}})
	default:
		logger.Errorf("signup: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
	}
}

// SafeNext accepts only same-site absolute paths.
func SafeNext(next string) (string, bool) {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "", false
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	return next, true
}

func (h *AuthHandler) keycloakLogin(ctx context.Context, username, password string) (*models.User, error) {
	if h.idTokens == nil || h.cfg.Keycloak.URL == "" || h.cfg.Keycloak.Realm == "" {
		return nil, errors.New("keycloak not configured")
	}
	tr, err := h.requestPasswordToken(ctx, username, password)
	if err != nil {
		return nil, err
	}
	tok, err := h.idTokens.Verify(ctx, tr.IDToken)
	if err != nil {
		return nil, fmt.Errorf("invalid id token: %w", err)
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		return nil, err
	}
	u, err := h.usersSvc.UpsertFromClaims(ctx, claims)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errors.New("id token has no subject")
	}
	return u, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

func (h *AuthHandler) requestPasswordToken(ctx context.Context, username, password string) (*tokenResponse, error) {
	tokenURL := h.cfg.Keycloak.Issuer() + "/protocol/openid-connect/token"
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", h.cfg.Keycloak.ClientID)
	form.Set("client_secret", h.cfg.Keycloak.ClientSecret)
	form.Set("username", username)
	form.Set("password", password)
	form.Set("scope", "openid")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, users.ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// parseExpFromJWT decodes the JWT payload and returns the `exp` claim as time.Time.
// The signature is not checked; this only sizes blacklist TTLs.
func parseExpFromJWT(tok string) (time.Time, error) {
	parts := strings.Split(tok, ".")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("invalid token")
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return time.Time{}, err
	}
	var claims struct {
		Exp *json.Number `json:"exp"`
	}
	if err := json.Unmarshal(b, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.Exp == nil {
		return time.Time{}, fmt.Errorf("exp claim not present")
	}
	f, err := claims.Exp.Float64()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(f), 0), nil
}
