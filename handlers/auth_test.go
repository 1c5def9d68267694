package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/notekeeper/notekeeper/internal/config"
	notehandler "github.com/notekeeper/notekeeper/internal/notes/handler"
	"github.com/notekeeper/notekeeper/internal/notes/repository"
	"github.com/notekeeper/notekeeper/internal/notes/service"
	"github.com/notekeeper/notekeeper/internal/oidc"
	"github.com/notekeeper/notekeeper/internal/sessions"
	"github.com/notekeeper/notekeeper/internal/users"
)

type authFixture struct {
	cfg      *config.Config
	users    *users.Service
	sessions *sessions.Service
	engine   *gin.Engine
}

func newAuthFixture(t *testing.T, mutate func(*config.Config)) *authFixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = "auth-test-secret-32-bytes-xxxxxxxx"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.Session.CookieName = "sessionid"
	cfg.Session.TTL = time.Hour
	cfg.Notes.LoginPath = LoginPath
	if mutate != nil {
		mutate(cfg)
	}
	f := &authFixture{
		cfg:      cfg,
		users:    users.NewService(users.NewMemoryUserRepository(), users.WithCost(bcrypt.MinCost)),
		sessions: sessions.NewService(sessions.NewMemoryRepository()),
		engine:   gin.New(),
	}
	NewAuthHandler(cfg, f.users, f.sessions, oidc.NewInsecureVerifier()).Register(f.engine)
	return f
}

func (f *authFixture) post(path string, form url.Values, mod func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if mod != nil {
		mod(req)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == "sessionid" {
			return c
		}
	}
	return nil
}

func TestSignup(t *testing.T) {
	f := newAuthFixture(t, nil)

	w := f.post(SignupPath, url.Values{"username": {"alice"}, "password": {"correct-horse"}}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, LoginPath, w.Header().Get("Location"))

	w = f.post(SignupPath, url.Values{"username": {"alice"}, "password": {"another-pass"}}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "username")

	w = f.post(SignupPath, url.Values{"username": {"bob"}, "password": {"short"}}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, SignupPath, nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestLoginPath_FollowsConfiguredPath(t *testing.T) {
	const custom = "/accounts/login/"
	f := newAuthFixture(t, func(c *config.Config) { c.Notes.LoginPath = custom })
	notehandler.New(service.New(repository.NewMemoryRepo()), f.cfg.Notes.LoginPath).Register(f.engine)

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notes/", nil))
	require.Equal(t, http.StatusFound, w.Code)
	loc := w.Header().Get("Location")
	require.Equal(t, custom+"?next=/notes/", loc)

	w = httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, loc, nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"next":"/notes/"`)

	w = httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, LoginPath, nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	_, err := f.users.Register(context.Background(), "alice", "correct-horse", "")
	require.NoError(t, err)
	w = f.post(loc, url.Values{"username": {"alice"}, "password": {"correct-horse"}}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/notes/", w.Header().Get("Location"))

	w = f.post(SignupPath, url.Values{"username": {"bob"}, "password": {"correct-horse"}}, nil)
	require.Equal(t, custom, w.Header().Get("Location"))
}

func TestLogin_FollowsNextAndSetsCookie(t *testing.T) {
	f := newAuthFixture(t, nil)
	_, err := f.users.Register(context.Background(), "alice", "correct-horse", "")
	require.NoError(t, err)

	w := f.post(LoginPath+"?next=/note/test/", url.Values{"username": {"alice"}, "password": {"correct-horse"}}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/note/test/", w.Header().Get("Location"))

	c := sessionCookie(w)
	require.NotNil(t, c)
	require.True(t, c.HttpOnly)
	actor, err := f.sessions.Resolve(context.Background(), c.Value)
	require.NoError(t, err)
	require.Equal(t, "alice", actor.Username)
}

func TestLogin_ReturnsTokenWithoutSafeNext(t *testing.T) {
	f := newAuthFixture(t, nil)
	_, err := f.users.Register(context.Background(), "alice", "correct-horse", "")
	require.NoError(t, err)

	w := f.post(LoginPath, url.Values{"username": {"alice"}, "password": {"correct-horse"}, "next": {"//evil.example/"}}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.NotEmpty(t, got["accessToken"])
	assert.EqualValues(t, 900, got["expiresIn"])
	assert.NotContains(t, w.Body.String(), "passwordHash")
	assert.NotNil(t, sessionCookie(w))
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newAuthFixture(t, nil)
	_, err := f.users.Register(context.Background(), "alice", "correct-horse", "")
	require.NoError(t, err)

	w := f.post(LoginPath, url.Values{"username": {"alice"}, "password": {"wrong-horse"}}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Nil(t, sessionCookie(w))
}

func TestLogin_KeycloakPasswordGrant(t *testing.T) {
	claims := map[string]interface{}{"sub": "kc-sub", "email": "a@b.c", "name": "Alice", "preferred_username": "kc-alice"}
	b, _ := json.Marshal(claims)
	idToken := "hdr." + base64.RawURLEncoding.EncodeToString(b) + ".sig"

	var gotForm url.Values
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotForm = r.PostForm
		if r.URL.Path != "/realms/notes/protocol/openid-connect/token" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "at", "id_token": idToken})
	}))
	defer tokenSrv.Close()

	f := newAuthFixture(t, func(cfg *config.Config) {
		cfg.Keycloak.URL = tokenSrv.URL
		cfg.Keycloak.Realm = "notes"
		cfg.Keycloak.ClientID = "cid"
		cfg.Keycloak.ClientSecret = "csecret"
	})

	w := f.post(LoginPath, url.Values{"mode": {"keycloak"}, "username": {"kc-alice"}, "password": {"pw"}, "next": {"/notes/"}}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/notes/", w.Header().Get("Location"))
	require.Equal(t, "password", gotForm.Get("grant_type"))
	require.Equal(t, "cid", gotForm.Get("client_id"))

	u, err := f.users.GetBySub(context.Background(), "kc-sub")
	require.NoError(t, err)
	require.Equal(t, "kc-alice", u.Username)
}

func TestLogin_KeycloakNotConfigured(t *testing.T) {
	f := newAuthFixture(t, nil)
	w := f.post(LoginPath, url.Values{"mode": {"keycloak"}, "username": {"a"}, "password": {"b"}}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_BlacklistsAccessAndDeletesSession(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	sessions.SetBlacklistClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	defer sessions.SetBlacklistClient(nil)

	f := newAuthFixture(t, nil)
	u, err := f.users.Register(context.Background(), "alice", "correct-horse", "")
	require.NoError(t, err)
	sid, err := f.sessions.Create(context.Background(), u.Actor(), time.Hour)
	require.NoError(t, err)

	exp := time.Now().Add(2 * time.Minute).Unix()
	access := "hdr." + base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"sub":"%s","exp":%d}`, u.Sub, exp))) + ".sig"

	w := f.post(LogoutPath, url.Values{}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access)
		r.AddCookie(&http.Cookie{Name: "sessionid", Value: sid})
	})
	require.Equal(t, http.StatusOK, w.Code)

	actor, err := f.sessions.Resolve(context.Background(), sid)
	require.NoError(t, err)
	require.Nil(t, actor)
	require.True(t, m.Exists("blacklist:access:"+access))

	c := sessionCookie(w)
	require.NotNil(t, c)
	require.Empty(t, c.Value)
}

func TestSafeNext(t *testing.T) {
	for next, ok := range map[string]bool{
		"/notes/":              true,
		"/note/test/?x=1":      true,
		"":                     false,
		"notes/":               false,
		"//evil.example/":      false,
		"/\\evil.example":      false,
		"https://evil.example": false,
	} {
		_, got := SafeNext(next)
		assert.Equal(t, ok, got, next)
	}
}

func TestParseExpFromJWT_VariousFormats(t *testing.T) {
	tok := "hdr." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"s1","exp":1700000000}`)) + ".sig"
	expTime, err := parseExpFromJWT(tok)
	require.NoError(t, err)
	require.EqualValues(t, 1700000000, expTime.Unix())

	// padded payload
	tok = "hdr." + base64.URLEncoding.EncodeToString([]byte(`{"exp":1700000001.0}`)) + ".sig"
	expTime, err = parseExpFromJWT(tok)
	require.NoError(t, err)
	require.EqualValues(t, 1700000001, expTime.Unix())

	_, err = parseExpFromJWT("hdr." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"s2"}`)) + ".sig")
	require.Error(t, err)

	_, err = parseExpFromJWT("not.a.jwt")
	require.Error(t, err)
}
