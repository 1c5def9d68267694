package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notekeeper/notekeeper/internal/export"
	"github.com/notekeeper/notekeeper/internal/models"
	"github.com/notekeeper/notekeeper/internal/notes"
	"github.com/notekeeper/notekeeper/internal/notes/repository"
	"github.com/notekeeper/notekeeper/internal/notes/service"
	"github.com/notekeeper/notekeeper/pkg/middleware"
)

const loginPath = "/auth/login/"

var (
	author = &models.Actor{ID: "author-sub", Username: "Автор"}
	reader = &models.Actor{ID: "reader-sub", Username: "Читатель"}
)

// cookieSessions resolves the session cookie value to a fixed actor.
type cookieSessions map[string]*models.Actor

func (s cookieSessions) Resolve(_ context.Context, id string) (*models.Actor, error) {
	return s[id], nil
}

type fixture struct {
	engine *gin.Engine
	repo   *repository.MemoryRepo
	svc    *service.Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryRepo()
	svc := service.New(repo)
	g := gin.New()
	g.Use(middleware.Authenticate(middleware.AuthConfig{
		Sessions:   cookieSessions{"author": author, "reader": reader},
		CookieName: "sessionid",
	}))
	New(svc, loginPath, opts...).Register(g)
	return &fixture{engine: g, repo: repo, svc: svc}
}

func (f *fixture) do(as, method, path string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if as != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: as})
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *fixture) count(t *testing.T) int64 {
	t.Helper()
	n, err := f.repo.Count(context.Background())
	require.NoError(t, err)
	return n
}

func (f *fixture) seed(t *testing.T) *notes.Note {
	t.Helper()
	n, err := f.svc.Create(context.Background(), author, service.Input{Title: "Заголовок", Text: "Текст", Slug: "note-slug"})
	require.NoError(t, err)
	return n
}

func TestRoutesTable(t *testing.T) {
	levels := map[string]middleware.Level{}
	for _, r := range Routes {
		levels[r.Name] = r.Level
	}
	require.Equal(t, middleware.Public, levels[RouteHome])
	for _, name := range []string{RouteList, RouteAdd, RouteSuccess, RouteDetail, RouteEdit, RouteDelete, RouteExport} {
		require.Equal(t, middleware.Authenticated, levels[name], name)
	}
	r := routeNamed(t, RouteDelete)
	require.Equal(t, "/delete/:slug/", r.Path)
	require.ElementsMatch(t, []string{http.MethodGet, http.MethodPost, http.MethodDelete}, r.Methods)
}

func routeNamed(t *testing.T, name string) Route {
	t.Helper()
	for _, r := range Routes {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no route %q", name)
	return Route{}
}

func TestPagesAvailability(t *testing.T) {
	f := newFixture(t)
	n := f.seed(t)

	w := f.do("", http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	for _, path := range []string{"/notes/", "/add/", "/done/"} {
		w := f.do("reader", http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	for _, path := range []string{"/note/" + n.Slug + "/", "/edit/" + n.Slug + "/", "/delete/" + n.Slug + "/"} {
		assert.Equal(t, http.StatusOK, f.do("author", http.MethodGet, path, nil).Code, path)
		assert.Equal(t, http.StatusNotFound, f.do("reader", http.MethodGet, path, nil).Code, path)
	}
}

func TestAnonymousRedirectsToLogin(t *testing.T) {
	f := newFixture(t)
	n := f.seed(t)
	paths := []string{
		"/notes/", "/add/", "/done/",
		"/note/" + n.Slug + "/", "/edit/" + n.Slug + "/", "/delete/" + n.Slug + "/",
	}
	for _, path := range paths {
		w := f.do("", http.MethodGet, path, nil)
		require.Equal(t, http.StatusFound, w.Code, path)
		require.Equal(t, loginPath+"?next="+path, w.Header().Get("Location"))
	}
	// same for a slug that does not exist
	w := f.do("", http.MethodGet, "/note/missing/", nil)
	require.Equal(t, "/auth/login/?next=/note/missing/", w.Header().Get("Location"))
}

func TestAnonymousWritesRedirectAndChangeNothing(t *testing.T) {
	f := newFixture(t)
	n := f.seed(t)
	form := url.Values{"title": {"hijacked"}, "text": {"hijacked"}}
	cases := []struct {
		method, path string
	}{
		{http.MethodPost, "/add/"},
		{http.MethodPost, "/edit/" + n.Slug + "/"},
		{http.MethodPost, "/delete/" + n.Slug + "/"},
		{http.MethodDelete, "/delete/" + n.Slug + "/"},
	}
	for _, tc := range cases {
		w := f.do("", tc.method, tc.path, form)
		require.Equal(t, http.StatusFound, w.Code, tc.method+" "+tc.path)
		require.Equal(t, loginPath+"?next="+tc.path, w.Header().Get("Location"), tc.method+" "+tc.path)
	}
	require.EqualValues(t, 1, f.count(t))
	got, err := f.repo.GetBySlug(context.Background(), n.Slug)
	require.NoError(t, err)
	require.Equal(t, n.Title, got.Title)
	require.Equal(t, n.Text, got.Text)
}

func TestAdd(t *testing.T) {
	f := newFixture(t)
	form := url.Values{"title": {"Заголовок"}, "text": {"Текст"}, "slug": {"new-slug"}}

	w := f.do("", http.MethodPost, "/add/", form)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, loginPath+"?next=/add/", w.Header().Get("Location"))
	require.Zero(t, f.count(t))

	w = f.do("author", http.MethodPost, "/add/", form)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, SuccessPath, w.Header().Get("Location"))
	require.EqualValues(t, 1, f.count(t))

	got, err := f.repo.GetBySlug(context.Background(), "new-slug")
	require.NoError(t, err)
	require.Equal(t, author.ID, got.Author)
	require.Equal(t, "Текст", got.Text)
}

func TestAdd_DerivesSlug(t *testing.T) {
	f := newFixture(t)
	w := f.do("author", http.MethodPost, "/add/", url.Values{"title": {"Заголовок заметки"}, "text": {"x"}})
	require.Equal(t, http.StatusFound, w.Code)
	_, err := f.repo.GetBySlug(context.Background(), "zagolovok-zametki")
	require.NoError(t, err)
}

func TestAdd_DuplicateSlug(t *testing.T) {
	f := newFixture(t)
	n := f.seed(t)

	w := f.do("reader", http.MethodPost, "/add/", url.Values{"title": {"t"}, "text": {"x"}, "slug": {n.Slug}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Errors map[string][]string `json:"errors"`
		Form   map[string]string   `json:"form"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, []string{n.Slug + notes.SlugWarning}, body.Errors["slug"])
	require.Equal(t, "t", body.Form["title"])
	require.EqualValues(t, 1, f.count(t))
}

func TestAdd_JSONBody(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/add/", strings.NewReader(`{"title":"json note","text":"body"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: "author"})
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)
	_, err := f.repo.GetBySlug(context.Background(), "json-note")
	require.NoError(t, err)
}

func TestAdd_Invalid(t *testing.T) {
	f := newFixture(t)
	w := f.do("author", http.MethodPost, "/add/", url.Values{"title": {""}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), notes.MsgRequired)
	require.Zero(t, f.count(t))
}

func TestList_OnlyOwnNotes(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, reader, service.Input{Title: "reader", Text: "x"})
	require.NoError(t, err)

	var body struct {
		Notes []notes.Note `json:"notes"`
	}
	w := f.do("author", http.MethodGet, "/notes/", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Notes, 1)
	require.Equal(t, "note-slug", body.Notes[0].Slug)
}

func TestEdit(t *testing.T) {
	f := newFixture(t)
	n := f.seed(t)
	form := url.Values{"title": {"Новый заголовок"}, "text": {"Новый текст"}, "slug": {"changed"}}

	w := f.do("reader", http.MethodPost, "/edit/"+n.Slug+"/", form)
	require.Equal(t, http.StatusNotFound, w.Code)
	got, _ := f.repo.GetBySlug(context.Background(), n.Slug)
	require.Equal(t, n.Title, got.Title)

	w = f.do("author", http.MethodPost, "/edit/"+n.Slug+"/", form)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, SuccessPath, w.Header().Get("Location"))
	got, err := f.repo.GetBySlug(context.Background(), n.Slug)
	require.NoError(t, err)
	require.Equal(t, "Новый заголовок", got.Title)
	require.Equal(t, "Новый текст", got.Text)
	require.Equal(t, author.ID, got.Author)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	n := f.seed(t)

	w := f.do("reader", http.MethodPost, "/delete/"+n.Slug+"/", url.Values{})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.EqualValues(t, 1, f.count(t))

	w = f.do("author", http.MethodPost, "/delete/"+n.Slug+"/", url.Values{})
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, SuccessPath, w.Header().Get("Location"))
	require.Zero(t, f.count(t))

	w = f.do("author", http.MethodDelete, "/delete/"+n.Slug+"/", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

type stubExporter struct{ calls int }

func (s *stubExporter) Export(_ context.Context, actor *models.Actor) (*export.Result, error) {
	s.calls++
	return &export.Result{Key: "exports/" + actor.ID + "/x.json", URL: "https://example.test/x"}, nil
}

func TestExportRoute(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusNotFound, f.do("author", http.MethodGet, "/notes/export/", nil).Code)

	ex := &stubExporter{}
	f = newFixture(t, WithExporter(ex))
	w := f.do("author", http.MethodGet, "/notes/export/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "exports/author-sub/x.json")
	require.Equal(t, 1, ex.calls)
}
