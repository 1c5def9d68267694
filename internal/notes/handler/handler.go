package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/notekeeper/notekeeper/internal/export"
	"github.com/notekeeper/notekeeper/internal/models"
	"github.com/notekeeper/notekeeper/internal/notes"
	"github.com/notekeeper/notekeeper/internal/notes/service"
	"github.com/notekeeper/notekeeper/pkg/logger"
	"github.com/notekeeper/notekeeper/pkg/middleware"
)

// Exporter uploads an actor's notes; satisfied by *export.Service.
type Exporter interface {
	Export(ctx context.Context, actor *models.Actor) (*export.Result, error)
}

type Handler struct {
	svc       *service.Service
	exporter  Exporter
	loginPath string
}

type Option func(*Handler)

// WithExporter enables the export route.
func WithExporter(e Exporter) Option {
	return func(h *Handler) { h.exporter = e }
}

func New(svc *service.Service, loginPath string, opts ...Option) *Handler {
	h := &Handler{svc: svc, loginPath: loginPath}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route in Routes behind its gate.
func (h *Handler) Register(r gin.IRouter) {
	handlers := map[string]map[string]gin.HandlerFunc{
		RouteHome:    {http.MethodGet: h.Home},
		RouteList:    {http.MethodGet: h.List},
		RouteAdd:     {http.MethodGet: h.AddForm, http.MethodPost: h.Add},
		RouteSuccess: {http.MethodGet: h.Success},
		RouteDetail:  {http.MethodGet: h.Detail},
		RouteEdit:    {http.MethodGet: h.EditForm, http.MethodPost: h.Edit},
		RouteDelete:  {http.MethodGet: h.DeleteConfirm, http.MethodPost: h.Delete, http.MethodDelete: h.Delete},
		RouteExport:  {http.MethodGet: h.Export},
	}
	for _, rt := range Routes {
		if rt.Name == RouteExport && h.exporter == nil {
			continue
		}
		gate := middleware.Gate(rt.Level, h.loginPath)
		for _, m := range rt.Methods {
			r.Handle(m, rt.Path, gate, handlers[rt.Name][m])
		}
	}
}

// noteForm binds both form-encoded and JSON bodies. Absent fields stay nil.
type noteForm struct {
	Title *string `form:"title" json:"title"`
	Text  *string `form:"text" json:"text"`
	Slug  *string `form:"slug" json:"slug"`
}

func (f noteForm) values() gin.H {
	return gin.H{"title": deref(f.Title), "text": deref(f.Text), "slug": deref(f.Slug)}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func noteValues(n *notes.Note) gin.H {
	return gin.H{"title": n.Title, "text": n.Text, "slug": n.Slug}
}

func (h *Handler) Home(c *gin.Context) {
	resp := gin.H{"app": "notekeeper", "authenticated": false}
	if a := middleware.ActorFrom(c); a != nil {
		resp["authenticated"] = true
		resp["username"] = a.Username
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	if list == nil {
		list = []*notes.Note{}
	}
	c.JSON(http.StatusOK, gin.H{"notes": list})
}

func (h *Handler) AddForm(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"form": noteForm{}.values()})
}

func (h *Handler) Add(c *gin.Context) {
	var f noteForm
	if err := c.ShouldBind(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := service.Input{Title: deref(f.Title), Text: deref(f.Text), Slug: deref(f.Slug)}
	if _, err := h.svc.Create(c.Request.Context(), middleware.ActorFrom(c), in); err != nil {
		h.fail(c, err, f.values())
		return
	}
	c.Redirect(http.StatusFound, SuccessPath)
}

func (h *Handler) Success(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Done."})
}

func (h *Handler) Detail(c *gin.Context) {
	n, err := h.svc.Detail(c.Request.Context(), middleware.ActorFrom(c), c.Param("slug"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": n})
}

func (h *Handler) EditForm(c *gin.Context) {
	n, err := h.svc.Detail(c.Request.Context(), middleware.ActorFrom(c), c.Param("slug"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": n, "form": noteValues(n)})
}

// Edit applies title and text; a submitted slug is ignored.
func (h *Handler) Edit(c *gin.Context) {
	var f noteForm
	if err := c.ShouldBind(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := notes.Patch{Title: f.Title, Text: f.Text}
	if _, err := h.svc.Edit(c.Request.Context(), middleware.ActorFrom(c), c.Param("slug"), p); err != nil {
		h.fail(c, err, f.values())
		return
	}
	c.Redirect(http.StatusFound, SuccessPath)
}

func (h *Handler) DeleteConfirm(c *gin.Context) {
	n, err := h.svc.Detail(c.Request.Context(), middleware.ActorFrom(c), c.Param("slug"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": n, "confirm": true})
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.ActorFrom(c), c.Param("slug")); err != nil {
		h.fail(c, err, nil)
		return
	}
	c.Redirect(http.StatusFound, SuccessPath)
}

func (h *Handler) Export(c *gin.Context) {
	res, err := h.exporter.Export(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) fail(c *gin.Context, err error, form gin.H) {
	var verr *notes.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Fields, "form": form})
	case errors.Is(err, notes.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, notes.ErrAuthenticationRequired):
		c.Redirect(http.StatusFound, middleware.LoginURL(h.loginPath, c.Request.URL.RequestURI()))
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
