package handler

import (
	"net/http"

	"github.com/notekeeper/notekeeper/pkg/middleware"
)

// Route names.
const (
	RouteHome    = "home"
	RouteList    = "list"
	RouteAdd     = "add"
	RouteSuccess = "success"
	RouteDetail  = "detail"
	RouteEdit    = "edit"
	RouteDelete  = "delete"
	RouteExport  = "export"
)

// Route declares an endpoint and the authentication it needs. Ownership is
// checked by the service, not here.
type Route struct {
	Name    string
	Path    string
	Level   middleware.Level
	Methods []string
}

// Routes is the notes route table.
var Routes = []Route{
	{RouteHome, "/", middleware.Public, []string{http.MethodGet}},
	{RouteList, "/notes/", middleware.Authenticated, []string{http.MethodGet}},
	{RouteAdd, "/add/", middleware.Authenticated, []string{http.MethodGet, http.MethodPost}},
	{RouteSuccess, "/done/", middleware.Authenticated, []string{http.MethodGet}},
	{RouteDetail, "/note/:slug/", middleware.Authenticated, []string{http.MethodGet}},
	{RouteEdit, "/edit/:slug/", middleware.Authenticated, []string{http.MethodGet, http.MethodPost}},
	{RouteDelete, "/delete/:slug/", middleware.Authenticated, []string{http.MethodGet, http.MethodPost, http.MethodDelete}},
	{RouteExport, "/notes/export/", middleware.Authenticated, []string{http.MethodGet}},
}


// SuccessPath is where successful mutations redirect.
const SuccessPath = "/done/"
