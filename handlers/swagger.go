package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	notehandler "github.com/notekeeper/notekeeper/internal/notes/handler"
	"github.com/notekeeper/notekeeper/pkg/middleware"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON built from the route tables
// loginPath is where the login page is mounted; empty means LoginPath.
func RegisterSwagger(rg gin.IRouter, loginPath string) {
	if loginPath == "" {
		loginPath = LoginPath
	}
	doc, err := json.Marshal(openAPI(loginPath))
	if err != nil {
		panic(err)
	}
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})
	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>notekeeper API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

type operation struct {
	Summary     string                       `json:"summary"`
	Tags        []string                     `json:"tags,omitempty"`
	Security    []map[string][]string        `json:"security,omitempty"`
	Parameters  []map[string]interface{}     `json:"parameters,omitempty"`
	RequestBody map[string]interface{}       `json:"requestBody,omitempty"`
	Responses   map[string]map[string]string `json:"responses"`
}

var noteBody = map[string]interface{}{
	"content": map[string]interface{}{
		"application/x-www-form-urlencoded": map[string]interface{}{"schema": map[string]interface{}{"$ref": "#/components/schemas/NoteForm"}},
		"application/json":                  map[string]interface{}{"schema": map[string]interface{}{"$ref": "#/components/schemas/NoteForm"}},
	},
}

func responses(codes ...string) map[string]map[string]string {
	desc := map[string]string{
		"200": "ok",
		"302": "redirect (success page, or login when anonymous)",
		"400": "validation errors",
		"401": "authentication failed",
		"404": "not found",
	}
	out := map[string]map[string]string{}
	for _, c := range codes {
		out[c] = map[string]string{"description": desc[c]}
	}
	return out
}

// openAPIPath turns "/note/:slug/" into "/note/{slug}/".
func openAPIPath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		if strings.HasPrefix(s, ":") {
			parts[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(parts, "/")
}

func openAPI(loginPath string) map[string]interface{} {
	paths := map[string]map[string]operation{}
	for _, rt := range notehandler.Routes {
		ops := map[string]operation{}
		for _, m := range rt.Methods {
			op := operation{Summary: rt.Name, Tags: []string{"notes"}}
			if rt.Level == middleware.Authenticated {
				op.Security = []map[string][]string{{"session": {}}, {"bearer": {}}}
			}
			if strings.Contains(rt.Path, ":slug") {
				op.Parameters = []map[string]interface{}{{"name": "slug", "in": "path", "required": true, "schema": map[string]string{"type": "string"}}}
			}
			switch m {
			case http.MethodGet:
				op.Responses = responses("200", "302", "404")
			default:
				op.Responses = responses("302", "400", "404")
				if rt.Name != notehandler.RouteDelete {
					op.RequestBody = noteBody
				}
			}
			ops[strings.ToLower(m)] = op
		}
		paths[openAPIPath(rt.Path)] = ops
	}
	paths[loginPath] = map[string]operation{
		"get":  {Summary: "login form", Tags: []string{"auth"}, Responses: responses("200")},
		"post": {Summary: "log in (local or keycloak mode); sets the session cookie", Tags: []string{"auth"}, Responses: responses("200", "302", "401")},
	}
	paths[LogoutPath] = map[string]operation{
		"post": {Summary: "log out; blacklists a presented bearer token", Tags: []string{"auth"}, Responses: responses("200")},
	}
	paths[SignupPath] = map[string]operation{
		"get":  {Summary: "signup form", Tags: []string{"auth"}, Responses: responses("200")},
		"post": {Summary: "register a local account", Tags: []string{"auth"}, Responses: responses("302", "400")},
	}
	paths["/api/v1/me"] = map[string]operation{"get": {Summary: "current actor", Tags: []string{"ops"}, Responses: responses("200", "401")}}
	paths["/health"] = map[string]operation{"get": {Summary: "liveness check", Tags: []string{"ops"}, Responses: responses("200")}}
	paths["/ready"] = map[string]operation{"get": {Summary: "readiness check", Tags: []string{"ops"}, Responses: map[string]map[string]string{"200": {"description": "ready"}, "503": {"description": "not ready"}}}}

	return map[string]interface{}{
		"openapi": "3.0.0",
		"info":    map[string]string{"title": "notekeeper", "version": "v1.0.0"},
		"paths":   paths,
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"session": map[string]string{"type": "apiKey", "in": "cookie", "name": "sessionid"},
				"bearer":  map[string]string{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
			"schemas": map[string]interface{}{
				"NoteForm": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"title": map[string]interface{}{"type": "string", "maxLength": 100},
						"text":  map[string]string{"type": "string"},
						"slug":  map[string]interface{}{"type": "string", "maxLength": 100, "pattern": "^[-a-zA-Z0-9_]+$"},
					},
				},
			},
		},
	}
}
