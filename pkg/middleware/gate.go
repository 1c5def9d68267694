package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/notekeeper/notekeeper/pkg/metrics"
)

// Level is the minimum authentication an endpoint requires.
type Level int

const (
	Public Level = iota
	Authenticated
)

func (l Level) String() string {
	if l == Authenticated {
		return "authenticated"
	}
	return "public"
}

// Gate enforces level before any handler runs. Anonymous requests to
// authenticated endpoints are redirected to loginPath with the requested
// URL in "next". Ownership is not checked here.
func Gate(level Level, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if level == Authenticated && ActorFrom(c) == nil {
			metrics.LoginRedirects.Inc()
			c.Redirect(http.StatusFound, LoginURL(loginPath, c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

// LoginURL builds "<loginPath>?next=<next>", leaving slashes in next unescaped.
func LoginURL(loginPath, next string) string {
	return loginPath + "?next=" + strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
}
