package httpp

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Credentials are credentials provided by a HTTP client.
type Credentials struct {
	User string
	Pass string
}

// ReadCredentials extracts credentials from a HTTP request.
func ReadCredentials(h *http.Request) *Credentials {
	c := &Credentials{}

	for _, auth := range h.Header["Authorization"] {
		if strings.HasPrefix(auth, "Bearer ") {
			// user:pass in Authorization Bearer
			if parts := strings.SplitN(auth[len("Bearer "):], ":", 2); len(parts) == 2 {
				c.User = parts[0]
				c.Pass = parts[1]
			}
			return c
		}
	}

	// user:pass in Authorization Basic
	c.User, c.Pass, _ = h.BasicAuth()

	return c
}

// RemoteAddr returns the address of a client,
// with the IP replaced by the one forwarded by proxies.
func RemoteAddr(ctx *gin.Context) string {
	_, port, _ := net.SplitHostPort(ctx.Request.RemoteAddr)
	return net.JoinHostPort(ctx.ClientIP(), port)
}
