package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Origins is the set of browser origins allowed to call the API and open
// signaling sockets. Requests without an Origin header are not browser
// requests and pass through.
type Origins struct {
	allowed map[string]struct{}
}

func NewOrigins(allowed []string) *Origins {
	o := &Origins{allowed: make(map[string]struct{}, len(allowed))}
	for _, origin := range allowed {
		o.allowed[origin] = struct{}{}
	}
	return o
}

func (o *Origins) Allowed(origin string) bool {
	_, ok := o.allowed[origin]
	return ok
}

// CheckOrigin is used by the websocket upgrader.
func (o *Origins) CheckOrigin(r *http.Request) bool {
	origin := requestOrigin(r)
	return origin == "" || o.Allowed(origin)
}

// Filter rejects disallowed origins and sets CORS headers for allowed ones.
func (o *Origins) Filter() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := requestOrigin(c.Request)
		if origin == "" {
			c.Next()
			return
		}
		if !o.Allowed(origin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Origin not allowed"})
			return
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Add("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	return r.Header.Get("Sec-WebSocket-Origin")
}
