package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"legal-ease-backend/internal/shared/server/respond"
)

const (
	// SessionHeader carries the web session id in both directions.
	SessionHeader = "X-Session-Id"
	// SessionCookie holds the web session id for browsers.
	SessionCookie = "legal_ease_session"

	ownerKey     = "userId"
	sessionIDKey = "sessionId"
	outcomeKey   = "outcome"

	sessionCookieMaxAge = 24 * 60 * 60
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// Identity resolves the web caller to an owner key. The id comes from the
// X-Session-Id header, then the session cookie; otherwise a new one is issued.
func Identity(secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(SessionHeader))
		if id == "" {
			if cookie, err := c.Cookie(SessionCookie); err == nil {
				id = strings.TrimSpace(cookie)
			}
		}
		if id != "" && !sessionIDPattern.MatchString(id) {
			respond.Error(c, http.StatusBadRequest, "invalid_session", "Session id is malformed", nil)
			return
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, id, sessionCookieMaxAge, "/", "", secureCookie, true)
		c.Header(SessionHeader, id)
		c.Set(sessionIDKey, id)
		c.Set(ownerKey, "web:"+id)
		c.Next()
	}
}

// OwnerFromContext fetches the owner key set by the identity middleware.
func OwnerFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(ownerKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// SessionIDFromContext fetches the raw web session id.
func SessionIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(sessionIDKey)
}

// SetOwner records the owner for handlers outside the identity middleware, such as the chat webhook.
func SetOwner(c *gin.Context, owner string) {
	c.Set(ownerKey, owner)
}

// SetOutcome records the orchestrator outcome for the request log.
func SetOutcome(c *gin.Context, outcome string) {
	c.Set(outcomeKey, outcome)
}
