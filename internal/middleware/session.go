package middleware

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
)

const sessionKey = "fleetmon_session"

// Session is the caller identity forwarded by the dashboard frontend in the
// X-Session header. Agents and internal callers omit the header entirely and
// are treated as fully trusted.
type Session struct {
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	CustomerIDs []string `json:"customerIds"`
}

func (s *Session) IsAdmin() bool {
	return s == nil || s.Role == "admin"
}

// CanSeeTarget reports whether the session may read the given target. The
// customer-to-target mapping is resolved by the caller; here we only gate on
// customer membership.
func (s *Session) CanSeeCustomer(customerID string) bool {
	if s.IsAdmin() {
		return true
	}
	for _, id := range s.CustomerIDs {
		if id == customerID {
			return true
		}
	}
	return false
}

// SessionFromHeader parses the optional X-Session header into the gin
// context. A malformed header becomes an empty session with no role and no
// customer scope, never a trusted one.
func SessionFromHeader(c *gin.Context) {
	raw := c.GetHeader("X-Session")
	if raw != "" {
		s := &Session{}
		_ = json.Unmarshal([]byte(raw), s)
		c.Set(sessionKey, s)
	}
	c.Next()
}

// GetSession returns the parsed session, or nil for trusted internal callers
// that sent no header.
func GetSession(c *gin.Context) *Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}
