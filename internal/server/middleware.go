package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	"kanban/internal/apperr"
)

const userIDKey = "kanban.userID"

// requireUser rejects requests without a valid bearer access token and
// stores the caller's user id in the context.
func (s *Server) requireUser(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		s.respondError(c, apperr.Authf("missing authorization header"))
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		s.respondError(c, apperr.Authf("invalid authorization format"))
		return
	}

	userID, err := s.auth.UserIDFromToken(parts[1])
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.Set(userIDKey, userID)
	c.Next()
}

// currentUserID returns the id stored by requireUser.
func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}
