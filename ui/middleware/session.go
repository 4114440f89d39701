package middleware

import (
	"log"
	"net/http"

	"gocausal/domain/core"
	"gocausal/internal/editor"
	apperrors "gocausal/internal/errors"

	"github.com/gin-gonic/gin"
)

const sessionKey = "editor_session"

// LoadSession resolves the :id route parameter to an open editor session
// and aborts with 400/404 when it cannot.
func LoadSession(sessions *editor.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := core.ParseSessionID(c.Param("id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": apperrors.CodeInvalidInput})
			return
		}

		sess, err := sessions.Get(id)
		if err != nil {
			log.Printf("[LoadSession] Session %s not open", id)
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found", "code": apperrors.CodeNotFound})
			return
		}

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// SessionFrom returns the session stored by LoadSession.
func SessionFrom(c *gin.Context) *editor.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*editor.Session)
	return sess
}
