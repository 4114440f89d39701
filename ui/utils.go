package ui

import (
	"log"
	"strconv"

	"gocausal/app"
	"gocausal/domain/core"
	apperrors "gocausal/internal/errors"

	"github.com/gin-gonic/gin"
)

// respondError writes err as {"error", "code"} with the mapped status
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		log.Printf("[Server] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{
		"error": app.UserMessage(err),
		"code":  apperrors.GetCode(err),
	})
}

func parseSessionID(s string) (core.SessionID, error) {
	id, err := core.ParseSessionID(s)
	if err != nil {
		return "", apperrors.InvalidInput(err.Error())
	}
	return id, nil
}

// queryFloat reads a positive float query parameter, falling back to def
func queryFloat(c *gin.Context, key string, def float64) float64 {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
