package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social-service/internal/middleware"
)

func requestIDFromHeader(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return requestID
}

func actorFromContext(c *gin.Context) (string, bool) {
	actor := middleware.UserID(c)
	return actor, actor != ""
}
