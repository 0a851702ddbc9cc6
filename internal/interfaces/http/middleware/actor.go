package middleware

import (
	"net/http"
	"strings"

	"github.com/erp/reconciliation/internal/infrastructure/logger"
	"github.com/erp/reconciliation/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// MaxActorIDLength bounds the X-Actor-ID header
const MaxActorIDLength = 128

// Actor copies X-Actor-ID into the gin and request contexts. Identity is
// authenticated upstream; this layer only carries it.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := strings.TrimSpace(c.GetHeader(HeaderActorID)); actor != "" {
			c.Set(actorIDKey, actor)
			c.Request = c.Request.WithContext(logger.WithActorID(c.Request.Context(), actor))
		}
		c.Next()
	}
}

// RequireActor rejects requests without a usable actor ID with 400.
// Place it after Actor on write routes.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := GetActorID(c)
		switch {
		case actor == "":
			abortActor(c, "X-Actor-ID header is required")
		case len(actor) > MaxActorIDLength:
			abortActor(c, "X-Actor-ID header is too long")
		default:
			c.Next()
		}
	}
}

func abortActor(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest,
		dto.NewErrorResponseWithRequestID(dto.ErrCodeMissingActor, message, GetRequestID(c)))
}

// GetActorID returns the actor set by Actor, or ""
func GetActorID(c *gin.Context) string {
	return c.GetString(actorIDKey)
}
