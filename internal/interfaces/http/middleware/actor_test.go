package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/reconciliation/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"

	"github.com/gin-gonic/gin"
)

func TestActor(t *testing.T) {
	var actor, fromCtx string
	r := gin.New()
	r.Use(RequestID(), Actor())
	r.GET("/read", func(c *gin.Context) {
		actor = GetActorID(c)
		c.Status(http.StatusOK)
	})
	r.POST("/write", RequireActor(), func(c *gin.Context) {
		actor = GetActorID(c)
		fromCtx = logger.GetActorID(c.Request.Context())
		c.Status(http.StatusCreated)
	})

	t.Run("reads do not need an actor", func(t *testing.T) {
		actor = "unset"
		w := serve(r, httptest.NewRequest(http.MethodGet, "/read", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, actor)
	})

	t.Run("writes without actor are rejected", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodPost, "/write", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_MISSING_ACTOR")
		assert.Contains(t, w.Body.String(), "request_id")
	})

	t.Run("blank actor counts as missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/write", nil)
		req.Header.Set(HeaderActorID, "   ")
		assert.Equal(t, http.StatusBadRequest, serve(r, req).Code)
	})

	t.Run("oversized actor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/write", nil)
		req.Header.Set(HeaderActorID, strings.Repeat("x", MaxActorIDLength+1))
		assert.Equal(t, http.StatusBadRequest, serve(r, req).Code)
	})

	t.Run("actor reaches handler and logger context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/write", nil)
		req.Header.Set(HeaderActorID, " clerk-7 ")
		w := serve(r, req)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "clerk-7", actor)
		assert.Equal(t, "clerk-7", fromCtx)
	})
}
