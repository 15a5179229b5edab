package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace/playground/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequireBearerRejectsMissingHeader(t *testing.T) {
	m := NewManager("secret", "playground-test")
	engine := gin.New()
	engine.Use(m.RequireBearer())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireBearerRejectsInvalidToken(t *testing.T) {
	m := NewManager("secret", "playground-test")
	engine := gin.New()
	engine.Use(m.RequireBearer())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireBearerResolvesCaller(t *testing.T) {
	m := NewManager("secret", "playground-test")
	token, err := m.GenerateToken(models.Caller{ID: "user-1", RoleID: "operator"}, time.Hour)
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(m.RequireBearer())
	engine.GET("/", func(c *gin.Context) {
		caller := CallerFrom(c)
		assert.Equal(t, "user-1", caller.ID)
		assert.Equal(t, "operator", caller.RoleID)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
