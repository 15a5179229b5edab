package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/playground/internal/auth"
	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/models"
)

func (s *Server) listPools(c *gin.Context) {
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourcePool, ""), models.Permission{Kind: models.PermRead}); err != nil {
		writeErr(c, err)
		return
	}
	pools, err := s.pools.List(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, pools)
}

func (s *Server) getPool(c *gin.Context) {
	id := c.Param("id")
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourcePool, ""), models.Permission{Kind: models.PermRead}); err != nil {
		writeErr(c, err)
		return
	}
	p, err := s.pools.Get(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	if p == nil {
		writeErr(c, apperrors.UnknownResource(string(models.ResourcePool), id))
		return
	}
	writeJSON(c, http.StatusOK, p)
}
