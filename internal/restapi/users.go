package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/playground/internal/auth"
	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/models"
)

func (s *Server) listUsers(c *gin.Context) {
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceUser, ""), models.Permission{Kind: models.PermRead}); err != nil {
		writeErr(c, err)
		return
	}
	users, err := s.users.List(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, users)
}

func (s *Server) getUser(c *gin.Context) {
	id := c.Param("id")
	caller := auth.CallerFrom(c)
	user, err := s.users.Get(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	if user == nil {
		writeErr(c, apperrors.UnknownResource(string(models.ResourceUser), id))
		return
	}
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceUser, user.ID), models.Permission{Kind: models.PermRead}); err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, user)
}

func (s *Server) createUser(c *gin.Context) {
	id := c.Param("id")
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceUser, ""), models.Permission{Kind: models.PermCreate}); err != nil {
		writeErr(c, err)
		return
	}
	var conf models.UserConfiguration
	if bindErr := c.ShouldBindJSON(&conf); bindErr != nil {
		writeErr(c, apperrors.Wrap(apperrors.KindFailure, "decode UserConfiguration", bindErr))
		return
	}
	if err := s.users.Create(c.Request.Context(), id, conf); err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"id": id})
}

func (s *Server) updateUser(c *gin.Context) {
	id := c.Param("id")
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceUser, id), models.Permission{Kind: models.PermUpdate}); err != nil {
		writeErr(c, err)
		return
	}
	var conf models.UserUpdateConfiguration
	if bindErr := c.ShouldBindJSON(&conf); bindErr != nil {
		writeErr(c, apperrors.Wrap(apperrors.KindFailure, "decode UserUpdateConfiguration", bindErr))
		return
	}
	if err := s.users.Update(c.Request.Context(), id, conf); err != nil {
		writeErr(c, err)
		return
	}
	writeNoContent(c)
}

func (s *Server) deleteUser(c *gin.Context) {
	id := c.Param("id")
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceUser, id), models.Permission{Kind: models.PermDelete}); err != nil {
		writeErr(c, err)
		return
	}
	if err := s.users.Delete(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	writeNoContent(c)
}
