package restapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/playground/internal/auth"
	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/models"
)

func (s *Server) listSessions(c *gin.Context) {
	caller := auth.CallerFrom(c)
	sessions, err := s.sessions.List(c.Request.Context(), caller)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, sessions)
}

func (s *Server) getSession(c *gin.Context) {
	id := c.Param("id")
	caller := auth.CallerFrom(c)
	session, err := s.sessions.Get(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	if session == nil {
		writeErr(c, apperrors.UnknownResource(string(models.ResourceSession), id))
		return
	}
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceSession, session.UserID), models.Permission{Kind: models.PermRead}); err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, session)
}

func (s *Server) createSession(c *gin.Context) {
	id := c.Param("id")
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceSession, caller.ID), models.Permission{Kind: models.PermCreate}); err != nil {
		writeErr(c, err)
		return
	}
	if !strings.EqualFold(id, caller.ID) {
		if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceSession, caller.ID), models.Permission{Kind: models.PermCustom, Name: models.CustomizeSessionName}); err != nil {
			writeErr(c, err)
			return
		}
	}

	var conf models.SessionConfiguration
	if bindErr := c.ShouldBindJSON(&conf); bindErr != nil {
		writeErr(c, apperrors.Wrap(apperrors.KindFailure, "decode SessionConfiguration", bindErr))
		return
	}

	if conf.Duration != nil {
		if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceSession, caller.ID), models.Permission{Kind: models.PermCustom, Name: models.CustomizeSessionDuration}); err != nil {
			writeErr(c, err)
			return
		}
	}
	if conf.PoolAffinity != nil {
		if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceSession, caller.ID), models.Permission{Kind: models.PermCustom, Name: models.CustomizeSessionPoolAffinity}); err != nil {
			writeErr(c, err)
			return
		}
	}

	session, err := s.sessions.Create(c.Request.Context(), caller, id, conf)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, session)
}

func (s *Server) updateSession(c *gin.Context) {
	id := c.Param("id")
	caller := auth.CallerFrom(c)
	existing, err := s.sessions.Get(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	if existing == nil {
		writeErr(c, apperrors.UnknownResource(string(models.ResourceSession), id))
		return
	}
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceSession, existing.UserID), models.Permission{Kind: models.PermUpdate}); err != nil {
		writeErr(c, err)
		return
	}
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceSession, existing.UserID), models.Permission{Kind: models.PermCustom, Name: models.CustomizeSessionDuration}); err != nil {
		writeErr(c, err)
		return
	}

	var conf models.SessionUpdateConfiguration
	if bindErr := c.ShouldBindJSON(&conf); bindErr != nil {
		writeErr(c, apperrors.Wrap(apperrors.KindFailure, "decode SessionUpdateConfiguration", bindErr))
		return
	}
	if err := s.sessions.Update(c.Request.Context(), id, conf); err != nil {
		writeErr(c, err)
		return
	}
	writeNoContent(c)
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	caller := auth.CallerFrom(c)
	existing, err := s.sessions.Get(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	if existing == nil {
		writeNoContent(c)
		return
	}
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceSession, existing.UserID), models.Permission{Kind: models.PermDelete}); err != nil {
		writeErr(c, err)
		return
	}
	if err := s.sessions.Delete(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	writeNoContent(c)
}

func (s *Server) execSession(c *gin.Context) {
	id := c.Param("id")
	caller := auth.CallerFrom(c)
	existing, err := s.sessions.Get(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	if existing == nil {
		writeErr(c, apperrors.UnknownResource(string(models.ResourceSession), id))
		return
	}
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceSession, existing.UserID), models.Permission{Kind: models.PermUpdate}); err != nil {
		writeErr(c, err)
		return
	}

	var conf models.SessionExecutionConfiguration
	if bindErr := c.ShouldBindJSON(&conf); bindErr != nil {
		writeErr(c, apperrors.Wrap(apperrors.KindFailure, "decode SessionExecutionConfiguration", bindErr))
		return
	}
	execution, execErr := s.sessions.Exec(c.Request.Context(), id, conf.Argv)
	if execErr != nil {
		writeErr(c, execErr)
		return
	}
	writeJSON(c, http.StatusOK, execution)
}
