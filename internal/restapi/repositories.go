package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/playground/internal/auth"
	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/models"
)

func (s *Server) listRepositories(c *gin.Context) {
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceRepository, ""), models.Permission{Kind: models.PermRead}); err != nil {
		writeErr(c, err)
		return
	}
	repos, err := s.repositories.List(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, repos)
}

func (s *Server) getRepository(c *gin.Context) {
	id := c.Param("id")
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceRepository, ""), models.Permission{Kind: models.PermRead}); err != nil {
		writeErr(c, err)
		return
	}
	repo, err := s.repositories.Get(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	if repo == nil {
		writeErr(c, apperrors.UnknownResource(string(models.ResourceRepository), id))
		return
	}
	writeJSON(c, http.StatusOK, repo)
}

func (s *Server) putRepository(c *gin.Context) {
	id := c.Param("id")
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceRepository, ""), models.Permission{Kind: models.PermCreate}); err != nil {
		writeErr(c, err)
		return
	}
	var conf models.RepositoryConfiguration
	if bindErr := c.ShouldBindJSON(&conf); bindErr != nil {
		writeErr(c, apperrors.Wrap(apperrors.KindFailure, "decode RepositoryConfiguration", bindErr))
		return
	}
	repo := models.Repository{ID: id, URL: conf.URL, Tags: conf.Tags}
	if err := s.repositories.Put(c.Request.Context(), repo); err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, repo)
}

func (s *Server) patchRepository(c *gin.Context) {
	id := c.Param("id")
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceRepository, ""), models.Permission{Kind: models.PermUpdate}); err != nil {
		writeErr(c, err)
		return
	}
	existing, err := s.repositories.Get(c.Request.Context(), id)
	if err != nil {
		writeErr(c, err)
		return
	}
	if existing == nil {
		writeErr(c, apperrors.UnknownResource(string(models.ResourceRepository), id))
		return
	}
	var conf models.RepositoryConfiguration
	if bindErr := c.ShouldBindJSON(&conf); bindErr != nil {
		writeErr(c, apperrors.Wrap(apperrors.KindFailure, "decode RepositoryConfiguration", bindErr))
		return
	}
	if conf.URL != "" {
		existing.URL = conf.URL
	}
	if conf.Tags != nil {
		existing.Tags = conf.Tags
	}
	if err := s.repositories.Put(c.Request.Context(), *existing); err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, existing)
}

func (s *Server) deleteRepository(c *gin.Context) {
	id := c.Param("id")
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceRepository, ""), models.Permission{Kind: models.PermDelete}); err != nil {
		writeErr(c, err)
		return
	}
	if err := s.repositories.Delete(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	writeNoContent(c)
}

func (s *Server) listRepositoryVersions(c *gin.Context) {
	repositoryID := c.Param("id")
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceRepositoryVersion, ""), models.Permission{Kind: models.PermRead}); err != nil {
		writeErr(c, err)
		return
	}
	// RepositoryVersion identity is (repositoryID, versionID); the Repository
	// Pipeline derives state per version rather than listing, so version ids
	// are tracked by the Repository's Tags map as a lightweight index.
	repo, err := s.repositories.Get(c.Request.Context(), repositoryID)
	if err != nil {
		writeErr(c, err)
		return
	}
	if repo == nil {
		writeErr(c, apperrors.UnknownResource(string(models.ResourceRepository), repositoryID))
		return
	}
	versions := make([]models.RepositoryVersion, 0, len(repo.Tags))
	for versionID := range repo.Tags {
		v, getErr := s.repoPipeline.GetVersion(c.Request.Context(), repositoryID, versionID)
		if getErr != nil {
			writeErr(c, getErr)
			return
		}
		if v != nil {
			versions = append(versions, *v)
		}
	}
	writeJSON(c, http.StatusOK, versions)
}

func (s *Server) getRepositoryVersion(c *gin.Context) {
	repositoryID := c.Param("id")
	versionID := c.Param("vid")
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceRepositoryVersion, ""), models.Permission{Kind: models.PermRead}); err != nil {
		writeErr(c, err)
		return
	}
	version, err := s.repoPipeline.GetVersion(c.Request.Context(), repositoryID, versionID)
	if err != nil {
		writeErr(c, err)
		return
	}
	if version == nil {
		writeErr(c, apperrors.UnknownResource(string(models.ResourceRepositoryVersion), versionID))
		return
	}
	writeJSON(c, http.StatusOK, version)
}

func (s *Server) createRepositoryVersion(c *gin.Context) {
	repositoryID := c.Param("id")
	versionID := c.Param("vid")
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceRepositoryVersion, ""), models.Permission{Kind: models.PermCreate}); err != nil {
		writeErr(c, err)
		return
	}
	var body struct {
		Reference string `json:"reference"`
	}
	if bindErr := c.ShouldBindJSON(&body); bindErr != nil {
		writeErr(c, apperrors.Wrap(apperrors.KindFailure, "decode version request", bindErr))
		return
	}
	repo, err := s.repositories.Get(c.Request.Context(), repositoryID)
	if err != nil {
		writeErr(c, err)
		return
	}
	if repo == nil {
		writeErr(c, apperrors.UnknownResource(string(models.ResourceRepository), repositoryID))
		return
	}
	if err := s.repoPipeline.CreateVersion(c.Request.Context(), repositoryID, versionID, body.Reference); err != nil {
		writeErr(c, err)
		return
	}
	if repo.Tags == nil {
		repo.Tags = map[string]string{}
	}
	repo.Tags[versionID] = body.Reference
	if err := s.repositories.Put(c.Request.Context(), *repo); err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"repositoryId": repositoryID, "versionId": versionID})
}

func (s *Server) deleteRepositoryVersion(c *gin.Context) {
	repositoryID := c.Param("id")
	versionID := c.Param("vid")
	caller := auth.CallerFrom(c)
	if err := s.authz.Ensure(c.Request.Context(), caller, authzTarget(models.ResourceRepositoryVersion, ""), models.Permission{Kind: models.PermDelete}); err != nil {
		writeErr(c, err)
		return
	}
	repo, err := s.repositories.Get(c.Request.Context(), repositoryID)
	if err != nil {
		writeErr(c, err)
		return
	}
	if repo != nil && repo.Tags != nil {
		delete(repo.Tags, versionID)
		if err := s.repositories.Put(c.Request.Context(), *repo); err != nil {
			writeErr(c, err)
			return
		}
	}
	writeNoContent(c)
}
