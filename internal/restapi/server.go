// Package restapi implements the HTTP boundary (spec §6): it takes the
// caller from the bearer token's claims, and delegates every resource operation to
// Authorization plus the component that owns the resource (C2 Resource
// Store, C4 Repository Pipeline, C5 Session Orchestrator).
package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/streamspace/playground/internal/authz"
	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/models"
	"github.com/streamspace/playground/internal/pool"
	"github.com/streamspace/playground/internal/repository"
	"github.com/streamspace/playground/internal/session"
	"github.com/streamspace/playground/internal/store"
)

// Server holds every collaborator an HTTP handler delegates to.
type Server struct {
	authz        *authz.Authorizer
	users        *store.UserStore
	repositories *store.RepositoryStore
	repoPipeline *repository.Pipeline
	pools        *pool.Resolver
	sessions     *session.Orchestrator
	log          *zerolog.Logger
	clusterHost  string
}

func New(
	authorizer *authz.Authorizer,
	users *store.UserStore,
	repositories *store.RepositoryStore,
	repoPipeline *repository.Pipeline,
	pools *pool.Resolver,
	sessions *session.Orchestrator,
	log *zerolog.Logger,
	clusterHost string,
) *Server {
	return &Server{
		authz:        authorizer,
		users:        users,
		repositories: repositories,
		repoPipeline: repoPipeline,
		pools:        pools,
		sessions:     sessions,
		log:          log,
		clusterHost:  clusterHost,
	}
}

// RegisterRoutes wires the full route table of spec §6.
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.GET("/", s.getMetadata)

	r.GET("/users", s.listUsers)
	r.GET("/users/:id", s.getUser)
	r.PUT("/users/:id", s.createUser)
	r.PATCH("/users/:id", s.updateUser)
	r.DELETE("/users/:id", s.deleteUser)

	r.GET("/repositories", s.listRepositories)
	r.GET("/repositories/:id", s.getRepository)
	r.PUT("/repositories/:id", s.putRepository)
	r.PATCH("/repositories/:id", s.patchRepository)
	r.DELETE("/repositories/:id", s.deleteRepository)

	r.GET("/repositories/:id/versions", s.listRepositoryVersions)
	r.GET("/repositories/:id/versions/:vid", s.getRepositoryVersion)
	r.PUT("/repositories/:id/versions/:vid", s.createRepositoryVersion)
	r.DELETE("/repositories/:id/versions/:vid", s.deleteRepositoryVersion)

	r.GET("/pools", s.listPools)
	r.GET("/pools/:id", s.getPool)

	r.GET("/sessions", s.listSessions)
	r.GET("/sessions/:id", s.getSession)
	r.PUT("/sessions/:id", s.createSession)
	r.PATCH("/sessions/:id", s.updateSession)
	r.DELETE("/sessions/:id", s.deleteSession)
	r.PUT("/sessions/:id/execution", s.execSession)
}

func writeErr(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.StatusCode, err.ToResponse())
}

func writeJSON(c *gin.Context, status int, body interface{}) {
	c.JSON(status, body)
}

func writeNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func authzTarget(resourceType models.ResourceType, ownerID string) authz.Target {
	return authz.Target{Type: resourceType, OwnerID: ownerID}
}
