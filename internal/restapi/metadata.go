package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/playground/internal/auth"
	"github.com/streamspace/playground/internal/models"
)

type metadataResponse struct {
	Version string       `json:"version"`
	Host    string       `json:"host"`
	User    *models.User `json:"user,omitempty"`
}

// getMetadata implements "GET /": playground metadata plus the logged user,
// resolved from whatever bearer token (if any) was sent (spec §6).
func (s *Server) getMetadata(c *gin.Context) {
	resp := metadataResponse{Version: "1", Host: s.clusterHost}

	caller := auth.CallerFrom(c)
	if caller.ID != "" {
		user, err := s.users.Get(c.Request.Context(), caller.ID)
		if err != nil {
			writeErr(c, err)
			return
		}
		resp.User = user
	}

	writeJSON(c, http.StatusOK, resp)
}
