package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/streamspace/playground/internal/auth"
	"github.com/streamspace/playground/internal/authz"
	"github.com/streamspace/playground/internal/ingress"
	"github.com/streamspace/playground/internal/k8s"
	"github.com/streamspace/playground/internal/metrics"
	"github.com/streamspace/playground/internal/models"
	"github.com/streamspace/playground/internal/pool"
	"github.com/streamspace/playground/internal/repository"
	"github.com/streamspace/playground/internal/session"
	"github.com/streamspace/playground/internal/store"
)

const (
	controlNamespace = "playground"
	clusterHost      = "playground.example.com"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*gin.Engine, *auth.Manager, *store.RoleStore) {
	t.Helper()
	cs := fake.NewSimpleClientset()
	gw := k8s.NewWithClientset(cs)

	roleStore := store.NewRoleStore(gw, controlNamespace, nil)
	repositoryStore := store.NewRepositoryStore(gw, controlNamespace, nil)
	userStore := store.NewUserStore(gw)
	authorizer := authz.New(roleStore)
	poolResolver := pool.NewResolver(gw, 4)
	repoPipeline := repository.New(gw, controlNamespace, "ghcr.io/example/builder:latest")
	ingressRouter := ingress.New(gw, controlNamespace)
	require.Nil(t, ingressRouter.EnsureExists(context.Background(), clusterHost))
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	log := zerolog.Nop()
	orchestrator := session.New(gw, &log, controlNamespace, clusterHost, ingressRouter, poolResolver, repoPipeline, rec,
		"default", 30*time.Minute, 120*time.Minute)

	srv := New(authorizer, userStore, repositoryStore, repoPipeline, poolResolver, orchestrator, &log, clusterHost)

	engine := gin.New()
	authManager := auth.NewManager("test-secret", "playground-test")
	engine.GET("/", srv.getMetadata)
	authenticated := engine.Group("/")
	authenticated.Use(func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		authManager.RequireBearer()(c)
	})
	srv.RegisterRoutes(authenticated)
	return engine, authManager, roleStore
}

func bearer(t *testing.T, m *auth.Manager, caller models.Caller) string {
	t.Helper()
	token, err := m.GenerateToken(caller, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestGetMetadataAnonymous(t *testing.T) {
	engine, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, clusterHost, body["host"])
	assert.Nil(t, body["user"])
}

func TestCreateThenGetUserAsAdmin(t *testing.T) {
	engine, m, _ := newTestServer(t)
	token := bearer(t, m, models.Caller{ID: "root", Admin: true})

	payload, err := json.Marshal(models.UserConfiguration{Role: "operator"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/users/alice", bytes.NewReader(payload))
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/users/alice", nil)
	req.Header.Set("Authorization", token)
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.ID)
	assert.Equal(t, "operator", user.Role)
}

func TestGetUserWithoutTokenIsDenied(t *testing.T) {
	engine, m, _ := newTestServer(t)
	adminToken := bearer(t, m, models.Caller{ID: "root", Admin: true})

	payload, err := json.Marshal(models.UserConfiguration{Role: "operator"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/users/alice", bytes.NewReader(payload))
	req.Header.Set("Authorization", adminToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/users/alice", nil)
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListUsersDeniedForUnprivilegedCaller(t *testing.T) {
	engine, m, _ := newTestServer(t)
	token := bearer(t, m, models.Caller{ID: "bob"})

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetOwnUserIsAllowedViaSelfService(t *testing.T) {
	engine, m, _ := newTestServer(t)
	adminToken := bearer(t, m, models.Caller{ID: "root", Admin: true})

	payload, err := json.Marshal(models.UserConfiguration{Role: "operator"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/users/alice", bytes.NewReader(payload))
	req.Header.Set("Authorization", adminToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	selfToken := bearer(t, m, models.Caller{ID: "alice"})
	req = httptest.NewRequest(http.MethodGet, "/users/alice", nil)
	req.Header.Set("Authorization", selfToken)
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateSessionUnderAnotherUsersIDRequiresCustomizeSessionNamePermission(t *testing.T) {
	engine, m, roleStore := newTestServer(t)
	require.Nil(t, roleStore.Put(context.Background(), models.Role{
		ID: "member",
		Permissions: []models.PermissionTuple{
			{Resource: models.ResourceSession, Permission: models.Permission{Kind: models.PermCreate}},
		},
	}))

	token := bearer(t, m, models.Caller{ID: "alice", RoleID: "member"})
	payload, err := json.Marshal(models.SessionConfiguration{
		RepositorySource: models.RepositorySource{RepositoryID: "repo1", VersionID: "v1"},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/sessions/bob", bytes.NewReader(payload))
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetMissingRepositoryReturnsNotFound(t *testing.T) {
	engine, m, _ := newTestServer(t)
	token := bearer(t, m, models.Caller{ID: "root", Admin: true})

	req := httptest.NewRequest(http.MethodGet, "/repositories/does-not-exist", nil)
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
