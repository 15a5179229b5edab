// Package store implements the Resource Store (C2): get/list/put/delete for
// Role and Repository (control-namespace config maps), User (cluster-wide
// Namespaces), over the Cluster Gateway. Values are serialized as JSON text
// — the canonical "nested mapping → text" form spec §4.2 asks for — and a
// deserialization failure on one list entry is skipped and logged rather
// than failing the whole list.
package store

import (
	"context"
	"encoding/json"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/streamspace/playground/internal/cache"
	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/k8s"
	"github.com/streamspace/playground/internal/logger"
	"github.com/streamspace/playground/internal/models"
)

const (
	RolesConfigMapName        = "playground-roles"
	RepositoriesConfigMapName = "playground-repositories"

	// entryTTL bounds how long a stale Role/Repository entry can survive
	// in cache after a Put/Delete on another replica.
	entryTTL = 30 * time.Second
)

// configMapStore is a generic get/list/put/delete over one config map's
// key/value data, shared by RoleStore and RepositoryStore. Reads go
// through an optional Redis cache keyed by listKey/entryKey; writes
// invalidate rather than update the cache, so a torn write never leaves
// a stale hit behind.
type configMapStore struct {
	gw        *k8s.Gateway
	namespace string
	cmName    string
	cache     *cache.Cache
	entryKey  func(id string) string
	listKey   func() string
}

func (s *configMapStore) get(ctx context.Context, key string) (string, bool, *apperrors.AppError) {
	if s.cache.IsEnabled() {
		var cached string
		if hit, cacheErr := s.cache.Get(ctx, s.entryKey(key), &cached); cacheErr == nil && hit {
			return cached, true, nil
		}
	}
	cm, err := s.gw.GetConfigMap(ctx, s.namespace, s.cmName)
	if err != nil {
		return "", false, err
	}
	if cm == nil || cm.Data == nil {
		return "", false, nil
	}
	v, ok := cm.Data[key]
	if ok {
		_ = s.cache.Set(ctx, s.entryKey(key), v, entryTTL)
	}
	return v, ok, nil
}

func (s *configMapStore) list(ctx context.Context) (map[string]string, *apperrors.AppError) {
	if s.cache.IsEnabled() {
		var cached map[string]string
		if hit, cacheErr := s.cache.Get(ctx, s.listKey(), &cached); cacheErr == nil && hit {
			return cached, nil
		}
	}
	cm, err := s.gw.GetConfigMap(ctx, s.namespace, s.cmName)
	if err != nil {
		return nil, err
	}
	data := map[string]string{}
	if cm != nil {
		data = cm.Data
	}
	_ = s.cache.Set(ctx, s.listKey(), data, entryTTL)
	return data, nil
}

func (s *configMapStore) put(ctx context.Context, key, value string) *apperrors.AppError {
	cm, err := s.gw.GetConfigMap(ctx, s.namespace, s.cmName)
	if err != nil {
		return err
	}
	if cm == nil {
		cm = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: s.cmName, Namespace: s.namespace},
			Data:       map[string]string{},
		}
		cm.Data[key] = value
		if createErr := s.gw.CreateConfigMap(ctx, s.namespace, cm); createErr != nil {
			return createErr
		}
		s.invalidate(ctx, key)
		return nil
	}
	if cm.Data == nil {
		cm.Data = map[string]string{}
	}
	cm.Data[key] = value
	if updateErr := s.gw.UpdateConfigMap(ctx, s.namespace, cm); updateErr != nil {
		return updateErr
	}
	s.invalidate(ctx, key)
	return nil
}

func (s *configMapStore) delete(ctx context.Context, key string) *apperrors.AppError {
	cm, err := s.gw.GetConfigMap(ctx, s.namespace, s.cmName)
	if err != nil {
		return err
	}
	if cm == nil || cm.Data == nil {
		return nil
	}
	if _, ok := cm.Data[key]; !ok {
		return nil
	}
	delete(cm.Data, key)
	if updateErr := s.gw.UpdateConfigMap(ctx, s.namespace, cm); updateErr != nil {
		return updateErr
	}
	s.invalidate(ctx, key)
	return nil
}

func (s *configMapStore) invalidate(ctx context.Context, key string) {
	_ = s.cache.Delete(ctx, s.entryKey(key), s.listKey())
}

// RoleStore persists Role entries in the playground-roles config map.
type RoleStore struct {
	inner *configMapStore
}

func NewRoleStore(gw *k8s.Gateway, controlNamespace string, c *cache.Cache) *RoleStore {
	return &RoleStore{inner: &configMapStore{
		gw: gw, namespace: controlNamespace, cmName: RolesConfigMapName,
		cache: c, entryKey: cache.RoleKey, listKey: cache.RoleListKey,
	}}
}

func (s *RoleStore) Get(ctx context.Context, id string) (*models.Role, *apperrors.AppError) {
	raw, ok, err := s.inner.get(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	var role models.Role
	if jsonErr := json.Unmarshal([]byte(raw), &role); jsonErr != nil {
		return nil, apperrors.Wrap(apperrors.KindFailure, "deserialize role "+id, jsonErr)
	}
	return &role, nil
}

func (s *RoleStore) List(ctx context.Context) ([]models.Role, *apperrors.AppError) {
	data, err := s.inner.list(ctx)
	if err != nil {
		return nil, err
	}
	roles := make([]models.Role, 0, len(data))
	log := logger.Store()
	for id, raw := range data {
		var role models.Role
		if jsonErr := json.Unmarshal([]byte(raw), &role); jsonErr != nil {
			log.Warn().Err(jsonErr).Str("roleId", id).Msg("skipping malformed role entry")
			continue
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (s *RoleStore) Put(ctx context.Context, role models.Role) *apperrors.AppError {
	raw, jsonErr := json.Marshal(role)
	if jsonErr != nil {
		return apperrors.Failure(jsonErr)
	}
	return s.inner.put(ctx, role.ID, string(raw))
}

func (s *RoleStore) Delete(ctx context.Context, id string) *apperrors.AppError {
	return s.inner.delete(ctx, id)
}

// RepositoryStore persists Repository entries in the playground-repositories config map.
type RepositoryStore struct {
	inner *configMapStore
}

func NewRepositoryStore(gw *k8s.Gateway, controlNamespace string, c *cache.Cache) *RepositoryStore {
	return &RepositoryStore{inner: &configMapStore{
		gw: gw, namespace: controlNamespace, cmName: RepositoriesConfigMapName,
		cache: c, entryKey: cache.RepositoryKey, listKey: cache.RepositoryListKey,
	}}
}

func (s *RepositoryStore) Get(ctx context.Context, id string) (*models.Repository, *apperrors.AppError) {
	raw, ok, err := s.inner.get(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	var repo models.Repository
	if jsonErr := json.Unmarshal([]byte(raw), &repo); jsonErr != nil {
		return nil, apperrors.Wrap(apperrors.KindFailure, "deserialize repository "+id, jsonErr)
	}
	return &repo, nil
}

func (s *RepositoryStore) List(ctx context.Context) ([]models.Repository, *apperrors.AppError) {
	data, err := s.inner.list(ctx)
	if err != nil {
		return nil, err
	}
	repos := make([]models.Repository, 0, len(data))
	log := logger.Store()
	for id, raw := range data {
		var repo models.Repository
		if jsonErr := json.Unmarshal([]byte(raw), &repo); jsonErr != nil {
			log.Warn().Err(jsonErr).Str("repositoryId", id).Msg("skipping malformed repository entry")
			continue
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

func (s *RepositoryStore) Put(ctx context.Context, repo models.Repository) *apperrors.AppError {
	raw, jsonErr := json.Marshal(repo)
	if jsonErr != nil {
		return apperrors.Failure(jsonErr)
	}
	return s.inner.put(ctx, repo.ID, string(raw))
}

func (s *RepositoryStore) Delete(ctx context.Context, id string) *apperrors.AppError {
	return s.inner.delete(ctx, id)
}
