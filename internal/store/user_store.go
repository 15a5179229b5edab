package store

import (
	"encoding/json"
	"context"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/k8s"
	"github.com/streamspace/playground/internal/logger"
	"github.com/streamspace/playground/internal/models"
)

const (
	resourceIDLabel       = "RESOURCE_ID"
	roleAnnotation        = "ROLE"
	preferencesAnnotation = "PREFERENCES"
	appLabel              = "app.kubernetes.io/part-of"
	appValue              = "playground"
	componentLabel        = "app.kubernetes.io/component"
	userComponent         = "user"

	// sessionServiceAccountName is created in every user namespace
	// alongside the Namespace itself (SUPPLEMENT, see SPEC_FULL.md §2.3,
	// grounded on kubernetes/user.rs's create_user).
	sessionServiceAccountName = "session-service-account"
)

// UserNamespace returns the Namespace name a User with the given id is
// persisted as (spec §6: "Namespace whose name is user-<id>").
func UserNamespace(id string) string {
	return "user-" + id
}

// UserStore persists User entries as Kubernetes Namespaces (spec §3/§6).
type UserStore struct {
	gw  *k8s.Gateway
}

func NewUserStore(gw *k8s.Gateway) *UserStore {
	return &UserStore{gw: gw}
}

func namespaceToUser(ns *corev1.Namespace) (*models.User, *apperrors.AppError) {
	id, ok := ns.Labels[resourceIDLabel]
	if !ok {
		return nil, apperrors.MissingAnnotation(resourceIDLabel)
	}
	role, ok := ns.Annotations[roleAnnotation]
	if !ok {
		return nil, apperrors.MissingAnnotation(roleAnnotation)
	}
	prefsRaw, ok := ns.Annotations[preferencesAnnotation]
	if !ok {
		return nil, apperrors.MissingAnnotation(preferencesAnnotation)
	}
	prefs := map[string]string{}
	if err := json.Unmarshal([]byte(prefsRaw), &prefs); err != nil {
		return nil, apperrors.Wrap(apperrors.KindFailure, "deserialize preferences for "+id, err)
	}
	return &models.User{ID: id, Role: role, Preferences: prefs}, nil
}

func userToNamespace(user *models.User) (*corev1.Namespace, *apperrors.AppError) {
	prefsRaw, err := json.Marshal(user.Preferences)
	if err != nil {
		return nil, apperrors.Failure(err)
	}
	return &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: UserNamespace(user.ID),
			Labels: map[string]string{
				appLabel:        appValue,
				componentLabel:  userComponent,
				resourceIDLabel: user.ID,
			},
			Annotations: map[string]string{
				roleAnnotation:        user.Role,
				preferencesAnnotation: string(prefsRaw),
			},
		},
	}, nil
}

func (s *UserStore) Get(ctx context.Context, id string) (*models.User, *apperrors.AppError) {
	ns, err := s.gw.GetNamespace(ctx, UserNamespace(id))
	if err != nil || ns == nil {
		return nil, err
	}
	return namespaceToUser(ns)
}

func (s *UserStore) List(ctx context.Context) ([]models.User, *apperrors.AppError) {
	namespaces, err := s.gw.ListNamespacesByLabel(ctx, componentLabel+"="+userComponent)
	if err != nil {
		return nil, err
	}
	log := logger.Store()
	users := make([]models.User, 0, len(namespaces))
	for i := range namespaces {
		user, convErr := namespaceToUser(&namespaces[i])
		if convErr != nil {
			log.Warn().Err(convErr).Str("namespace", namespaces[i].Name).Msg("skipping malformed user namespace")
			continue
		}
		users = append(users, *user)
	}
	return users, nil
}

// Create creates the user Namespace and the per-user session service
// account (SUPPLEMENT). Fails with a Failure kind if the namespace already
// exists; the caller (the REST handler) is responsible
// for mapping any idempotence semantics it needs on top of this.
func (s *UserStore) Create(ctx context.Context, id string, conf models.UserConfiguration) *apperrors.AppError {
	user := &models.User{ID: id, Role: conf.Role, Preferences: conf.Preferences}
	if user.Preferences == nil {
		user.Preferences = map[string]string{}
	}
	ns, err := userToNamespace(user)
	if err != nil {
		return err
	}
	if createErr := s.gw.CreateNamespace(ctx, ns); createErr != nil {
		return createErr
	}
	sa := &corev1.ServiceAccount{ObjectMeta: metav1.ObjectMeta{Name: sessionServiceAccountName}}
	return s.gw.CreateServiceAccount(ctx, ns.Name, sa)
}

func (s *UserStore) Update(ctx context.Context, id string, conf models.UserUpdateConfiguration) *apperrors.AppError {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperrors.UnknownResource(string(models.ResourceUser), id)
	}
	ns, getErr := s.gw.GetNamespace(ctx, UserNamespace(id))
	if getErr != nil {
		return getErr
	}
	if ns.Annotations == nil {
		ns.Annotations = map[string]string{}
	}
	if conf.Role != existing.Role {
		ns.Annotations[roleAnnotation] = conf.Role
	}
	if conf.Preferences != nil {
		raw, jsonErr := json.Marshal(conf.Preferences)
		if jsonErr != nil {
			return apperrors.Failure(jsonErr)
		}
		ns.Annotations[preferencesAnnotation] = string(raw)
	}
	return s.gw.UpdateNamespace(ctx, ns)
}

func (s *UserStore) Delete(ctx context.Context, id string) *apperrors.AppError {
	return s.gw.DeleteNamespace(ctx, UserNamespace(id), nil)
}
