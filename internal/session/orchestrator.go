// Package session implements the Session Orchestrator (C5): the admission
// protocol of spec §4.5, the six-step materialization sequence (materialize.go),
// and state derivation from the observed session Pod (derive.go).
package session

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/ingress"
	"github.com/streamspace/playground/internal/k8s"
	"github.com/streamspace/playground/internal/metrics"
	"github.com/streamspace/playground/internal/models"
	"github.com/streamspace/playground/internal/pool"
	"github.com/streamspace/playground/internal/repository"
)

// Orchestrator implements spec §4.5's Create/Get/List/Update/Delete/Exec
// contract for the Session resource.
type Orchestrator struct {
	gw               *k8s.Gateway
	log              *zerolog.Logger
	controlNamespace string
	clusterHost      string

	ingress *ingress.Router
	pools   *pool.Resolver
	repos   *repository.Pipeline
	metrics *metrics.Recorder

	defaultPoolAffinity string
	defaultDuration     time.Duration
	maxDuration         time.Duration

	podName string
}

func New(
	gw *k8s.Gateway,
	log *zerolog.Logger,
	controlNamespace, clusterHost string,
	ingressRouter *ingress.Router,
	pools *pool.Resolver,
	repos *repository.Pipeline,
	rec *metrics.Recorder,
	defaultPoolAffinity string,
	defaultDuration, maxDuration time.Duration,
) *Orchestrator {
	return &Orchestrator{
		gw:                  gw,
		log:                 log,
		controlNamespace:    controlNamespace,
		clusterHost:         clusterHost,
		ingress:             ingressRouter,
		pools:               pools,
		repos:               repos,
		metrics:             rec,
		defaultPoolAffinity: defaultPoolAffinity,
		defaultDuration:     defaultDuration,
		maxDuration:         maxDuration,
		podName:             PodName,
	}
}

// Create runs the admission checks before delegating to materialize:
// idempotence (any pre-existing session with this id fails admission,
// regardless of owner), repository version readiness, pool resolution and
// capacity, and the duration limit (a duration at or above the maximum is
// rejected with DurationLimitBreached, not clamped). Authorization is not
// checked here; the REST handler does it before calling Create.
func (o *Orchestrator) Create(ctx context.Context, caller models.Caller, sessionID string, conf models.SessionConfiguration) (*models.Session, *apperrors.AppError) {
	existing, err := o.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.SessionIDAlreadyUsed(sessionID)
	}

	version, err := o.repos.GetVersion(ctx, conf.RepositorySource.RepositoryID, conf.RepositorySource.VersionID)
	if err != nil {
		return nil, err
	}
	if version == nil || version.State.Tag != models.RepositoryVersionReady {
		return nil, apperrors.RepositoryVersionNotReady(conf.RepositorySource.RepositoryID, conf.RepositorySource.VersionID)
	}

	poolID := o.defaultPoolAffinity
	if caller.PoolAffinity != "" {
		poolID = caller.PoolAffinity
	}
	if conf.PoolAffinity != nil && *conf.PoolAffinity != "" {
		poolID = *conf.PoolAffinity
	}

	p, err := o.pools.Get(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.UnknownResource(string(models.ResourcePool), poolID)
	}

	sessions, err := o.List(ctx, models.Caller{Admin: true})
	if err != nil {
		return nil, err
	}
	inUse := 0
	for _, s := range sessions {
		if s.State.Tag == models.SessionRunning || s.State.Tag == models.SessionDeploying {
			inUse++
		}
	}
	if capacity := pool.Capacity(p); inUse >= capacity {
		return nil, apperrors.ConcurrentSessionsLimitBreached(capacity)
	}

	duration := o.defaultDuration
	if conf.Duration != nil {
		duration = conf.Duration.Duration()
	}
	if duration >= o.maxDuration {
		return nil, apperrors.DurationLimitBreached(o.maxDuration.Milliseconds())
	}

	runtime := models.RuntimeConfiguration{}
	if version.State.Runtime != nil {
		runtime = *version.State.Runtime
	}

	o.metrics.IncDeploy()
	start := time.Now()
	materializeErr := o.materialize(ctx, materializationInput{
		sessionID:    sessionID,
		ownerID:      caller.ID,
		poolID:       poolID,
		durationMins: int64(duration / time.Minute),
		source:       conf.RepositorySource,
		runtime:      runtime,
	})
	if materializeErr != nil {
		o.metrics.IncDeployFailure()
		return nil, materializeErr
	}
	o.metrics.ObserveDeployDurationSeconds(time.Since(start).Seconds())

	return o.Get(ctx, sessionID)
}

// Get returns the session's current derived state, or (nil, nil) if the
// session pod doesn't exist or is in an unrecognized phase (spec §4.5).
func (o *Orchestrator) Get(ctx context.Context, sessionID string) (*models.Session, *apperrors.AppError) {
	pod, err := o.gw.GetPod(ctx, Namespace(sessionID), o.podName)
	if err != nil {
		return nil, err
	}
	if pod == nil {
		return nil, nil
	}
	session, deriveErr := deriveSession(sessionID, pod)
	if deriveErr != nil {
		return nil, deriveErr
	}
	if session.State.Tag == "" {
		return nil, nil
	}
	return session, nil
}

// List enumerates all sessions by scanning session-typed namespaces' pods.
func (o *Orchestrator) List(ctx context.Context, caller models.Caller) ([]models.Session, *apperrors.AppError) {
	namespaces, err := o.gw.ListNamespacesByLabel(ctx, NamespaceTypeLabel+"="+NamespaceTypeSession)
	if err != nil {
		return nil, err
	}
	sessions := make([]models.Session, 0, len(namespaces))
	for _, ns := range namespaces {
		pods, podErr := o.gw.ListPodsByLabel(ctx, ns.Name, "")
		if podErr != nil {
			o.log.Warn().Err(podErr).Str("namespace", ns.Name).Msg("failed to list pods while enumerating sessions")
			continue
		}
		for i := range pods {
			if pods[i].Name != o.podName {
				continue
			}
			sessionID := sessionIDFromNamespace(ns.Name)
			s, deriveErr := deriveSession(sessionID, &pods[i])
			if deriveErr != nil {
				o.log.Warn().Err(deriveErr).Str("sessionId", sessionID).Msg("skipping malformed session pod")
				continue
			}
			if s.State.Tag == "" {
				continue
			}
			if !caller.Admin && s.UserID != caller.ID {
				continue
			}
			sessions = append(sessions, *s)
		}
	}
	return sessions, nil
}

// Update applies a duration-only patch via an annotation update on the
// running pod (spec §4.5 Update semantics); rejects durations at or beyond
// the configured maximum with DurationLimitBreached.
func (o *Orchestrator) Update(ctx context.Context, sessionID string, conf models.SessionUpdateConfiguration) *apperrors.AppError {
	duration := conf.Duration.Duration()
	if duration >= o.maxDuration {
		return apperrors.DurationLimitBreached(o.maxDuration.Milliseconds())
	}
	minutes := int64(duration / time.Minute)
	return o.gw.PatchPodAnnotation(ctx, Namespace(sessionID), o.podName, SessionDurationAnnotation, strconv.FormatInt(minutes, 10))
}

// Delete tears down a session's namespace, external service, and ingress
// rule (spec §4.5 Delete semantics); idempotent.
func (o *Orchestrator) Delete(ctx context.Context, sessionID string) *apperrors.AppError {
	o.metrics.IncUndeploy()
	if err := o.deleteSession(ctx, sessionID); err != nil {
		o.metrics.IncUndeployFailure()
		return err
	}
	return nil
}

// Exec runs argv inside the session's workspace container, draining stdout
// fully, with no stdin or pseudo-TTY (spec §4.5 Exec semantics).
func (o *Orchestrator) Exec(ctx context.Context, sessionID string, argv []string) (models.SessionExecution, *apperrors.AppError) {
	stdout, err := o.gw.Exec(ctx, Namespace(sessionID), o.podName, "workspace", argv)
	if err != nil {
		return models.SessionExecution{}, err
	}
	return models.SessionExecution{Stdout: stdout}, nil
}

func sessionIDFromNamespace(ns string) string {
	prefix := Namespace("")
	if len(ns) > len(prefix) {
		return ns[len(prefix):]
	}
	return ns
}

