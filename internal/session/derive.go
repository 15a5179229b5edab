package session

import (
	"encoding/json"
	"strconv"
	"time"

	corev1 "k8s.io/api/core/v1"

	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/models"
)

// deriveSession reconstructs a Session from its Pod, per spec §4.5's state
// derivation table. The control plane holds no authoritative in-memory
// session state: user id, max duration, repository source, and runtime are
// all read back from pod labels/annotations on every call.
func deriveSession(sessionID string, pod *corev1.Pod) (*models.Session, *apperrors.AppError) {
	ownerID, ok := pod.Labels[OwnerLabel]
	if !ok {
		return nil, apperrors.MissingAnnotation(OwnerLabel)
	}

	durationRaw, ok := pod.Annotations[SessionDurationAnnotation]
	if !ok {
		return nil, apperrors.MissingAnnotation(SessionDurationAnnotation)
	}
	durationMins, parseErr := parseMinutes(durationRaw)
	if parseErr != nil {
		return nil, apperrors.MissingData(SessionDurationAnnotation)
	}

	sourceRaw, ok := pod.Annotations[RepositorySourceAnnotation]
	if !ok {
		return nil, apperrors.MissingAnnotation(RepositorySourceAnnotation)
	}
	var source models.RepositorySource
	if err := json.Unmarshal([]byte(sourceRaw), &source); err != nil {
		return nil, apperrors.MissingData(RepositorySourceAnnotation)
	}

	state, err := derivePhase(pod)
	if err != nil {
		return nil, err
	}

	return &models.Session{
		ID:               sessionID,
		UserID:           ownerID,
		MaxDuration:      durationMins,
		RepositorySource: source,
		State:            state,
	}, nil
}

func derivePhase(pod *corev1.Pod) (models.SessionState, *apperrors.AppError) {
	switch pod.Status.Phase {
	case corev1.PodPending, "":
		return models.SessionState{Tag: models.SessionDeploying}, nil
	case corev1.PodRunning:
		var runtime *models.RuntimeConfiguration
		if templateRaw, ok := pod.Annotations[TemplateAnnotation]; ok {
			var decoded models.RuntimeConfiguration
			if err := json.Unmarshal([]byte(templateRaw), &decoded); err == nil {
				runtime = &decoded
			}
		}
		var start *models.UnixSeconds
		if pod.Status.StartTime != nil {
			s := models.UnixSecondsFromTime(pod.Status.StartTime.Time)
			start = &s
		}
		return models.SessionState{
			Tag:       models.SessionRunning,
			StartTime: start,
			Node:      pod.Spec.NodeName,
			Runtime:   runtime,
		}, nil
	case corev1.PodFailed:
		reason, message := failureReason(pod)
		return models.SessionState{Tag: models.SessionFailed, Reason: reason, Message: message}, nil
	default:
		// Unknown phase: spec §4.5 treats this the same as missing - the
		// session is absent. Callers must check for this by comparing
		// against the zero Tag.
		return models.SessionState{}, nil
	}
}

func failureReason(pod *corev1.Pod) (string, string) {
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.State.Terminated != nil {
			return cs.State.Terminated.Reason, cs.State.Terminated.Message
		}
	}
	return pod.Status.Reason, pod.Status.Message
}

func parseMinutes(raw string) (models.Minutes, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return models.MinutesFromDuration(time.Duration(n) * time.Minute), nil
}
