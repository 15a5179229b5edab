package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/streamspace/playground/internal/models"
)

func basePod() *corev1.Pod {
	source, _ := json.Marshal(models.RepositorySource{RepositoryID: "repo1", VersionID: "v1"})
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:   PodName,
			Labels: map[string]string{OwnerLabel: "user-1"},
			Annotations: map[string]string{
				SessionDurationAnnotation:  "60",
				RepositorySourceAnnotation: string(source),
			},
		},
	}
}

func TestDeriveSessionPending(t *testing.T) {
	pod := basePod()
	pod.Status.Phase = corev1.PodPending

	session, err := deriveSession("sess-1", pod)
	require.Nil(t, err)
	assert.Equal(t, models.SessionDeploying, session.State.Tag)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, 60*time.Minute, session.MaxDuration.Duration())
}

func TestDeriveSessionRunning(t *testing.T) {
	pod := basePod()
	pod.Status.Phase = corev1.PodRunning
	start := metav1.NewTime(time.Unix(1700000000, 0))
	pod.Status.StartTime = &start
	pod.Spec.NodeName = "node-a"

	session, err := deriveSession("sess-1", pod)
	require.Nil(t, err)
	assert.Equal(t, models.SessionRunning, session.State.Tag)
	assert.Equal(t, "node-a", session.State.Node)
	require.NotNil(t, session.State.StartTime)
	assert.Equal(t, int64(1700000000), session.State.StartTime.Time().Unix())
}

func TestDeriveSessionFailed(t *testing.T) {
	pod := basePod()
	pod.Status.Phase = corev1.PodFailed
	pod.Status.ContainerStatuses = []corev1.ContainerStatus{
		{State: corev1.ContainerState{Terminated: &corev1.ContainerStateTerminated{
			Reason: "OOMKilled", Message: "exceeded memory limit",
		}}},
	}

	session, err := deriveSession("sess-1", pod)
	require.Nil(t, err)
	assert.Equal(t, models.SessionFailed, session.State.Tag)
	assert.Equal(t, "OOMKilled", session.State.Reason)
}

func TestDeriveSessionUnknownPhaseIsAbsent(t *testing.T) {
	pod := basePod()
	pod.Status.Phase = corev1.PodUnknown

	session, err := deriveSession("sess-1", pod)
	require.Nil(t, err)
	assert.Equal(t, models.SessionStateTag(""), session.State.Tag)
}

func TestDeriveSessionMissingOwnerLabel(t *testing.T) {
	pod := basePod()
	delete(pod.Labels, OwnerLabel)

	_, err := deriveSession("sess-1", pod)
	require.NotNil(t, err)
}
