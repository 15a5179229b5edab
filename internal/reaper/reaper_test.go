package reaper

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/streamspace/playground/internal/ingress"
	"github.com/streamspace/playground/internal/k8s"
	"github.com/streamspace/playground/internal/metrics"
	"github.com/streamspace/playground/internal/models"
	"github.com/streamspace/playground/internal/pool"
	"github.com/streamspace/playground/internal/repository"
	"github.com/streamspace/playground/internal/session"
)

const controlNamespace = "playground"
const clusterHost = "playground.example.com"

func sessionNamespace(id string) *corev1.Namespace {
	return &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{
		Name:   "session-" + id,
		Labels: map[string]string{"NAMESPACE_TYPE": "NAMESPACE_SESSION"},
	}}
}

func sessionPod(id, namespace string, phase corev1.PodPhase, startTime time.Time, durationMinutes int) *corev1.Pod {
	source, _ := json.Marshal(models.RepositorySource{RepositoryID: "repo1", VersionID: "v1"})
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "session",
			Namespace: namespace,
			Labels:    map[string]string{"owner": "alice"},
			Annotations: map[string]string{
				"playground.substrate.io/session_duration":  strconv.Itoa(durationMinutes),
				"playground.substrate.io/repository_source": string(source),
			},
		},
		Spec: corev1.PodSpec{NodeName: "node-a"},
		Status: corev1.PodStatus{
			Phase:     phase,
			StartTime: &metav1.Time{Time: startTime},
		},
	}
}

func newTestLoop(cs *fake.Clientset) *Loop {
	gw := k8s.NewWithClientset(cs)
	ingressRouter := ingress.New(gw, controlNamespace)
	if err := ingressRouter.EnsureExists(context.Background(), clusterHost); err != nil {
		panic(err)
	}
	poolResolver := pool.NewResolver(gw, 4)
	repoPipeline := repository.New(gw, controlNamespace, "ghcr.io/example/builder:latest")
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	log := zerolog.Nop()
	orchestrator := session.New(gw, &log, controlNamespace, clusterHost, ingressRouter, poolResolver, repoPipeline, rec,
		"default", 30*time.Minute, 120*time.Minute)
	return New(orchestrator, ingressRouter, clusterHost, rec, &log)
}

func TestTickDeletesExpiredRunningSession(t *testing.T) {
	ns := sessionNamespace("sess-1")
	pod := sessionPod("sess-1", ns.Name, corev1.PodRunning, time.Now().Add(-2*time.Hour), 1)
	cs := fake.NewSimpleClientset(ns, pod)
	loop := newTestLoop(cs)

	loop.tick(context.Background())

	_, err := cs.CoreV1().Namespaces().Get(context.Background(), ns.Name, metav1.GetOptions{})
	assert.Error(t, err)
}

func TestTickLeavesFreshSessionRunning(t *testing.T) {
	ns := sessionNamespace("sess-1")
	pod := sessionPod("sess-1", ns.Name, corev1.PodRunning, time.Now(), 60)
	cs := fake.NewSimpleClientset(ns, pod)
	loop := newTestLoop(cs)

	loop.tick(context.Background())

	_, err := cs.CoreV1().Namespaces().Get(context.Background(), ns.Name, metav1.GetOptions{})
	assert.NoError(t, err)
}

func TestFixUpRestoresIngressRuleForRunningSession(t *testing.T) {
	ns := sessionNamespace("sess-1")
	pod := sessionPod("sess-1", ns.Name, corev1.PodRunning, time.Now(), 60)
	cs := fake.NewSimpleClientset(ns, pod)
	loop := newTestLoop(cs)

	require.Nil(t, loop.fixUp(context.Background()))

	hosts, err := loop.ingress.Hosts(context.Background())
	require.Nil(t, err)
	assert.Contains(t, hosts, "sess-1.playground.example.com")
}
