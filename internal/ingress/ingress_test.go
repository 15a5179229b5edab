package ingress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/streamspace/playground/internal/k8s"
)

const namespace = "playground"

func newTestRouter() *Router {
	return New(k8s.NewWithClientset(fake.NewSimpleClientset()), namespace)
}

func TestHost(t *testing.T) {
	assert.Equal(t, "sess-1.playground.example.com", Host("sess-1", "playground.example.com"))
}

func TestEnsureExistsCreatesSingleton(t *testing.T) {
	r := newTestRouter()
	ctx := context.Background()

	require.Nil(t, r.EnsureExists(ctx, "playground.example.com"))

	hosts, err := r.Hosts(ctx)
	require.Nil(t, err)
	assert.Equal(t, []string{"playground.example.com"}, hosts)
}

func TestEnsureExistsIsIdempotent(t *testing.T) {
	r := newTestRouter()
	ctx := context.Background()

	require.Nil(t, r.EnsureExists(ctx, "playground.example.com"))
	require.Nil(t, r.EnsureExists(ctx, "playground.example.com"))

	hosts, err := r.Hosts(ctx)
	require.Nil(t, err)
	assert.Len(t, hosts, 1)
}

func TestUpsertAddsAndReplacesRule(t *testing.T) {
	r := newTestRouter()
	ctx := context.Background()
	require.Nil(t, r.EnsureExists(ctx, "playground.example.com"))

	require.Nil(t, r.Upsert(ctx, Rule{Host: "sess-1.playground.example.com", ServiceName: "sess-1"}))
	hosts, err := r.Hosts(ctx)
	require.Nil(t, err)
	assert.Contains(t, hosts, "sess-1.playground.example.com")

	require.Nil(t, r.Upsert(ctx, Rule{Host: "sess-1.playground.example.com", ServiceName: "sess-1-v2"}))
	hosts, err = r.Hosts(ctx)
	require.Nil(t, err)

	count := 0
	for _, h := range hosts {
		if h == "sess-1.playground.example.com" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := newTestRouter()
	ctx := context.Background()
	require.Nil(t, r.EnsureExists(ctx, "playground.example.com"))
	require.Nil(t, r.Upsert(ctx, Rule{Host: "sess-1.playground.example.com", ServiceName: "sess-1"}))

	require.Nil(t, r.Remove(ctx, "sess-1.playground.example.com"))
	require.Nil(t, r.Remove(ctx, "sess-1.playground.example.com"))

	hosts, err := r.Hosts(ctx)
	require.Nil(t, err)
	assert.NotContains(t, hosts, "sess-1.playground.example.com")
}

func TestReplaceAllOverwritesRuleSet(t *testing.T) {
	r := newTestRouter()
	ctx := context.Background()
	require.Nil(t, r.EnsureExists(ctx, "playground.example.com"))
	require.Nil(t, r.Upsert(ctx, Rule{Host: "stale.playground.example.com", ServiceName: "stale"}))

	require.Nil(t, r.ReplaceAll(ctx, []Rule{
		{Host: "sess-1.playground.example.com", ServiceName: "sess-1"},
		{Host: "sess-2.playground.example.com", ServiceName: "sess-2"},
	}, nil))

	hosts, err := r.Hosts(ctx)
	require.Nil(t, err)
	assert.ElementsMatch(t, []string{"sess-1.playground.example.com", "sess-2.playground.example.com"}, hosts)
}

func TestHostsOnMissingIngressReturnsNil(t *testing.T) {
	r := newTestRouter()
	hosts, err := r.Hosts(context.Background())
	assert.Nil(t, err)
	assert.Nil(t, hosts)
}
