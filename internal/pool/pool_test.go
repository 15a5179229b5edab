package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/streamspace/playground/internal/k8s"
)

func labeledNode(name, pool, instanceType, hostname string) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Labels: map[string]string{
				poolLabel:         pool,
				poolTypeLabel:     poolTypeUser,
				instanceTypeLabel: instanceType,
				hostnameLabel:     hostname,
			},
		},
	}
}

func TestResolverGetReturnsPoolWithNodes(t *testing.T) {
	cs := fake.NewSimpleClientset(
		labeledNode("node-a", "gpu", "g4dn.xlarge", "node-a.internal"),
		labeledNode("node-b", "gpu", "g4dn.xlarge", "node-b.internal"),
	)
	r := NewResolver(k8s.NewWithClientset(cs), 4)

	p, err := r.Get(context.Background(), "gpu")
	require.Nil(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "gpu", p.ID)
	assert.Equal(t, "g4dn.xlarge", p.InstanceType)
	assert.Len(t, p.Nodes, 2)
	assert.Equal(t, 8, Capacity(p))
}

func TestResolverGetMissingPoolReturnsNil(t *testing.T) {
	cs := fake.NewSimpleClientset(labeledNode("node-a", "gpu", "g4dn.xlarge", "node-a.internal"))
	r := NewResolver(k8s.NewWithClientset(cs), 4)

	p, err := r.Get(context.Background(), "cpu")
	assert.Nil(t, err)
	assert.Nil(t, p)
}

func TestResolverListGroupsDistinctPools(t *testing.T) {
	cs := fake.NewSimpleClientset(
		labeledNode("node-a", "gpu", "g4dn.xlarge", "node-a.internal"),
		labeledNode("node-b", "cpu", "m5.large", "node-b.internal"),
	)
	r := NewResolver(k8s.NewWithClientset(cs), 2)

	pools, err := r.List(context.Background())
	require.Nil(t, err)
	assert.Len(t, pools, 2)
}

func TestResolverIgnoresNodesWithoutPoolLabel(t *testing.T) {
	unlabeled := &corev1.Node{ObjectMeta: metav1.ObjectMeta{
		Name:   "node-c",
		Labels: map[string]string{poolTypeLabel: poolTypeUser},
	}}
	cs := fake.NewSimpleClientset(unlabeled)
	r := NewResolver(k8s.NewWithClientset(cs), 2)

	pools, err := r.List(context.Background())
	require.Nil(t, err)
	assert.Len(t, pools, 0)
}
