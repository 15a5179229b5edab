// Package pool derives Pool (spec §3) at read time from Nodes labeled
// app.playground/pool=<id> and typed app.playground/pool-type=user; it is
// never persisted by the control plane.
package pool

import (
	"context"
	"fmt"

	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/k8s"
	"github.com/streamspace/playground/internal/models"
)

const (
	poolLabel         = "app.playground/pool"
	poolTypeLabel     = "app.playground/pool-type"
	poolTypeUser      = "user"
	instanceTypeLabel = "node.kubernetes.io/instance-type"
	hostnameLabel     = "kubernetes.io/hostname"
)

type Resolver struct {
	gw                 *k8s.Gateway
	maxSessionsPerNode int
}

func NewResolver(gw *k8s.Gateway, maxSessionsPerNode int) *Resolver {
	return &Resolver{gw: gw, maxSessionsPerNode: maxSessionsPerNode}
}

// Get resolves a Pool by id, or (nil, nil) if no user-typed node carries
// that pool label.
func (r *Resolver) Get(ctx context.Context, id string) (*models.Pool, *apperrors.AppError) {
	selector := fmt.Sprintf("%s=%s,%s=%s", poolLabel, id, poolTypeLabel, poolTypeUser)
	nodes, err := r.gw.ListNodesByLabel(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	instanceType := nodes[0].Labels[instanceTypeLabel]
	result := &models.Pool{
		ID:                 id,
		InstanceType:       instanceType,
		MaxSessionsPerNode: r.maxSessionsPerNode,
	}
	for _, n := range nodes {
		hostname := n.Labels[hostnameLabel]
		if hostname == "" {
			hostname = n.Name
		}
		result.Nodes = append(result.Nodes, models.Node{Hostname: hostname})
	}
	return result, nil
}

// List enumerates all distinct pool ids carried by user-typed nodes.
func (r *Resolver) List(ctx context.Context) ([]models.Pool, *apperrors.AppError) {
	nodes, err := r.gw.ListNodesByLabel(ctx, fmt.Sprintf("%s=%s", poolTypeLabel, poolTypeUser))
	if err != nil {
		return nil, err
	}
	byID := map[string]*models.Pool{}
	order := []string{}
	for _, n := range nodes {
		id, ok := n.Labels[poolLabel]
		if !ok {
			continue
		}
		p, exists := byID[id]
		if !exists {
			p = &models.Pool{ID: id, InstanceType: n.Labels[instanceTypeLabel], MaxSessionsPerNode: r.maxSessionsPerNode}
			byID[id] = p
			order = append(order, id)
		}
		hostname := n.Labels[hostnameLabel]
		if hostname == "" {
			hostname = n.Name
		}
		p.Nodes = append(p.Nodes, models.Node{Hostname: hostname})
	}
	pools := make([]models.Pool, 0, len(order))
	for _, id := range order {
		pools = append(pools, *byID[id])
	}
	return pools, nil
}

// Capacity returns the admission ceiling for a pool: |pool.nodes| * max_sessions_per_node.
func Capacity(p *models.Pool) int {
	return len(p.Nodes) * p.MaxSessionsPerNode
}
