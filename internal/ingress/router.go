// Package ingress implements the Ingress Router (C6): all mutations of the
// singleton control-namespace Ingress are read-modify-write with a full
// rule-list replace, rule identity is the host field, and conflicting
// concurrent writers retry from scratch up to three times (spec §4.6).
package ingress

import (
	"context"

	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/k8s"
	"github.com/streamspace/playground/internal/logger"
)

const (
	IngressName = "ingress"
	maxAttempts = 3

	webPortName = "web"
	webPort     = int32(3000)
)

// Router mutates the singleton Ingress in the control namespace.
type Router struct {
	gw               *k8s.Gateway
	controlNamespace string
}

func New(gw *k8s.Gateway, controlNamespace string) *Router {
	return &Router{gw: gw, controlNamespace: controlNamespace}
}

// Rule is one host's routing configuration: the external-name service it
// points at plus any declared runtime ports beyond the default web port.
type Rule struct {
	Host        string
	ServiceName string
	ExtraPaths  []RulePath
}

type RulePath struct {
	Path string
	Port int32
}

// Host returns the ingress host for a session id (spec §3/§4.5: "<id>.<host>").
func Host(sessionID, clusterHost string) string {
	return sessionID + "." + clusterHost
}

func (r *Router) get(ctx context.Context) (*networkingv1.Ingress, *apperrors.AppError) {
	return r.gw.GetIngress(ctx, r.controlNamespace, IngressName)
}

// EnsureExists creates the singleton Ingress, holding one path-less rule for
// clusterHost, if it doesn't already exist,
// used at startup before the Reaper Loop's fix-up pass (spec §4.7 step 3).
func (r *Router) EnsureExists(ctx context.Context, clusterHost string) *apperrors.AppError {
	existing, err := r.get(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	ing := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{Name: IngressName, Namespace: r.controlNamespace},
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{
				{
					Host: clusterHost,
					IngressRuleValue: networkingv1.IngressRuleValue{
						HTTP: &networkingv1.HTTPIngressRuleValue{
							Paths: []networkingv1.HTTPIngressPath{},
						},
					},
				},
			},
		},
	}
	return r.gw.CreateIngress(ctx, r.controlNamespace, ing)
}

// Upsert adds or replaces the rule for rule.Host, retrying the full
// read-modify-write up to maxAttempts times on conflict.
func (r *Router) Upsert(ctx context.Context, rule Rule) *apperrors.AppError {
	return r.retry(ctx, func(ing *networkingv1.Ingress) {
		rules := make([]networkingv1.IngressRule, 0, len(ing.Spec.Rules)+1)
		for _, existing := range ing.Spec.Rules {
			if existing.Host != rule.Host {
				rules = append(rules, existing)
			}
		}
		rules = append(rules, buildRule(rule))
		ing.Spec.Rules = rules
	})
}

// Remove deletes the rule for host, filtering by host inequality (spec
// §4.5 Delete semantics). Idempotent: a host already absent is a no-op.
func (r *Router) Remove(ctx context.Context, host string) *apperrors.AppError {
	return r.retry(ctx, func(ing *networkingv1.Ingress) {
		rules := make([]networkingv1.IngressRule, 0, len(ing.Spec.Rules))
		for _, existing := range ing.Spec.Rules {
			if existing.Host != host {
				rules = append(rules, existing)
			}
		}
		ing.Spec.Rules = rules
	})
}

// ReplaceAll overwrites the full set of session rules at once, used by the
// Reaper Loop's startup fix-up (spec §4.7 step 3) so surviving sessions are
// restored in a single Ingress replace rather than one call per session.
func (r *Router) ReplaceAll(ctx context.Context, rules []Rule, clusterHostRule *networkingv1.IngressRule) *apperrors.AppError {
	return r.retry(ctx, func(ing *networkingv1.Ingress) {
		built := make([]networkingv1.IngressRule, 0, len(rules)+1)
		if clusterHostRule != nil {
			built = append(built, *clusterHostRule)
		}
		for _, rule := range rules {
			built = append(built, buildRule(rule))
		}
		ing.Spec.Rules = built
	})
}

// Hosts returns the current set of rule hosts, for the ingress/session
// bijection testable property (spec §8 property 5).
func (r *Router) Hosts(ctx context.Context) ([]string, *apperrors.AppError) {
	ing, err := r.get(ctx)
	if err != nil {
		return nil, err
	}
	if ing == nil {
		return nil, nil
	}
	hosts := make([]string, 0, len(ing.Spec.Rules))
	for _, rule := range ing.Spec.Rules {
		hosts = append(hosts, rule.Host)
	}
	return hosts, nil
}

func (r *Router) retry(ctx context.Context, mutate func(*networkingv1.Ingress)) *apperrors.AppError {
	log := logger.Ingress()
	var lastErr *apperrors.AppError
	for attempt := 0; attempt < maxAttempts; attempt++ {
		ing, err := r.get(ctx)
		if err != nil {
			return err
		}
		if ing == nil {
			return apperrors.UnknownResource("Ingress", IngressName)
		}
		mutate(ing)
		_, updateErr := r.gw.ReplaceIngress(ctx, r.controlNamespace, ing)
		if updateErr == nil {
			return nil
		}
		if !k8s.IsConflict(updateErr) {
			return updateErr
		}
		lastErr = updateErr
		log.Warn().Int("attempt", attempt+1).Msg("ingress update conflict, retrying")
	}
	return lastErr
}

func buildRule(rule Rule) networkingv1.IngressRule {
	pathType := networkingv1.PathTypePrefix
	paths := []networkingv1.HTTPIngressPath{
		{
			Path:     "/",
			PathType: &pathType,
			Backend: networkingv1.IngressBackend{
				Service: &networkingv1.IngressServiceBackend{
					Name: rule.ServiceName,
					Port: networkingv1.ServiceBackendPort{Number: webPort},
				},
			},
		},
	}
	for _, extra := range rule.ExtraPaths {
		paths = append(paths, networkingv1.HTTPIngressPath{
			Path:     extra.Path,
			PathType: &pathType,
			Backend: networkingv1.IngressBackend{
				Service: &networkingv1.IngressServiceBackend{
					Name: rule.ServiceName,
					Port: networkingv1.ServiceBackendPort{Number: extra.Port},
				},
			},
		})
	}
	return networkingv1.IngressRule{
		Host: rule.Host,
		IngressRuleValue: networkingv1.IngressRuleValue{
			HTTP: &networkingv1.HTTPIngressRuleValue{Paths: paths},
		},
	}
}
