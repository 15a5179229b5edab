package session

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/ingress"
	"github.com/streamspace/playground/internal/models"
	"github.com/streamspace/playground/internal/repository"
)

// materializationInput carries everything the six steps of spec §4.5 need,
// already resolved by the admission protocol in orchestrator.go.
type materializationInput struct {
	sessionID    string
	ownerID      string
	poolID       string
	durationMins int64
	source       models.RepositorySource
	runtime      models.RuntimeConfiguration
}

// compensator undoes one materialization step; compensators run in reverse
// order on a later step's failure (spec §4.5, testable property 4).
type compensator func(ctx context.Context)

// materialize runs the six ordered steps of spec §4.5, compensating 1..k-1
// in reverse on the failure of step k. Compensating deletes are best-effort:
// their own failures are logged, never returned (spec §7 Propagation).
func (o *Orchestrator) materialize(ctx context.Context, in materializationInput) *apperrors.AppError {
	var compensators []compensator
	compensate := func() {
		for i := len(compensators) - 1; i >= 0; i-- {
			compensators[i](context.Background())
		}
	}

	ns := Namespace(in.sessionID)

	// Step 1: session namespace.
	if err := o.gw.CreateNamespace(ctx, &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   ns,
			Labels: map[string]string{NamespaceTypeLabel: NamespaceTypeSession},
		},
	}); err != nil {
		return err
	}
	compensators = append(compensators, func(ctx context.Context) {
		grace := int64(0)
		if delErr := o.gw.DeleteNamespace(ctx, ns, &grace); delErr != nil {
			o.log.Warn().Err(delErr).Str("namespace", ns).Msg("compensating delete of session namespace failed")
		}
	})

	// Step 2: per-session PVC cloned from the repository-version template.
	pvc := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: PVCName, Namespace: ns},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: resource.MustParse("5Gi")},
			},
			DataSource: &corev1.TypedLocalObjectReference{
				Kind: "PersistentVolumeClaim",
				Name: repository.VolumeTemplateName(in.source.RepositoryID),
			},
		},
	}
	if err := o.gw.CreatePVC(ctx, ns, pvc); err != nil {
		compensate()
		return err
	}
	compensators = append(compensators, func(ctx context.Context) {
		if delErr := o.gw.DeletePVC(ctx, ns, PVCName); delErr != nil {
			o.log.Warn().Err(delErr).Str("namespace", ns).Msg("compensating delete of session pvc failed")
		}
	})

	// Step 3: session Pod.
	templateRaw, marshalErr := json.Marshal(in.runtime)
	if marshalErr != nil {
		compensate()
		return apperrors.Failure(marshalErr)
	}
	sourceRaw, marshalErr := json.Marshal(in.source)
	if marshalErr != nil {
		compensate()
		return apperrors.Failure(marshalErr)
	}

	pod := buildPod(in, ns, string(templateRaw), string(sourceRaw))
	if err := o.gw.CreatePod(ctx, ns, pod); err != nil {
		compensate()
		return err
	}
	compensators = append(compensators, func(ctx context.Context) {
		if delErr := o.gw.DeletePod(ctx, ns, PodName); delErr != nil {
			o.log.Warn().Err(delErr).Str("namespace", ns).Msg("compensating delete of session pod failed")
		}
	})

	// Step 4: intra-namespace Service.
	svc := buildService(in)
	if err := o.gw.CreateService(ctx, ns, svc); err != nil {
		compensate()
		return err
	}
	compensators = append(compensators, func(ctx context.Context) {
		if delErr := o.gw.DeleteService(ctx, ns, ServiceName); delErr != nil {
			o.log.Warn().Err(delErr).Str("namespace", ns).Msg("compensating delete of session service failed")
		}
	})

	// Step 5: control-namespace ExternalName Service.
	extSvc := buildExternalService(in.sessionID, ns)
	if err := o.gw.CreateService(ctx, o.controlNamespace, extSvc); err != nil {
		compensate()
		return err
	}
	compensators = append(compensators, func(ctx context.Context) {
		if delErr := o.gw.DeleteService(ctx, o.controlNamespace, ExternalServiceName(in.sessionID)); delErr != nil {
			o.log.Warn().Err(delErr).Str("service", ExternalServiceName(in.sessionID)).Msg("compensating delete of external service failed")
		}
	})

	// Step 6: Ingress rule.
	rule := ingress.Rule{
		Host:        ingress.Host(in.sessionID, o.clusterHost),
		ServiceName: ExternalServiceName(in.sessionID),
	}
	for _, port := range in.runtime.Ports {
		rule.ExtraPaths = append(rule.ExtraPaths, ingress.RulePath{Path: port.Path, Port: port.Port})
	}
	if err := o.ingress.Upsert(ctx, rule); err != nil {
		compensate()
		return err
	}

	return nil
}

func buildPod(in materializationInput, namespace, templateAnnotation, sourceAnnotation string) *corev1.Pod {
	ports := []corev1.ContainerPort{{Name: webPortName, ContainerPort: webPort}}
	for _, p := range in.runtime.Ports {
		ports = append(ports, corev1.ContainerPort{Name: p.Name, ContainerPort: p.Target, Protocol: corev1.Protocol(p.Protocol)})
	}

	env := []corev1.EnvVar{{Name: WorkspaceEnvVar, Value: in.sessionID}}
	for _, e := range in.runtime.Env {
		env = append(env, corev1.EnvVar{Name: e.Name, Value: e.Value})
	}

	image := in.runtime.BaseImage

	graceSeconds := int64(1)

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      PodName,
			Namespace: namespace,
			Labels:    map[string]string{OwnerLabel: in.ownerID},
			Annotations: map[string]string{
				TemplateAnnotation:         templateAnnotation,
				SessionDurationAnnotation:  fmt.Sprintf("%d", in.durationMins),
				RepositorySourceAnnotation: sourceAnnotation,
			},
		},
		Spec: corev1.PodSpec{
			TerminationGracePeriodSeconds: &graceSeconds,
			Affinity: &corev1.Affinity{
				NodeAffinity: &corev1.NodeAffinity{
					PreferredDuringSchedulingIgnoredDuringExecution: []corev1.PreferredSchedulingTerm{
						{
							Weight: 100,
							Preference: corev1.NodeSelectorTerm{
								MatchExpressions: []corev1.NodeSelectorRequirement{
									{Key: PoolLabel, Operator: corev1.NodeSelectorOpIn, Values: []string{in.poolID}},
								},
							},
						},
					},
				},
			},
			Containers: []corev1.Container{
				{
					Name:  "workspace",
					Image: image,
					Env:   env,
					Ports: ports,
					Resources: corev1.ResourceRequirements{
						Requests: corev1.ResourceList{
							corev1.ResourceMemory:           resource.MustParse("1Gi"),
							corev1.ResourceCPU:              resource.MustParse("500m"),
							corev1.ResourceEphemeralStorage: resource.MustParse("25Gi"),
						},
						Limits: corev1.ResourceList{
							corev1.ResourceMemory:           resource.MustParse("64Gi"),
							corev1.ResourceCPU:              resource.MustParse("1"),
							corev1.ResourceEphemeralStorage: resource.MustParse("50Gi"),
						},
					},
					VolumeMounts: []corev1.VolumeMount{{Name: "workspace", MountPath: "/workspace"}},
				},
			},
			Volumes: []corev1.Volume{
				{
					Name: "workspace",
					VolumeSource: corev1.VolumeSource{
						PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: PVCName},
					},
				},
			},
		},
	}
}

func buildService(in materializationInput) *corev1.Service {
	ports := []corev1.ServicePort{{Name: webPortName, Port: webPort, TargetPort: intstr.FromInt32(webPort)}}
	for _, p := range in.runtime.Ports {
		ports = append(ports, corev1.ServicePort{
			Name:       p.Name,
			Port:       p.Port,
			TargetPort: intstr.FromInt32(p.Target),
			Protocol:   corev1.Protocol(p.Protocol),
		})
	}
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: ServiceName},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeNodePort,
			Selector: map[string]string{OwnerLabel: in.ownerID},
			Ports:    ports,
		},
	}
}

func buildExternalService(sessionID, sessionNamespace string) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: ExternalServiceName(sessionID)},
		Spec: corev1.ServiceSpec{
			Type:         corev1.ServiceTypeExternalName,
			ExternalName: fmt.Sprintf("%s.%s.svc.cluster.local", ServiceName, sessionNamespace),
		},
	}
}

// deleteSession implements spec §4.5's Delete semantics: session namespace
// (grace 0), then the control-namespace ExternalName service, then the
// matching Ingress rule. Each step swallows NotFound, making re-delete
// idempotent, per the Cluster Gateway's own NotFound-as-nil-error contract.
func (o *Orchestrator) deleteSession(ctx context.Context, sessionID string) *apperrors.AppError {
	grace := int64(0)
	ns := Namespace(sessionID)
	if err := o.gw.DeleteNamespace(ctx, ns, &grace); err != nil {
		return err
	}
	if err := o.gw.DeleteService(ctx, o.controlNamespace, ExternalServiceName(sessionID)); err != nil {
		return err
	}
	host := ingress.Host(sessionID, o.clusterHost)
	return o.ingress.Remove(ctx, host)
}
