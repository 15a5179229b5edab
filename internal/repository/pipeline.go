// Package repository implements the Repository Pipeline (C4): volume
// template provisioning, one-shot builder jobs, and RepositoryVersion state
// derivation from Job conditions (spec §4.4).
package repository

import (
	"context"
	"fmt"
	"sync"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"gopkg.in/yaml.v3"

	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/k8s"
	"github.com/streamspace/playground/internal/logger"
	"github.com/streamspace/playground/internal/models"
)

const (
	// RuntimeManifestPath is the pinned in-volume contract for a builder's
	// output, resolving spec §9's open question (SPEC_FULL.md §2.3).
	RuntimeManifestPath = "/runtime.yaml"

	builderImage         = "ghcr.io/streamspace/playground-builder:latest"
	volumeTemplateStorage = "5Gi"
)

// Pipeline creates and reads back RepositoryVersion state.
type Pipeline struct {
	gw        *k8s.Gateway
	namespace string
	baseImage string

	mu           sync.Mutex
	runtimeCache map[string]models.RuntimeConfiguration
}

func New(gw *k8s.Gateway, controlNamespace, builderBaseImage string) *Pipeline {
	return &Pipeline{
		gw:           gw,
		namespace:    controlNamespace,
		baseImage:    builderBaseImage,
		runtimeCache: map[string]models.RuntimeConfiguration{},
	}
}

// VolumeTemplateName returns the name of the shared PVC a repository's
// versions are built into (spec §3/§4.4).
func VolumeTemplateName(repositoryID string) string {
	return "workspace-template-" + repositoryID
}

// BuilderJobName returns the name of the one-shot Job for a given version.
func BuilderJobName(repositoryID, versionID string) string {
	return fmt.Sprintf("builder-%s-%s", repositoryID, versionID)
}

func cacheKey(repositoryID, versionID string) string {
	return repositoryID + "/" + versionID
}

// CreateVersion implements spec §4.4's create_version: idempotently ensure
// the volume template PVC exists, then create the builder Job. Returns
// immediately; state is derived lazily by GetVersion.
func (p *Pipeline) CreateVersion(ctx context.Context, repositoryID, versionID, reference string) *apperrors.AppError {
	if err := p.ensureVolumeTemplate(ctx, repositoryID); err != nil {
		return err
	}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      BuilderJobName(repositoryID, versionID),
			Namespace: p.namespace,
			Labels: map[string]string{
				"app.kubernetes.io/part-of":   "playground",
				"app.kubernetes.io/component": "builder",
				"repository":                  repositoryID,
			},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            int32Ptr(1),
			TTLSecondsAfterFinished: int32Ptr(0),
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyOnFailure,
					Containers: []corev1.Container{
						{
							Name:    "builder",
							Image:   p.baseImage,
							Command: []string{"builder"},
							Args:    []string{reference},
							VolumeMounts: []corev1.VolumeMount{
								{Name: "template", MountPath: "/"},
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: "template",
							VolumeSource: corev1.VolumeSource{
								PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
									ClaimName: VolumeTemplateName(repositoryID),
								},
							},
						},
					},
				},
			},
		},
	}

	return p.gw.CreateJob(ctx, p.namespace, job)
}

func (p *Pipeline) ensureVolumeTemplate(ctx context.Context, repositoryID string) *apperrors.AppError {
	name := VolumeTemplateName(repositoryID)
	existing, err := p.gw.GetPVC(ctx, p.namespace, name)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	pvc := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: p.namespace,
			Labels: map[string]string{
				"app.kubernetes.io/part-of":   "playground",
				"app.kubernetes.io/component": "workspace",
			},
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{
					corev1.ResourceStorage: resource.MustParse(volumeTemplateStorage),
				},
			},
		},
	}
	return p.gw.CreatePVC(ctx, p.namespace, pvc)
}

// GetVersion derives RepositoryVersion state from the builder Job's
// conditions (spec §4.4): Active ⇒ Cloning, Failed ⇒ Failed, Complete ⇒
// Ready (with the runtime decoded from /runtime.yaml, and cached since it
// never changes once Ready).
func (p *Pipeline) GetVersion(ctx context.Context, repositoryID, versionID string) (*models.RepositoryVersion, *apperrors.AppError) {
	job, err := p.gw.GetJob(ctx, p.namespace, BuilderJobName(repositoryID, versionID))
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	state := deriveState(job)
	version := &models.RepositoryVersion{
		RepositoryID: repositoryID,
		VersionID:    versionID,
		State:        state,
	}

	if state.Tag == models.RepositoryVersionReady {
		runtime, cached := p.cachedRuntime(repositoryID, versionID)
		if !cached {
			runtime, err = p.readRuntimeManifest(ctx, repositoryID, versionID)
			if err != nil {
				logger.Repository().Warn().Err(err).Msg("failed to read runtime.yaml for ready version")
				return version, nil
			}
			p.cacheRuntime(repositoryID, versionID, runtime)
		}
		version.State.Runtime = &runtime
	}

	return version, nil
}

func deriveState(job *batchv1.Job) models.RepositoryVersionState {
	for _, cond := range job.Status.Conditions {
		if cond.Type == batchv1.JobFailed && cond.Status == corev1.ConditionTrue {
			return models.RepositoryVersionState{Tag: models.RepositoryVersionFailed, Reason: cond.Reason, Message: cond.Message}
		}
		if cond.Type == batchv1.JobComplete && cond.Status == corev1.ConditionTrue {
			return models.RepositoryVersionState{Tag: models.RepositoryVersionReady}
		}
	}
	if job.Status.Active > 0 {
		return models.RepositoryVersionState{Tag: models.RepositoryVersionCloning, Progress: 50}
	}
	return models.RepositoryVersionState{Tag: models.RepositoryVersionCloning, Progress: 0}
}

// readRuntimeManifest execs a short-lived reader against the builder's
// terminated pod's volume is not possible post-termination, so this reads
// the manifest through a dedicated reader Pod mounting the same PVC
// read-only; see internal/repository/reader.go for that Pod's lifecycle.
func (p *Pipeline) readRuntimeManifest(ctx context.Context, repositoryID, versionID string) (models.RuntimeConfiguration, *apperrors.AppError) {
	raw, readErr := readManifestViaReaderPod(ctx, p.gw, p.namespace, VolumeTemplateName(repositoryID), RuntimeManifestPath)
	if readErr != nil {
		return models.RuntimeConfiguration{}, readErr
	}
	var runtime models.RuntimeConfiguration
	if err := yaml.Unmarshal(raw, &runtime); err != nil {
		return models.RuntimeConfiguration{}, apperrors.MissingData(RuntimeManifestPath)
	}
	return runtime, nil
}

func (p *Pipeline) cachedRuntime(repositoryID, versionID string) (models.RuntimeConfiguration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	runtime, ok := p.runtimeCache[cacheKey(repositoryID, versionID)]
	return runtime, ok
}

func (p *Pipeline) cacheRuntime(repositoryID, versionID string, runtime models.RuntimeConfiguration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runtimeCache[cacheKey(repositoryID, versionID)] = runtime
}

func int32Ptr(v int32) *int32 { return &v }
