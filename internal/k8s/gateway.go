// Package k8s implements the Cluster Gateway (C1): a thin, typed wrapper
// over the Kubernetes API providing namespaced object CRUD, label
// selectors, JSON-patch, and exec-attach streams. It is the only package in
// the module that imports client-go directly — every other component talks
// to the cluster exclusively through a *Gateway.
package k8s

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/rs/zerolog"

	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/logger"
)

// Gateway wraps a Kubernetes clientset and REST config. Every method
// returns a *apperrors.AppError on failure: KindUnknownResource is never
// returned here (not-found is reported as (nil, nil) per spec §4.1's
// three-way outcome), transport and conflict failures are reported as
// KindFailure, leaving the caller to decide whether to retry.
type Gateway struct {
	clientset  kubernetes.Interface
	restConfig *rest.Config
	log        *zerolog.Logger
}

// New builds a Gateway from an in-cluster or kubeconfig-resolved rest.Config.
func New(restConfig *rest.Config) (*Gateway, error) {
	cs, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, apperrors.Failure(err)
	}
	return &Gateway{clientset: cs, restConfig: restConfig, log: logger.Gateway()}, nil
}

// NewWithClientset builds a Gateway around an already-constructed clientset,
// used in tests with k8s.io/client-go/kubernetes/fake.
func NewWithClientset(cs kubernetes.Interface) *Gateway {
	return &Gateway{clientset: cs, log: logger.Gateway()}
}

func wrapK8sErr(err error, context string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.KindFailure, context, err)
}

// --- Namespaces ---

func (g *Gateway) GetNamespace(ctx context.Context, name string) (*corev1.Namespace, *apperrors.AppError) {
	ns, err := g.clientset.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapK8sErr(err, "get namespace "+name)
	}
	return ns, nil
}

func (g *Gateway) CreateNamespace(ctx context.Context, ns *corev1.Namespace) *apperrors.AppError {
	_, err := g.clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	return wrapK8sErr(err, "create namespace "+ns.Name)
}

func (g *Gateway) UpdateNamespace(ctx context.Context, ns *corev1.Namespace) *apperrors.AppError {
	_, err := g.clientset.CoreV1().Namespaces().Update(ctx, ns, metav1.UpdateOptions{})
	return wrapK8sErr(err, "update namespace "+ns.Name)
}

func (g *Gateway) DeleteNamespace(ctx context.Context, name string, gracePeriodSeconds *int64) *apperrors.AppError {
	err := g.clientset.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{GracePeriodSeconds: gracePeriodSeconds})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return wrapK8sErr(err, "delete namespace "+name)
}

func (g *Gateway) ListNamespacesByLabel(ctx context.Context, selector string) ([]corev1.Namespace, *apperrors.AppError) {
	list, err := g.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, wrapK8sErr(err, "list namespaces "+selector)
	}
	return list.Items, nil
}

// --- Pods ---

func (g *Gateway) GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, *apperrors.AppError) {
	pod, err := g.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapK8sErr(err, "get pod "+namespace+"/"+name)
	}
	return pod, nil
}

func (g *Gateway) CreatePod(ctx context.Context, namespace string, pod *corev1.Pod) *apperrors.AppError {
	_, err := g.clientset.CoreV1().Pods(namespace).Create(ctx, pod, metav1.CreateOptions{})
	return wrapK8sErr(err, "create pod "+namespace+"/"+pod.Name)
}

func (g *Gateway) DeletePod(ctx context.Context, namespace, name string) *apperrors.AppError {
	err := g.clientset.CoreV1().Pods(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return wrapK8sErr(err, "delete pod "+namespace+"/"+name)
}

func (g *Gateway) ListPodsByLabel(ctx context.Context, namespace, selector string) ([]corev1.Pod, *apperrors.AppError) {
	list, err := g.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, wrapK8sErr(err, "list pods "+namespace+" "+selector)
	}
	return list.Items, nil
}

// PatchPodAnnotation applies a single JSON-patch "replace" (or "add") op to a
// pod's annotations, used by the Session Orchestrator's duration update
// (spec §4.5 Update semantics). No pod recreation occurs.
func (g *Gateway) PatchPodAnnotation(ctx context.Context, namespace, name, annotationKey, value string) *apperrors.AppError {
	op := "replace"
	pod, getErr := g.GetPod(ctx, namespace, name)
	if getErr != nil {
		return getErr
	}
	if pod == nil || pod.Annotations == nil || pod.Annotations[annotationKey] == "" {
		op = "add"
	}
	escapedKey := jsonPatchEscape(annotationKey)
	patch := fmt.Sprintf(`[{"op":%q,"path":"/metadata/annotations/%s","value":%q}]`, op, escapedKey, value)
	_, err := g.clientset.CoreV1().Pods(namespace).Patch(ctx, name, types.JSONPatchType, []byte(patch), metav1.PatchOptions{})
	return wrapK8sErr(err, "patch pod annotation "+namespace+"/"+name)
}

func jsonPatchEscape(s string) string {
	out := bytes.Buffer{}
	for _, r := range s {
		switch r {
		case '~':
			out.WriteString("~0")
		case '/':
			out.WriteString("~1")
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}

// --- Services ---

func (g *Gateway) GetService(ctx context.Context, namespace, name string) (*corev1.Service, *apperrors.AppError) {
	svc, err := g.clientset.CoreV1().Services(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapK8sErr(err, "get service "+namespace+"/"+name)
	}
	return svc, nil
}

func (g *Gateway) CreateService(ctx context.Context, namespace string, svc *corev1.Service) *apperrors.AppError {
	_, err := g.clientset.CoreV1().Services(namespace).Create(ctx, svc, metav1.CreateOptions{})
	return wrapK8sErr(err, "create service "+namespace+"/"+svc.Name)
}

func (g *Gateway) DeleteService(ctx context.Context, namespace, name string) *apperrors.AppError {
	err := g.clientset.CoreV1().Services(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return wrapK8sErr(err, "delete service "+namespace+"/"+name)
}

// --- PersistentVolumeClaims ---

func (g *Gateway) GetPVC(ctx context.Context, namespace, name string) (*corev1.PersistentVolumeClaim, *apperrors.AppError) {
	pvc, err := g.clientset.CoreV1().PersistentVolumeClaims(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapK8sErr(err, "get pvc "+namespace+"/"+name)
	}
	return pvc, nil
}

func (g *Gateway) CreatePVC(ctx context.Context, namespace string, pvc *corev1.PersistentVolumeClaim) *apperrors.AppError {
	_, err := g.clientset.CoreV1().PersistentVolumeClaims(namespace).Create(ctx, pvc, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return nil
	}
	return wrapK8sErr(err, "create pvc "+namespace+"/"+pvc.Name)
}

func (g *Gateway) DeletePVC(ctx context.Context, namespace, name string) *apperrors.AppError {
	err := g.clientset.CoreV1().PersistentVolumeClaims(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return wrapK8sErr(err, "delete pvc "+namespace+"/"+name)
}

// --- Jobs ---

func (g *Gateway) GetJob(ctx context.Context, namespace, name string) (*batchv1.Job, *apperrors.AppError) {
	job, err := g.clientset.BatchV1().Jobs(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapK8sErr(err, "get job "+namespace+"/"+name)
	}
	return job, nil
}

func (g *Gateway) CreateJob(ctx context.Context, namespace string, job *batchv1.Job) *apperrors.AppError {
	_, err := g.clientset.BatchV1().Jobs(namespace).Create(ctx, job, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return nil
	}
	return wrapK8sErr(err, "create job "+namespace+"/"+job.Name)
}

// --- ConfigMaps ---

func (g *Gateway) GetConfigMap(ctx context.Context, namespace, name string) (*corev1.ConfigMap, *apperrors.AppError) {
	cm, err := g.clientset.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapK8sErr(err, "get configmap "+namespace+"/"+name)
	}
	return cm, nil
}

func (g *Gateway) CreateConfigMap(ctx context.Context, namespace string, cm *corev1.ConfigMap) *apperrors.AppError {
	_, err := g.clientset.CoreV1().ConfigMaps(namespace).Create(ctx, cm, metav1.CreateOptions{})
	return wrapK8sErr(err, "create configmap "+namespace+"/"+cm.Name)
}

func (g *Gateway) UpdateConfigMap(ctx context.Context, namespace string, cm *corev1.ConfigMap) *apperrors.AppError {
	_, err := g.clientset.CoreV1().ConfigMaps(namespace).Update(ctx, cm, metav1.UpdateOptions{})
	return wrapK8sErr(err, "update configmap "+namespace+"/"+cm.Name)
}

// --- ServiceAccounts ---

func (g *Gateway) CreateServiceAccount(ctx context.Context, namespace string, sa *corev1.ServiceAccount) *apperrors.AppError {
	_, err := g.clientset.CoreV1().ServiceAccounts(namespace).Create(ctx, sa, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return nil
	}
	return wrapK8sErr(err, "create serviceaccount "+namespace+"/"+sa.Name)
}

// --- Nodes ---

func (g *Gateway) ListNodesByLabel(ctx context.Context, selector string) ([]corev1.Node, *apperrors.AppError) {
	list, err := g.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, wrapK8sErr(err, "list nodes "+selector)
	}
	return list.Items, nil
}

// --- Ingress (singleton, read-modify-write; see internal/ingress for the retry loop) ---

func (g *Gateway) GetIngress(ctx context.Context, namespace, name string) (*networkingv1.Ingress, *apperrors.AppError) {
	ing, err := g.clientset.NetworkingV1().Ingresses(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapK8sErr(err, "get ingress "+namespace+"/"+name)
	}
	return ing, nil
}

func (g *Gateway) CreateIngress(ctx context.Context, namespace string, ing *networkingv1.Ingress) *apperrors.AppError {
	_, err := g.clientset.NetworkingV1().Ingresses(namespace).Create(ctx, ing, metav1.CreateOptions{})
	return wrapK8sErr(err, "create ingress "+namespace+"/"+ing.Name)
}

// ReplaceIngress performs a full-replace update. IsConflict failures are
// surfaced distinctly so the Ingress Router (C6) can decide to retry.
func (g *Gateway) ReplaceIngress(ctx context.Context, namespace string, ing *networkingv1.Ingress) (*networkingv1.Ingress, *apperrors.AppError) {
	updated, err := g.clientset.NetworkingV1().Ingresses(namespace).Update(ctx, ing, metav1.UpdateOptions{})
	if apierrors.IsConflict(err) {
		return nil, apperrors.Wrap(apperrors.KindFailure, "ingress update conflict", err)
	}
	if err != nil {
		return nil, wrapK8sErr(err, "update ingress "+namespace+"/"+ing.Name)
	}
	return updated, nil
}

// IsConflict reports whether an AppError wraps a Kubernetes resource-version
// conflict, for callers that need to distinguish conflict from other failure.
func IsConflict(err *apperrors.AppError) bool {
	return err != nil && err.Kind == apperrors.KindFailure && strings.Contains(err.Message, "conflict")
}

// --- Exec ---

// Exec opens an attached-process stream to a pod, draining stdout fully
// before returning (spec §4.5: no stdin, no pseudo-TTY).
func (g *Gateway) Exec(ctx context.Context, namespace, podName, container string, argv []string) (string, *apperrors.AppError) {
	if g.restConfig == nil {
		return "", apperrors.Failure(fmt.Errorf("gateway has no rest config, cannot exec"))
	}
	req := g.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(podName).
		Namespace(namespace).
		SubResource("exec")
	req.VersionedParams(&corev1.PodExecOptions{
		Container: container,
		Command:   argv,
		Stdin:     false,
		Stdout:    true,
		Stderr:    true,
		TTY:       false,
	}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(g.restConfig, "POST", req.URL())
	if err != nil {
		return "", apperrors.Failure(err)
	}

	var stdout, stderr bytes.Buffer
	if err := executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	}); err != nil {
		return "", apperrors.Wrap(apperrors.KindFailure, "exec stream failed", err)
	}
	return stdout.String(), nil
}
