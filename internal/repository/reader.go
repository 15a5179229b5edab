package repository

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/google/uuid"

	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/k8s"
)

const readerImage = "busybox:stable"

// readManifestViaReaderPod spins up a short-lived Pod mounting pvcName
// read-only, execs `cat <path>` against it, then tears it down. The
// builder's own Pod has already terminated by the time a version reaches
// Ready, so reading its output back requires a fresh mount.
func readManifestViaReaderPod(ctx context.Context, gw *k8s.Gateway, namespace, pvcName, path string) ([]byte, *apperrors.AppError) {
	podName := "runtime-reader-" + uuid.NewString()[:8]
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: podName, Namespace: namespace},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:    "reader",
					Image:   readerImage,
					Command: []string{"sleep", "60"},
					VolumeMounts: []corev1.VolumeMount{
						{Name: "template", MountPath: "/mnt", ReadOnly: true},
					},
				},
			},
			Volumes: []corev1.Volume{
				{
					Name: "template",
					VolumeSource: corev1.VolumeSource{
						PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
							ClaimName: pvcName,
							ReadOnly:  true,
						},
					},
				},
			},
		},
	}
	if err := gw.CreatePod(ctx, namespace, pod); err != nil {
		return nil, err
	}
	defer gw.DeletePod(context.Background(), namespace, podName)

	out, execErr := gw.Exec(ctx, namespace, podName, "reader", []string{"cat", "/mnt" + path})
	if execErr != nil {
		return nil, execErr
	}
	return []byte(out), nil
}
