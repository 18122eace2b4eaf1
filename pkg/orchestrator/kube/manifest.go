// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kube

import (
	"errors"
	"fmt"
	"kubejobsub/pkg/errs"
	"kubejobsub/pkg/naming"
	"kubejobsub/pkg/orchestrator"
	"path"
	"strconv"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"
	"sigs.k8s.io/yaml"
)

const (
	// WorkloadLabel marks every object submitted by kubejobsub.
	WorkloadLabel = "kubejobsub.io/workload"

	DefaultNamespace = "default"
	containerName    = "workload-container"
	volumeName       = "job-data"
)

// ParseVolume parses SOURCE:MOUNTPATH. An empty spec means no volume.
func ParseVolume(spec string) (*orchestrator.Volume, error) {
	if spec == "" {
		return nil, nil
	}
	i := strings.LastIndex(spec, ":")
	if i <= 0 || i == len(spec)-1 {
		return nil, errs.New(errs.KindConfiguration, "volume %q must be SOURCE:MOUNTPATH", spec)
	}
	v := &orchestrator.Volume{Source: spec[:i], MountPath: spec[i+1:]}
	if !path.IsAbs(v.MountPath) {
		return nil, errs.New(errs.KindConfiguration, "volume mount path %q must be absolute", v.MountPath)
	}
	if !path.IsAbs(v.Source) {
		if msgs := validation.IsDNS1123Subdomain(v.Source); len(msgs) > 0 {
			return nil, errs.WithViolations(errs.KindConfiguration,
				fmt.Sprintf("volume claim name %q is invalid", v.Source), msgs)
		}
	}
	return v, nil
}

// Validate reports every problem with job at once.
func Validate(job orchestrator.JobDefinition) error {
	var problems []string
	if _, err := naming.ValidateJobName(job.Name); err != nil {
		var e *errs.Error
		if errors.As(err, &e) && len(e.Violations) > 0 {
			problems = append(problems, e.Violations...)
		} else {
			problems = append(problems, err.Error())
		}
	}
	problems = append(problems, validation.IsDNS1123Label(job.Name)...)
	if job.Image == "" {
		problems = append(problems, "image is required")
	} else if _, err := name.ParseReference(job.Image); err != nil {
		problems = append(problems, fmt.Sprintf("image %q is not a valid reference: %v", job.Image, err))
	}
	if job.CPUs <= 0 {
		problems = append(problems, fmt.Sprintf("cpu count must be greater than 0, got %d", job.CPUs))
	}
	if job.MemoryGB <= 0 {
		problems = append(problems, fmt.Sprintf("memory must be greater than 0 GB, got %g", job.MemoryGB))
	}
	if job.Namespace != "" {
		problems = append(problems, validation.IsDNS1123Label(job.Namespace)...)
	}
	if len(problems) > 0 {
		return errs.WithViolations(errs.KindConfiguration, fmt.Sprintf("invalid job %q", job.Name), dedupe(problems))
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func memoryQuantity(gb float64) (resource.Quantity, error) {
	return resource.ParseQuantity(strconv.FormatFloat(gb, 'f', -1, 64) + "Gi")
}

// BuildJob turns a validated definition into a batch/v1 Job.
func BuildJob(def orchestrator.JobDefinition) (*batchv1.Job, error) {
	if err := Validate(def); err != nil {
		return nil, err
	}
	namespace := def.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	memory, err := memoryQuantity(def.MemoryGB)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfiguration, "invalid memory request %g GB", def.MemoryGB)
	}
	cpu := *resource.NewQuantity(int64(def.CPUs), resource.DecimalSI)
	resources := corev1.ResourceList{
		corev1.ResourceCPU:    cpu,
		corev1.ResourceMemory: memory,
	}

	container := corev1.Container{
		Name:  containerName,
		Image: def.Image,
		Resources: corev1.ResourceRequirements{
			Requests: resources,
			Limits:   resources.DeepCopy(),
		},
	}
	if def.Command != "" {
		container.Command = []string{"/bin/bash", "-c", def.Command}
	}

	labels := map[string]string{WorkloadLabel: def.Name}
	backoff := int32(0)
	job := &batchv1.Job{
		TypeMeta: metav1.TypeMeta{APIVersion: "batch/v1", Kind: "Job"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      def.Name,
			Namespace: namespace,
			Labels:    labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoff,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{WorkloadLabel: def.Name}},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers:    []corev1.Container{container},
				},
			},
		},
	}
	if def.Volume != nil {
		addVolume(&job.Spec.Template.Spec, *def.Volume)
	}
	return job, nil
}

func addVolume(spec *corev1.PodSpec, v orchestrator.Volume) {
	src := corev1.VolumeSource{}
	if path.IsAbs(v.Source) {
		src.HostPath = &corev1.HostPathVolumeSource{Path: v.Source}
	} else {
		src.PersistentVolumeClaim = &corev1.PersistentVolumeClaimVolumeSource{ClaimName: v.Source}
	}
	spec.Volumes = append(spec.Volumes, corev1.Volume{Name: volumeName, VolumeSource: src})
	c := &spec.Containers[0]
	c.VolumeMounts = append(c.VolumeMounts, corev1.VolumeMount{Name: volumeName, MountPath: v.MountPath})
}

// RenderManifest returns job as YAML.
func RenderManifest(job *batchv1.Job) ([]byte, error) {
	out, err := yaml.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job %s: %w", job.Name, err)
	}
	return out, nil
}
