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

// Package kube submits jobs to, and reports on, a Kubernetes cluster.
package kube

import (
	"context"
	"fmt"
	"kubejobsub/pkg/errs"
	"kubejobsub/pkg/logging"
	"kubejobsub/pkg/orchestrator"
	"kubejobsub/pkg/shell"
	"strings"

	"github.com/spf13/afero"
	batchv1 "k8s.io/api/batch/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Orchestrator implements orchestrator.Orchestrator for Kubernetes.
type Orchestrator struct {
	client     kubernetes.Interface
	fs         afero.Fs
	useKubectl bool
	kubeconfig string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClient submits through the given API client.
func WithClient(c kubernetes.Interface) Option {
	return func(o *Orchestrator) { o.client = c }
}

// WithFs writes manifests to fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(o *Orchestrator) { o.fs = fs }
}

// WithKubectl submits manifests with `kubectl create` instead of the API.
// A non-empty kubeconfig is passed to kubectl with --kubeconfig.
func WithKubectl(kubeconfig string) Option {
	return func(o *Orchestrator) {
		o.useKubectl = true
		o.kubeconfig = kubeconfig
	}
}

// NewOrchestrator creates and returns a new Orchestrator.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

var _ orchestrator.Orchestrator = (*Orchestrator)(nil)

// SubmitJob builds the Job for def and either saves it to
// def.OutputManifest or creates it in the cluster.
func (o *Orchestrator) SubmitJob(ctx context.Context, def orchestrator.JobDefinition) error {
	job, err := BuildJob(def)
	if err != nil {
		return err
	}

	if def.OutputManifest != "" {
		manifest, err := RenderManifest(job)
		if err != nil {
			return err
		}
		logging.Info("Saving job manifest to %s", def.OutputManifest)
		if err := afero.WriteFile(o.fs, def.OutputManifest, manifest, 0644); err != nil {
			return fmt.Errorf("failed to write job manifest to file %s: %w", def.OutputManifest, err)
		}
		return nil
	}

	if o.useKubectl {
		return o.apply(job)
	}
	if o.client == nil {
		return errs.New(errs.KindInvalidState, "no kubernetes client configured")
	}
	logging.Info("Creating job %s in namespace %s", job.Name, job.Namespace)
	if _, err := o.client.BatchV1().Jobs(job.Namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return errs.Wrap(err, errs.KindConflict, "job %s already exists in namespace %s", job.Name, job.Namespace)
		}
		if apierrors.IsUnauthorized(err) || apierrors.IsForbidden(err) {
			return errs.Wrap(err, errs.KindAuthentication, "not allowed to create job %s", job.Name)
		}
		return errs.Wrap(err, errs.KindRemote, "failed to create job %s", job.Name)
	}
	logging.Info("Job %s submitted.", job.Name)
	return nil
}

func (o *Orchestrator) apply(job *batchv1.Job) error {
	manifest, err := RenderManifest(job)
	if err != nil {
		return err
	}
	logging.Info("Creating job %s with kubectl...", job.Name)
	cmd := shell.NewCommand("kubectl", kubectlArgs(o.kubeconfig)...)
	cmd.SetInput(string(manifest))
	res := cmd.Execute()
	switch {
	case res.ExitCode == 0:
	case strings.Contains(res.Stderr, "AlreadyExists"):
		return errs.New(errs.KindConflict, "job %s already exists in namespace %s", job.Name, job.Namespace)
	default:
		return errs.New(errs.KindRemote, "kubectl create failed with exit code %d: %s\n%s", res.ExitCode, res.Stderr, res.Stdout)
	}
	logging.Info("Job %s submitted.", job.Name)
	return nil
}

func kubectlArgs(kubeconfig string) []string {
	args := []string{"create", "-f", "-"}
	if kubeconfig != "" {
		args = append(args, "--kubeconfig", kubeconfig)
	}
	return args
}
