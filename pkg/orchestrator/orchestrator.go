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

package orchestrator

import "context"

// Volume mounts Source into the job container at MountPath. An absolute
// Source is a host path; anything else names a PersistentVolumeClaim.
type Volume struct {
	Source    string
	MountPath string
}

// JobDefinition holds all the necessary parameters to define a cluster job.
type JobDefinition struct {
	Name      string
	Image     string
	Command   string
	CPUs      int
	MemoryGB  float64
	Volume    *Volume
	Namespace string

	// OutputManifest, when set, receives the manifest instead of the cluster.
	OutputManifest string
}

// Orchestrator defines the interface for submitting jobs to a cluster.
type Orchestrator interface {
	// SubmitJob validates job and deploys it.
	SubmitJob(ctx context.Context, job JobDefinition) error
}
