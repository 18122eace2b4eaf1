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

package azbatch

// Pool is the body of an add-pool request.
type Pool struct {
	ID                          string                       `json:"id"`
	VMSize                      string                       `json:"vmSize"`
	VirtualMachineConfiguration *VirtualMachineConfiguration `json:"virtualMachineConfiguration,omitempty"`
	TargetDedicatedNodes        int                          `json:"targetDedicatedNodes"`
	TargetLowPriorityNodes      int                          `json:"targetLowPriorityNodes"`
}

type VirtualMachineConfiguration struct {
	ImageReference ImageReference `json:"imageReference"`
	NodeAgentSKUID string         `json:"nodeAgentSKUId"`
}

// ImageReference names either a marketplace image or a custom image id.
type ImageReference struct {
	Publisher             string `json:"publisher,omitempty"`
	Offer                 string `json:"offer,omitempty"`
	SKU                   string `json:"sku,omitempty"`
	Version               string `json:"version,omitempty"`
	VirtualMachineImageID string `json:"virtualMachineImageId,omitempty"`
}

type PoolInformation struct {
	PoolID string `json:"poolId"`
}

// Job is the body of an add-job request.
type Job struct {
	ID       string          `json:"id"`
	PoolInfo PoolInformation `json:"poolInfo"`
}

// ResourceFile is a file downloaded onto the node before the task starts.
type ResourceFile struct {
	HTTPURL  string `json:"httpUrl"`
	FilePath string `json:"filePath"`
}

type UploadCondition string

const (
	UploadOnSuccess    UploadCondition = "tasksuccess"
	UploadOnFailure    UploadCondition = "taskfailure"
	UploadOnCompletion UploadCondition = "taskcompletion"
)

// OutputFile is uploaded from the node after the task finishes.
type OutputFile struct {
	FilePattern   string                  `json:"filePattern"`
	Destination   OutputFileDestination   `json:"destination"`
	UploadOptions OutputFileUploadOptions `json:"uploadOptions"`
}

type OutputFileDestination struct {
	Container ContainerDestination `json:"container"`
}

type ContainerDestination struct {
	ContainerURL string `json:"containerUrl"`
	Path         string `json:"path,omitempty"`
}

type OutputFileUploadOptions struct {
	UploadCondition UploadCondition `json:"uploadCondition"`
}

type TaskState string

const (
	TaskActive    TaskState = "active"
	TaskPreparing TaskState = "preparing"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
)

// Task is both the add-task request body and the get-task response.
type Task struct {
	ID            string             `json:"id"`
	CommandLine   string             `json:"commandLine"`
	ResourceFiles []ResourceFile     `json:"resourceFiles,omitempty"`
	OutputFiles   []OutputFile       `json:"outputFiles,omitempty"`
	State         TaskState          `json:"state,omitempty"`
	ExecutionInfo *TaskExecutionInfo `json:"executionInfo,omitempty"`
}

type TaskExecutionInfo struct {
	ExitCode    *int             `json:"exitCode,omitempty"`
	Result      string           `json:"result,omitempty"`
	RetryCount  int              `json:"retryCount,omitempty"`
	FailureInfo *TaskFailureInfo `json:"failureInfo,omitempty"`
}

type TaskFailureInfo struct {
	Category string `json:"category,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}
