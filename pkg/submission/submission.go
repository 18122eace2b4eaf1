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

// Package submission drives one batch job from resource upload to task
// submission.
package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"kubejobsub/pkg/azbatch"
	"kubejobsub/pkg/errs"
	"kubejobsub/pkg/inputs"
	"kubejobsub/pkg/jobconfig"
	"kubejobsub/pkg/logging"
	"kubejobsub/pkg/naming"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// State is the position of a Driver in the submission sequence.
type State int

const (
	Unsubmitted State = iota
	ResourcesUploaded
	PoolCreated
	JobCreated
	TaskSubmitted
)

func (s State) String() string {
	switch s {
	case Unsubmitted:
		return "unsubmitted"
	case ResourcesUploaded:
		return "resources_uploaded"
	case PoolCreated:
		return "pool_created"
	case JobCreated:
		return "job_created"
	case TaskSubmitted:
		return "task_submitted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// BlobStore is the storage service used for task inputs and outputs.
type BlobStore interface {
	CreateContainer(ctx context.Context, name string) error
	DeleteContainer(ctx context.Context, name string) error
	Upload(ctx context.Context, container, blob string, r io.Reader) error
	List(ctx context.Context, container string) ([]string, error)
	Download(ctx context.Context, container, blob string, w io.Writer) error
	ReadURL(container, blob string, expiry time.Duration) (string, error)
	ContainerWriteURL(container string, expiry time.Duration) (string, error)
}

// BatchService is the compute service that runs the task.
type BatchService interface {
	AddPool(ctx context.Context, pool azbatch.Pool) error
	DeletePool(ctx context.Context, poolID string) error
	AddJob(ctx context.Context, job azbatch.Job) error
	DeleteJob(ctx context.Context, jobID string) error
	AddTask(ctx context.Context, jobID string, task azbatch.Task) error
	GetTask(ctx context.Context, jobID, taskID string) (*azbatch.Task, error)
}

// Result summarizes a Run.
type Result struct {
	// JobCreated is false when a job with the same name already existed and
	// no task was submitted.
	JobCreated      bool
	InputContainer  string
	OutputContainer string
	Resources       []inputs.ResourceFile
}

// Driver submits one validated JobRequest.
type Driver struct {
	fs    afero.Fs
	req   *jobconfig.JobRequest
	blobs BlobStore
	batch BatchService

	state           State
	inputContainer  string
	outputContainer string
	resources       []inputs.ResourceFile
}

// NewDriver returns a driver for req, which must already be validated.
func NewDriver(fs afero.Fs, req *jobconfig.JobRequest, blobs BlobStore, batch BatchService) (*Driver, error) {
	if req.SanitizedJobName == "" {
		return nil, errs.New(errs.KindInvalidState, "job request %q has not been validated", req.JobName)
	}
	in, err := naming.ContainerName(req.SanitizedJobName, naming.InputSuffix)
	if err != nil {
		return nil, err
	}
	out, err := naming.ContainerName(req.SanitizedJobName, naming.OutputSuffix)
	if err != nil {
		return nil, err
	}
	return &Driver{
		fs:              fs,
		req:             req,
		blobs:           blobs,
		batch:           batch,
		inputContainer:  in,
		outputContainer: out,
	}, nil
}

// State returns the current position in the submission sequence.
func (d *Driver) State() State {
	return d.state
}

// Resources returns the uploaded resource files.
func (d *Driver) Resources() []inputs.ResourceFile {
	return d.resources
}

func (d *Driver) expect(step string, want State) error {
	if d.state != want {
		return errs.New(errs.KindInvalidState, "%s requires state %s, driver is %s", step, want, d.state)
	}
	return nil
}

// UploadResources creates the input container, uploads every resolved input
// under its remote path and attaches a read URL to each resource file.
func (d *Driver) UploadResources(ctx context.Context) error {
	if err := d.expect("upload resources", Unsubmitted); err != nil {
		return err
	}
	files, err := inputs.Resolve(d.fs, d.req.InputSpecs(), inputs.WithExclude(d.req.Exclude))
	if err != nil {
		return err
	}

	logging.Info("Creating input container %s", d.inputContainer)
	if err := d.blobs.CreateContainer(ctx, d.inputContainer); err != nil {
		return err
	}
	for i := range files {
		if err := d.upload(ctx, &files[i]); err != nil {
			return err
		}
	}
	d.resources = files
	d.state = ResourcesUploaded
	logging.Info("Uploaded %d input files", len(files))
	return nil
}

func (d *Driver) upload(ctx context.Context, rf *inputs.ResourceFile) error {
	f, err := d.fs.Open(rf.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to open input %s: %w", rf.LocalPath, err)
	}
	defer f.Close()

	logging.Debug("Uploading %s as %s", rf.LocalPath, rf.RemotePath)
	if err := d.blobs.Upload(ctx, d.inputContainer, rf.RemotePath, f); err != nil {
		return err
	}
	u, err := d.blobs.ReadURL(d.inputContainer, rf.RemotePath, d.req.SASExpiry)
	if err != nil {
		return err
	}
	rf.URL = u
	return nil
}

// ImageReference parses VM_IMAGE. A value starting with "/" is a custom
// image resource id; anything else must be publisher:offer:sku:version.
func ImageReference(vmImage string) (azbatch.ImageReference, error) {
	if strings.HasPrefix(vmImage, "/") {
		return azbatch.ImageReference{VirtualMachineImageID: vmImage}, nil
	}
	parts := strings.Split(vmImage, ":")
	if len(parts) != 4 {
		return azbatch.ImageReference{}, errs.New(errs.KindConfiguration,
			"VM_IMAGE %q must be publisher:offer:sku:version or an image resource id", vmImage)
	}
	for _, p := range parts {
		if p == "" {
			return azbatch.ImageReference{}, errs.New(errs.KindConfiguration,
				"VM_IMAGE %q has an empty component", vmImage)
		}
	}
	return azbatch.ImageReference{Publisher: parts[0], Offer: parts[1], SKU: parts[2], Version: parts[3]}, nil
}

// CreatePool adds a pool named after the job. An existing pool is a
// conflict.
func (d *Driver) CreatePool(ctx context.Context) error {
	if err := d.expect("create pool", ResourcesUploaded); err != nil {
		return err
	}
	image, err := ImageReference(d.req.VMImage)
	if err != nil {
		return err
	}
	pool := azbatch.Pool{
		ID:     d.req.SanitizedJobName,
		VMSize: d.req.VMSize,
		VirtualMachineConfiguration: &azbatch.VirtualMachineConfiguration{
			ImageReference: image,
			NodeAgentSKUID: d.req.NodeAgentSKU,
		},
		TargetDedicatedNodes: d.req.PoolNodeCount,
	}
	logging.Info("Creating pool %s (%s x%d)", pool.ID, pool.VMSize, pool.TargetDedicatedNodes)
	if err := d.batch.AddPool(ctx, pool); err != nil {
		return err
	}
	d.state = PoolCreated
	return nil
}

// CreateJob adds a job bound to the pool. It reports false, without error,
// when a job of the same name already exists.
func (d *Driver) CreateJob(ctx context.Context) (bool, error) {
	if d.state != JobCreated {
		if err := d.expect("create job", PoolCreated); err != nil {
			return false, err
		}
	}
	job := azbatch.Job{
		ID:       d.req.SanitizedJobName,
		PoolInfo: azbatch.PoolInformation{PoolID: d.req.SanitizedJobName},
	}
	logging.Info("Creating job %s", job.ID)
	if err := d.batch.AddJob(ctx, job); err != nil {
		if jobExists(err) {
			logging.Warn("Job %s already exists, not submitting a task", job.ID)
			return false, nil
		}
		return false, err
	}
	d.state = JobCreated
	return true, nil
}

func jobExists(err error) bool {
	var svcErr *azbatch.ServiceError
	return errs.Is(err, errs.KindConflict) && errors.As(err, &svcErr) && svcErr.Code == azbatch.CodeJobExists
}

// CreateTask creates the output container and adds the task running the
// configured command.
func (d *Driver) CreateTask(ctx context.Context) error {
	if err := d.expect("create task", JobCreated); err != nil {
		return err
	}
	logging.Info("Creating output container %s", d.outputContainer)
	if err := d.blobs.CreateContainer(ctx, d.outputContainer); err != nil {
		return err
	}
	outputURL, err := d.blobs.ContainerWriteURL(d.outputContainer, d.req.SASExpiry)
	if err != nil {
		return err
	}
	outputs, err := OutputFiles(d.req.OutputSpecs(), outputURL)
	if err != nil {
		return err
	}

	task := azbatch.Task{
		ID:            d.req.TaskID,
		CommandLine:   CommandLine(d.req.Command),
		ResourceFiles: d.taskResourceFiles(),
		OutputFiles:   outputs,
	}
	logging.Info("Adding task %s to job %s", task.ID, d.req.SanitizedJobName)
	if err := d.batch.AddTask(ctx, d.req.SanitizedJobName, task); err != nil {
		return err
	}
	d.state = TaskSubmitted
	return nil
}

func (d *Driver) taskResourceFiles() []azbatch.ResourceFile {
	files := make([]azbatch.ResourceFile, 0, len(d.resources)+len(d.req.ExtraResources))
	for _, rf := range d.resources {
		files = append(files, azbatch.ResourceFile{HTTPURL: rf.URL, FilePath: rf.RemotePath})
	}
	for _, extra := range d.req.ExtraResources {
		files = append(files, azbatch.ResourceFile{HTTPURL: extra.URL, FilePath: extra.FilePath})
	}
	return files
}

// CommandLine runs command through bash so that pipes, globs and variables
// behave as written.
func CommandLine(command string) string {
	return "/bin/bash -c '" + strings.ReplaceAll(command, "'", `'\''`) + "'"
}

// OutputFiles turns OUTPUT specs of the form PATTERN [DESTINATION] into
// output files uploaded to containerURL when the task succeeds.
func OutputFiles(specs []string, containerURL string) ([]azbatch.OutputFile, error) {
	var files []azbatch.OutputFile
	var bad []string
	for _, spec := range specs {
		fields := strings.Fields(spec)
		if len(fields) == 0 || len(fields) > 2 {
			bad = append(bad, fmt.Sprintf("%q", spec))
			continue
		}
		dest := azbatch.ContainerDestination{ContainerURL: containerURL}
		if len(fields) == 2 {
			dest.Path = strings.Trim(fields[1], "/")
		}
		files = append(files, azbatch.OutputFile{
			FilePattern:   fields[0],
			Destination:   azbatch.OutputFileDestination{Container: dest},
			UploadOptions: azbatch.OutputFileUploadOptions{UploadCondition: azbatch.UploadOnSuccess},
		})
	}
	if len(bad) > 0 {
		return nil, errs.WithViolations(errs.KindConfiguration, "OUTPUT must be PATTERN [DESTINATION]", bad)
	}
	return files, nil
}

// Run executes every step in order. When the job already exists no task is
// submitted and Result.JobCreated is false.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	res := Result{InputContainer: d.inputContainer, OutputContainer: d.outputContainer}
	if err := d.UploadResources(ctx); err != nil {
		return res, err
	}
	res.Resources = d.resources
	if err := d.CreatePool(ctx); err != nil {
		return res, err
	}
	created, err := d.CreateJob(ctx)
	if err != nil || !created {
		return res, err
	}
	res.JobCreated = true
	if err := d.CreateTask(ctx); err != nil {
		return res, err
	}
	logging.Info("Submitted task %s to job %s", d.req.TaskID, d.req.SanitizedJobName)
	return res, nil
}

// Status returns the current state of the task.
func (d *Driver) Status(ctx context.Context) (*azbatch.Task, error) {
	return d.batch.GetTask(ctx, d.req.SanitizedJobName, d.req.TaskID)
}

// Wait polls the task every interval until it completes or ctx is done.
func (d *Driver) Wait(ctx context.Context, interval time.Duration) (*azbatch.Task, error) {
	if interval <= 0 {
		return nil, errs.New(errs.KindConfiguration, "poll interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last azbatch.TaskState
	for {
		task, err := d.Status(ctx)
		if err != nil {
			return nil, err
		}
		if task.State != last {
			logging.Info("Task %s is %s", task.ID, task.State)
			last = task.State
		}
		if task.State == azbatch.TaskCompleted {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DownloadOutputs copies every blob of the output container under dir.
func (d *Driver) DownloadOutputs(ctx context.Context, dir string) ([]string, error) {
	names, err := d.blobs.List(ctx, d.outputContainer)
	if err != nil {
		return nil, err
	}
	var written []string
	for _, name := range names {
		target := path.Join(dir, path.Clean("/" + name)[1:])
		if err := d.download(ctx, name, target); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	logging.Info("Downloaded %d output files to %s", len(written), dir)
	return written, nil
}

func (d *Driver) download(ctx context.Context, blob, target string) error {
	if err := d.fs.MkdirAll(path.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}
	f, err := d.fs.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if err := d.blobs.Download(ctx, d.outputContainer, blob, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}

// Cleanup deletes the job and then the pool.
func (d *Driver) Cleanup(ctx context.Context) error {
	logging.Info("Deleting job %s", d.req.SanitizedJobName)
	if err := d.batch.DeleteJob(ctx, d.req.SanitizedJobName); err != nil {
		return err
	}
	logging.Info("Deleting pool %s", d.req.SanitizedJobName)
	return d.batch.DeletePool(ctx, d.req.SanitizedJobName)
}

// DeleteContainers removes the input and output containers. A missing
// container is not an error.
func (d *Driver) DeleteContainers(ctx context.Context) error {
	for _, c := range []string{d.inputContainer, d.outputContainer} {
		logging.WithField("container", c).Infof("Deleting container")
		if err := d.blobs.DeleteContainer(ctx, c); err != nil && !errs.Is(err, errs.KindNotFound) {
			return err
		}
	}
	return nil
}
