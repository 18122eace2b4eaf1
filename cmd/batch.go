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

package cmd

import (
	"fmt"
	"kubejobsub/pkg/azbatch"
	"kubejobsub/pkg/blobstore"
	"kubejobsub/pkg/errs"
	"kubejobsub/pkg/inputs"
	"kubejobsub/pkg/jobconfig"
	"kubejobsub/pkg/logging"
	"kubejobsub/pkg/submission"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var batchFlags struct {
	config       string
	wait         bool
	pollInterval time.Duration
	downloadDir  string
	cleanup      bool
	outputDir    string
	containers   bool
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.PersistentFlags().StringVarP(&batchFlags.config, "config", "c", "", "Path to the job configuration file. Required.")
	_ = batchCmd.MarkPersistentFlagRequired("config")

	batchSubmitCmd.Flags().BoolVar(&batchFlags.wait, "wait", false, "Wait for the task to complete.")
	batchSubmitCmd.Flags().DurationVar(&batchFlags.pollInterval, "poll-interval", 30*time.Second, "How often to poll the task while waiting.")
	batchSubmitCmd.Flags().StringVar(&batchFlags.downloadDir, "download", "", "After waiting, download outputs into this directory.")
	batchSubmitCmd.Flags().BoolVar(&batchFlags.cleanup, "cleanup", false, "After waiting, delete the job and pool.")

	batchDownloadCmd.Flags().StringVarP(&batchFlags.outputDir, "dir", "d", ".", "Directory to download outputs into.")

	batchDeleteCmd.Flags().BoolVar(&batchFlags.containers, "containers", false, "Also delete the input and output containers.")

	batchCmd.AddCommand(batchSubmitCmd, batchValidateCmd, batchStatusCmd, batchDownloadCmd, batchDeleteCmd)
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Runs config-file driven jobs on Azure Batch.",
	Long: `The 'batch' commands read a KEY:=VALUE job configuration file, upload the
requested inputs to blob storage and run the command as a single task on a
dedicated Azure Batch pool.`,
}

var batchSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Uploads inputs and submits the task.",
	Long: `Creates <job>-input, uploads the inputs, creates the pool and job, then
creates <job>-output and adds the task.

Submitting the same job again fails while <job>-input exists. Run
'batch delete --containers' first; if the job itself is still present
after that, submit reports it and adds no task.`,
	Args: cobra.NoArgs,
	RunE:  runBatchSubmitCmd,
}

var batchValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Checks the configuration and prints the resource plan without contacting Azure.",
	Args:  cobra.NoArgs,
	RunE:  runBatchValidateCmd,
}

var batchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Prints the state of the job's task.",
	Args:  cobra.NoArgs,
	RunE:  runBatchStatusCmd,
}

var batchDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Downloads the job's output container.",
	Args:  cobra.NoArgs,
	RunE:  runBatchDownloadCmd,
}

var batchDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Deletes the job and its pool, and optionally its containers.",
	Args:  cobra.NoArgs,
	RunE:  runBatchDeleteCmd,
}

var localFs = afero.NewOsFs()

func loadRequest() (*jobconfig.JobRequest, error) {
	req, err := jobconfig.Parse(localFs, batchFlags.config)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func newDriver() (*submission.Driver, *jobconfig.JobRequest, error) {
	req, err := loadRequest()
	if err != nil {
		return nil, nil, err
	}
	blobs, err := blobstore.New(req.StorageAccountName, req.StorageAccountKey)
	if err != nil {
		return nil, nil, err
	}
	batch, err := azbatch.NewClient(req.BatchAccountName, req.BatchAccountKey, req.BatchAccountURL)
	if err != nil {
		return nil, nil, err
	}
	d, err := submission.NewDriver(localFs, req, blobs, batch)
	if err != nil {
		return nil, nil, err
	}
	return d, req, nil
}

func runBatchSubmitCmd(cmd *cobra.Command, args []string) error {
	if batchFlags.wait && batchFlags.pollInterval <= 0 {
		return errs.New(errs.KindConfiguration, "--poll-interval must be positive, got %s", batchFlags.pollInterval)
	}
	d, req, err := newDriver()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	res, err := d.Run(ctx)
	if err != nil {
		return fmt.Errorf("batch submission of %s failed at %s: %w", req.SanitizedJobName, d.State(), err)
	}
	if !res.JobCreated {
		logging.Warn("Job %s already exists; nothing was submitted.", req.SanitizedJobName)
		return nil
	}
	if !batchFlags.wait {
		if batchFlags.downloadDir != "" || batchFlags.cleanup {
			logging.Warn("--download and --cleanup only take effect with --wait")
		}
		return nil
	}

	task, err := d.Wait(ctx, batchFlags.pollInterval)
	if err != nil {
		return err
	}
	printTask(cmd, task)
	if batchFlags.downloadDir != "" {
		if _, err := d.DownloadOutputs(ctx, batchFlags.downloadDir); err != nil {
			return err
		}
	}
	if batchFlags.cleanup {
		return d.Cleanup(ctx)
	}
	return nil
}

func runBatchValidateCmd(cmd *cobra.Command, args []string) error {
	req, err := loadRequest()
	if err != nil {
		return err
	}
	if _, err := submission.ImageReference(req.VMImage); err != nil {
		return err
	}
	files, err := inputs.Resolve(localFs, req.InputSpecs(), inputs.WithExclude(req.Exclude))
	if err != nil {
		return err
	}
	outputs, err := submission.OutputFiles(req.OutputSpecs(), "")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job: %s (pool %s, %d x %s)\n", req.SanitizedJobName, req.SanitizedJobName, req.PoolNodeCount, req.VMSize)
	fmt.Fprintf(out, "Command: %s\n", submission.CommandLine(req.Command))
	fmt.Fprintf(out, "Inputs (%d):\n", len(files)+len(req.ExtraResources))
	for _, f := range files {
		fmt.Fprintf(out, "  %s -> %s\n", f.LocalPath, f.RemotePath)
	}
	for _, extra := range req.ExtraResources {
		fmt.Fprintf(out, "  %s -> %s\n", extra.URL, extra.FilePath)
	}
	fmt.Fprintf(out, "Outputs (%d):\n", len(outputs))
	for _, o := range outputs {
		dest := o.Destination.Container.Path
		if dest == "" {
			dest = "."
		}
		fmt.Fprintf(out, "  %s -> %s\n", o.FilePattern, dest)
	}
	return nil
}

func runBatchStatusCmd(cmd *cobra.Command, args []string) error {
	d, _, err := newDriver()
	if err != nil {
		return err
	}
	task, err := d.Status(cmd.Context())
	if err != nil {
		return err
	}
	printTask(cmd, task)
	return nil
}

func printTask(cmd *cobra.Command, task *azbatch.Task) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Task %s: %s\n", task.ID, task.State)
	info := task.ExecutionInfo
	if info == nil {
		return
	}
	if info.ExitCode != nil {
		fmt.Fprintf(out, "Exit code: %d\n", *info.ExitCode)
	}
	if info.Result != "" {
		fmt.Fprintf(out, "Result: %s\n", info.Result)
	}
	if info.FailureInfo != nil {
		fmt.Fprintf(out, "Failure: %s %s\n", info.FailureInfo.Code, info.FailureInfo.Message)
	}
}

func runBatchDownloadCmd(cmd *cobra.Command, args []string) error {
	d, _, err := newDriver()
	if err != nil {
		return err
	}
	_, err = d.DownloadOutputs(cmd.Context(), batchFlags.outputDir)
	return err
}

func runBatchDeleteCmd(cmd *cobra.Command, args []string) error {
	d, _, err := newDriver()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := d.Cleanup(ctx); err != nil {
		return err
	}
	if batchFlags.containers {
		return d.DeleteContainers(ctx)
	}
	return nil
}
