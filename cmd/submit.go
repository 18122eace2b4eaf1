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
	"kubejobsub/pkg/logging"
	"kubejobsub/pkg/orchestrator"
	"kubejobsub/pkg/orchestrator/kube"
	"kubejobsub/pkg/shell"

	"github.com/spf13/cobra"
)

var submitFlags struct {
	jobName        string
	image          string
	cpus           int
	memoryGB       float64
	volume         string
	command        string
	namespace      string
	outputManifest string
	kubeconfig     string
	useKubectl     bool
	randomSuffix   bool
}

func init() {
	rootCmd.AddCommand(submitCmd)

	f := submitCmd.Flags()
	f.StringVarP(&submitFlags.jobName, "job-name", "j", "", "Name of the job. Required.")
	f.StringVarP(&submitFlags.image, "image", "i", "", "Container image to run (e.g., ubuntu:22.04). Required.")
	f.IntVarP(&submitFlags.cpus, "num-cpu", "n", 1, "Number of CPUs to request. Must be greater than 0.")
	f.Float64VarP(&submitFlags.memoryGB, "memory", "m", 2, "Amount of memory to request, in GB.")
	f.StringVarP(&submitFlags.volume, "volume", "v", "", "Volume to mount as SOURCE:MOUNTPATH. An absolute SOURCE is a host path, otherwise a PersistentVolumeClaim name.")
	f.StringVarP(&submitFlags.command, "command", "e", "", "Command to execute in the container. Defaults to the image entrypoint.")
	f.StringVar(&submitFlags.namespace, "namespace", kube.DefaultNamespace, "Namespace to create the job in.")
	f.StringVarP(&submitFlags.outputManifest, "output-manifest", "o", "", "Path to output the generated Kubernetes manifest instead of submitting it.")
	f.StringVar(&submitFlags.kubeconfig, "kubeconfig", "", "Path to a kubeconfig file.")
	f.BoolVar(&submitFlags.useKubectl, "use-kubectl", false, "Submit with kubectl instead of the Kubernetes API.")
	f.BoolVar(&submitFlags.randomSuffix, "random-suffix", false, "Append a random suffix to the job name.")

	_ = submitCmd.MarkFlagRequired("job-name")
	_ = submitCmd.MarkFlagRequired("image")
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submits a job to your Kubernetes cluster.",
	Long: `The 'submit' command creates a Kubernetes batch/v1 Job running a single
container with the requested CPUs, memory and optional volume.`,
	Args: cobra.NoArgs,
	RunE: runSubmitCmd,
}

func runSubmitCmd(cmd *cobra.Command, args []string) error {
	volume, err := kube.ParseVolume(submitFlags.volume)
	if err != nil {
		return err
	}
	name := submitFlags.jobName
	if submitFlags.randomSuffix {
		name += "-" + shell.RandomString(5)
	}
	job := orchestrator.JobDefinition{
		Name:           name,
		Image:          submitFlags.image,
		Command:        submitFlags.command,
		CPUs:           submitFlags.cpus,
		MemoryGB:       submitFlags.memoryGB,
		Volume:         volume,
		Namespace:      submitFlags.namespace,
		OutputManifest: submitFlags.outputManifest,
	}

	var opts []kube.Option
	switch {
	case job.OutputManifest != "":
	case submitFlags.useKubectl:
		opts = append(opts, kube.WithKubectl(submitFlags.kubeconfig))
	default:
		client, err := kube.NewClientset(submitFlags.kubeconfig)
		if err != nil {
			return err
		}
		opts = append(opts, kube.WithClient(client))
	}

	logging.Info("Submitting job %s...", job.Name)
	return kube.NewOrchestrator(opts...).SubmitJob(cmd.Context(), job)
}
