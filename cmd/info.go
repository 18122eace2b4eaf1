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
	"kubejobsub/pkg/errs"
	"kubejobsub/pkg/orchestrator/kube"

	"github.com/spf13/cobra"
)

var infoFlags struct {
	source     string
	output     string
	kubeconfig string
	align      bool
}

func init() {
	rootCmd.AddCommand(infoCmd)

	f := infoCmd.Flags()
	f.StringVar(&infoFlags.source, "source", "api", "Where node data comes from: api or kubectl.")
	f.StringVarP(&infoFlags.output, "output", "o", kube.FormatTable, "Output format: table, yaml or json.")
	f.StringVar(&infoFlags.kubeconfig, "kubeconfig", "", "Path to a kubeconfig file.")
	f.BoolVar(&infoFlags.align, "align", false, "Align table columns with spaces instead of tabs.")
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Tells you things about your Kubernetes cluster.",
	Long: `The 'info' command prints the number of nodes in the cluster and, for each
node, its CPU and memory capacity and how much of it running pods request.`,
	Args: cobra.NoArgs,
	RunE: runInfoCmd,
}

func runInfoCmd(cmd *cobra.Command, args []string) error {
	var (
		report *kube.NodeReport
		err    error
	)
	switch infoFlags.source {
	case "api":
		client, cerr := kube.NewClientset(infoFlags.kubeconfig)
		if cerr != nil {
			return cerr
		}
		report, err = kube.CollectNodeReport(cmd.Context(), client)
	case "kubectl":
		report, err = kube.DescribeNodes(infoFlags.kubeconfig)
	default:
		return errs.New(errs.KindConfiguration, "unknown --source %q (want api or kubectl)", infoFlags.source)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if infoFlags.output == kube.FormatTable && infoFlags.align {
		return kube.WriteAligned(out, report)
	}
	return kube.WriteReport(out, report, infoFlags.output)
}
