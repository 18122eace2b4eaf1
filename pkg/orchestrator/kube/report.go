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
	"encoding/json"
	"fmt"
	"io"
	"kubejobsub/pkg/errs"
	"text/tabwriter"

	"gopkg.in/yaml.v2"
)

// Report output formats.
const (
	FormatTable = "table"
	FormatYAML  = "yaml"
	FormatJSON  = "json"
)

// WriteReport renders report to w in the given format. The table format is
// a count line followed by tab-separated rows.
func WriteReport(w io.Writer, report *NodeReport, format string) error {
	switch format {
	case FormatTable, "":
		return writeTable(w, report)
	case FormatYAML:
		out, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal node report: %w", err)
		}
		_, err = w.Write(out)
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		return errs.New(errs.KindConfiguration, "unknown output format %q (want %s, %s or %s)", format, FormatTable, FormatYAML, FormatJSON)
	}
}

func writeTable(w io.Writer, report *NodeReport) error {
	if _, err := fmt.Fprintf(w, "Number of nodes in cluster: %d\n", len(report.Nodes)); err != nil {
		return err
	}
	fmt.Fprintln(w, "NodeName\tCPU_Capacity\tCPU_Usage\tMemory_Capacity\tMemory_Usage")
	for _, n := range report.Nodes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", n.Name, n.CPUCapacity, n.CPUUsage, n.MemoryCapacity, n.MemoryUsage)
	}
	return nil
}

// WriteAligned renders the table format with aligned columns for terminals.
func WriteAligned(w io.Writer, report *NodeReport) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	if err := writeTable(tw, report); err != nil {
		return err
	}
	return tw.Flush()
}
