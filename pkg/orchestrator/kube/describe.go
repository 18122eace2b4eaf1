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
	"bufio"
	"io"
	"kubejobsub/pkg/errs"
	"kubejobsub/pkg/shell"
	"strings"
)

type describeSection int

const (
	sectionOther describeSection = iota
	sectionCapacity
	sectionAllocated
)

// DescribeNodes runs `kubectl describe nodes` and parses its output.
func DescribeNodes(kubeconfig string) (*NodeReport, error) {
	if !shell.Available("kubectl") {
		return nil, errs.New(errs.KindConfiguration, "kubectl not found on PATH")
	}
	args := []string{"describe", "nodes"}
	if kubeconfig != "" {
		args = append(args, "--kubeconfig", kubeconfig)
	}
	res := shell.ExecuteCommand("kubectl", args...)
	if res.ExitCode != 0 {
		return nil, errs.New(errs.KindRemote, "kubectl describe nodes failed with exit code %d: %s", res.ExitCode, res.Stderr)
	}
	return ParseDescribeNodes(strings.NewReader(res.Stdout))
}

// ParseDescribeNodes reads `kubectl describe nodes` output. Every line is
// classified on its own: an unindented "Name:" starts a node, other
// unindented "Key:" lines switch section, and indented lines are read
// according to the current section.
func ParseDescribeNodes(r io.Reader) (*NodeReport, error) {
	report := &NodeReport{}
	var cur *NodeUsage
	section := sectionOther

	flush := func() {
		if cur != nil {
			cur.fill()
			report.Nodes = append(report.Nodes, *cur)
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if line == "" {
			continue
		}
		indented := line[0] == ' ' || line[0] == '\t'
		fields := strings.Fields(line)

		if !indented {
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				section = sectionOther
				continue
			}
			switch key {
			case "Name":
				flush()
				cur = &NodeUsage{Name: strings.TrimSpace(value)}
				section = sectionOther
			case "Capacity":
				section = sectionCapacity
			case "Allocated resources":
				section = sectionAllocated
			default:
				section = sectionOther
			}
			continue
		}
		if cur == nil {
			continue
		}

		switch section {
		case sectionCapacity:
			if len(fields) < 2 {
				continue
			}
			switch fields[0] {
			case "cpu:":
				cur.CPUCapacity = fields[1]
			case "memory:":
				cur.MemoryCapacity = fields[1]
			}
		case sectionAllocated:
			// Rows are "<resource> <requests> (<pct>) <limits> (<pct>)".
			if len(fields) < 3 || !strings.HasPrefix(fields[2], "(") {
				continue
			}
			switch fields[0] {
			case "cpu":
				cur.CPUUsage = fields[1] + " " + fields[2]
			case "memory":
				cur.MemoryUsage = fields[1] + " " + fields[2]
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(err, errs.KindRemote, "failed to read node description")
	}
	flush()
	return report, nil
}
