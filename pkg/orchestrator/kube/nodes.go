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
	"context"
	"fmt"
	"kubejobsub/pkg/errs"
	"sort"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/client-go/kubernetes"
)

// Unknown fills report cells whose value could not be determined.
const Unknown = "<unknown>"

// NodeUsage is one row of the node report. Usage values read
// "requested (pct%)" of the node's allocatable amount.
type NodeUsage struct {
	Name           string `json:"name" yaml:"name"`
	CPUCapacity    string `json:"cpuCapacity" yaml:"cpuCapacity"`
	CPUUsage       string `json:"cpuUsage" yaml:"cpuUsage"`
	MemoryCapacity string `json:"memoryCapacity" yaml:"memoryCapacity"`
	MemoryUsage    string `json:"memoryUsage" yaml:"memoryUsage"`
}

// NodeReport summarizes the load on every node of a cluster.
type NodeReport struct {
	Nodes []NodeUsage `json:"nodes" yaml:"nodes"`
}

// fill replaces empty cells with Unknown.
func (u *NodeUsage) fill() {
	for _, f := range []*string{&u.CPUCapacity, &u.CPUUsage, &u.MemoryCapacity, &u.MemoryUsage} {
		if *f == "" {
			*f = Unknown
		}
	}
}

// CollectNodeReport lists nodes and their non-terminated pods through the
// API and sums pod requests per node.
func CollectNodeReport(ctx context.Context, client kubernetes.Interface) (*NodeReport, error) {
	nodes, err := client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errs.Wrap(err, errs.KindRemote, "failed to list nodes")
	}
	selector := fields.AndSelectors(
		fields.OneTermNotEqualSelector("status.phase", string(corev1.PodSucceeded)),
		fields.OneTermNotEqualSelector("status.phase", string(corev1.PodFailed)),
	)
	pods, err := client.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{FieldSelector: selector.String()})
	if err != nil {
		return nil, errs.Wrap(err, errs.KindRemote, "failed to list pods")
	}

	requested := map[string]corev1.ResourceList{}
	for i := range pods.Items {
		pod := &pods.Items[i]
		if pod.Spec.NodeName == "" || pod.Status.Phase == corev1.PodSucceeded || pod.Status.Phase == corev1.PodFailed {
			continue
		}
		sum, ok := requested[pod.Spec.NodeName]
		if !ok {
			sum = corev1.ResourceList{}
			requested[pod.Spec.NodeName] = sum
		}
		for name, q := range podRequests(pod) {
			total := sum[name]
			total.Add(q)
			sum[name] = total
		}
	}

	report := &NodeReport{}
	for i := range nodes.Items {
		node := &nodes.Items[i]
		req := requested[node.Name]
		allocatable := node.Status.Allocatable
		if len(allocatable) == 0 {
			allocatable = node.Status.Capacity
		}
		u := NodeUsage{
			Name:           node.Name,
			CPUCapacity:    quantityString(node.Status.Capacity, corev1.ResourceCPU),
			CPUUsage:       usage(req, allocatable, corev1.ResourceCPU),
			MemoryCapacity: quantityString(node.Status.Capacity, corev1.ResourceMemory),
			MemoryUsage:    usage(req, allocatable, corev1.ResourceMemory),
		}
		u.fill()
		report.Nodes = append(report.Nodes, u)
	}
	sort.Slice(report.Nodes, func(i, j int) bool { return report.Nodes[i].Name < report.Nodes[j].Name })
	return report, nil
}

// podRequests is the larger of the summed container requests and any single
// init container request, per resource.
func podRequests(pod *corev1.Pod) corev1.ResourceList {
	reqs := corev1.ResourceList{}
	for _, c := range pod.Spec.Containers {
		for name, q := range c.Resources.Requests {
			total := reqs[name]
			total.Add(q)
			reqs[name] = total
		}
	}
	for _, c := range pod.Spec.InitContainers {
		for name, q := range c.Resources.Requests {
			if cur, ok := reqs[name]; !ok || q.Cmp(cur) > 0 {
				reqs[name] = q.DeepCopy()
			}
		}
	}
	return reqs
}

func quantityString(list corev1.ResourceList, name corev1.ResourceName) string {
	q, ok := list[name]
	if !ok {
		return ""
	}
	return q.String()
}

func usage(requested, allocatable corev1.ResourceList, name corev1.ResourceName) string {
	alloc, ok := allocatable[name]
	if !ok {
		return ""
	}
	req := requested[name]
	if req.IsZero() {
		req = *resource.NewQuantity(0, alloc.Format)
	}
	pct := int64(0)
	if alloc.MilliValue() > 0 {
		pct = int64(float64(req.MilliValue()) / float64(alloc.MilliValue()) * 100)
	}
	return fmt.Sprintf("%s (%d%%)", req.String(), pct)
}
