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
	"testing"

	"github.com/google/go-cmp/cmp"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
)

func testNode(name, cpu, memory string) *corev1.Node {
	list := corev1.ResourceList{
		corev1.ResourceCPU:    resource.MustParse(cpu),
		corev1.ResourceMemory: resource.MustParse(memory),
	}
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Status:     corev1.NodeStatus{Capacity: list, Allocatable: list.DeepCopy()},
	}
}

func testPod(name, node string, phase corev1.PodPhase, cpu, memory string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Spec: corev1.PodSpec{
			NodeName: node,
			Containers: []corev1.Container{{
				Name: "main",
				Resources: corev1.ResourceRequirements{Requests: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse(cpu),
					corev1.ResourceMemory: resource.MustParse(memory),
				}},
			}},
		},
		Status: corev1.PodStatus{Phase: phase},
	}
}

func TestCollectNodeReport(t *testing.T) {
	objects := []runtime.Object{
		testNode("node-b", "4", "8Gi"),
		testNode("node-a", "2", "4Gi"),
		testPod("p1", "node-b", corev1.PodRunning, "500m", "1Gi"),
		testPod("p2", "node-b", corev1.PodPending, "1", "1Gi"),
		testPod("done", "node-b", corev1.PodSucceeded, "2", "4Gi"),
		testPod("unscheduled", "", corev1.PodPending, "1", "1Gi"),
	}
	client := fake.NewSimpleClientset(objects...)

	report, err := CollectNodeReport(context.Background(), client)
	if err != nil {
		t.Fatalf("CollectNodeReport() unexpected error: %v", err)
	}
	want := &NodeReport{Nodes: []NodeUsage{
		{Name: "node-a", CPUCapacity: "2", CPUUsage: "0 (0%)", MemoryCapacity: "4Gi", MemoryUsage: "0 (0%)"},
		{Name: "node-b", CPUCapacity: "4", CPUUsage: "1500m (37%)", MemoryCapacity: "8Gi", MemoryUsage: "2Gi (25%)"},
	}}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("CollectNodeReport() mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectNodeReportMissingResources(t *testing.T) {
	client := fake.NewSimpleClientset(&corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "bare"}})
	report, err := CollectNodeReport(context.Background(), client)
	if err != nil {
		t.Fatalf("CollectNodeReport() unexpected error: %v", err)
	}
	want := []NodeUsage{{Name: "bare", CPUCapacity: Unknown, CPUUsage: Unknown, MemoryCapacity: Unknown, MemoryUsage: Unknown}}
	if diff := cmp.Diff(want, report.Nodes); diff != "" {
		t.Errorf("Nodes mismatch (-want +got):\n%s", diff)
	}
}

func TestPodRequestsUsesLargestInitContainer(t *testing.T) {
	pod := testPod("p", "n", corev1.PodRunning, "500m", "1Gi")
	pod.Spec.InitContainers = []corev1.Container{{
		Name: "init",
		Resources: corev1.ResourceRequirements{Requests: corev1.ResourceList{
			corev1.ResourceCPU: resource.MustParse("2"),
		}},
	}}
	reqs := podRequests(pod)
	if cpu := reqs[corev1.ResourceCPU]; cpu.String() != "2" {
		t.Errorf("cpu = %s, want 2", cpu.String())
	}
	if mem := reqs[corev1.ResourceMemory]; mem.String() != "1Gi" {
		t.Errorf("memory = %s, want 1Gi", mem.String())
	}
}
