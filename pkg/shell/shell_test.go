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

package shell

import (
	"strings"
	"testing"
)

func TestExecuteCommandCapturesOutput(t *testing.T) {
	if !Available("sh") {
		t.Skip("sh not available")
	}
	res := ExecuteCommand("sh", "-c", "echo out; echo err >&2; exit 3")
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "out\n")
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "err\n")
	}
}

func TestCommandInput(t *testing.T) {
	if !Available("cat") {
		t.Skip("cat not available")
	}
	cmd := NewCommand("cat")
	cmd.SetInput("hello")
	res := cmd.Execute()
	if res.ExitCode != 0 || res.Stdout != "hello" {
		t.Errorf("Execute() = %+v, want exit 0 with stdout %q", res, "hello")
	}
}

func TestExecuteMissingBinary(t *testing.T) {
	res := ExecuteCommand("kubejobsub-definitely-not-a-binary")
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
	if res.Stderr == "" {
		t.Error("Stderr is empty, want start error")
	}
}

func TestRandomString(t *testing.T) {
	s := RandomString(8)
	if len(s) != 8 {
		t.Fatalf("len = %d, want 8", len(s))
	}
	if strings.ToLower(s) != s {
		t.Errorf("RandomString(8) = %q, want lowercase", s)
	}
}
