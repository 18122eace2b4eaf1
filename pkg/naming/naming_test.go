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

package naming

import (
	"kubejobsub/pkg/errs"
	"strings"
	"testing"
)

func TestValidateJobName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "good", input: "good-job-name", want: "good-job-name"},
		{name: "digits", input: "run42", want: "run42"},
		{name: "uppercase", input: "JOBNAME", wantErr: true},
		{name: "too short", input: "job", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 70), wantErr: true},
		{name: "illegal characters", input: "job!@#$", wantErr: true},
		{name: "underscore", input: "my_job", wantErr: true},
		{name: "leading hyphen", input: "-job-name", wantErr: true},
		{name: "trailing hyphen", input: "job-name-", wantErr: true},
		{name: "consecutive hyphens", input: "job--name", wantErr: true},
		{name: "max length", input: strings.Repeat("a", MaxJobNameLength), want: strings.Repeat("a", MaxJobNameLength)},
		{name: "one over max", input: strings.Repeat("a", MaxJobNameLength+1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateJobName(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ValidateJobName(%q) = %q, want error", tt.input, got)
				}
				if !errs.Is(err, errs.KindNaming) {
					t.Errorf("ValidateJobName(%q) error kind = %v, want naming", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateJobName(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ValidateJobName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateJobNameReportsAllViolations(t *testing.T) {
	_, err := ValidateJobName("-A_")
	e, ok := err.(*errs.Error)
	if !ok {
		t.Fatalf("error = %T, want *errs.Error", err)
	}
	// uppercase, length, character set, hyphen position
	if len(e.Violations) != 4 {
		t.Errorf("got %d violations %q, want 4", len(e.Violations), e.Violations)
	}
}

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "MyJob-1", want: "myjob-1"},
		{input: "abc", want: "abc"},
		{input: "ALLCAPS", want: "allcaps"},
		{input: "has_underscore", wantErr: true},
		{input: "dot.name", wantErr: true},
		{input: "space name", wantErr: true},
		{input: "ünïcode", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeID(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SanitizeID(%q) = %q, want error", tt.input, got)
			} else if !errs.Is(err, errs.KindNaming) {
				t.Errorf("SanitizeID(%q) error kind = %v, want naming", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("SanitizeID(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("SanitizeID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSanitizeIDIdempotent(t *testing.T) {
	for _, in := range []string{"Job-Name", "abc123", "A-B-C", "x", "", "UPPER-lower-123"} {
		once, err := SanitizeID(in)
		if err != nil {
			t.Fatalf("SanitizeID(%q) unexpected error: %v", in, err)
		}
		twice, err := SanitizeID(once)
		if err != nil {
			t.Fatalf("SanitizeID(%q) unexpected error: %v", once, err)
		}
		if once != twice {
			t.Errorf("SanitizeID not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestContainerName(t *testing.T) {
	got, err := ContainerName("Good-Job", InputSuffix)
	if err != nil {
		t.Fatalf("ContainerName() unexpected error: %v", err)
	}
	if got != "good-job-input" {
		t.Errorf("ContainerName() = %q, want %q", got, "good-job-input")
	}

	long := strings.Repeat("a", MaxJobNameLength)
	if _, err := ContainerName(long, OutputSuffix); err != nil {
		t.Errorf("ContainerName(max job name) unexpected error: %v", err)
	}
	if _, err := ContainerName(long+"a", OutputSuffix); err == nil {
		t.Errorf("ContainerName(over max) = nil error, want error")
	}
}
