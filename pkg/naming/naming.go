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

// Package naming validates identifiers used for batch pools, jobs and blob
// containers.
package naming

import (
	"fmt"
	"kubejobsub/pkg/errs"
	"strings"
)

const (
	MinJobNameLength = 4
	// MaxJobNameLength leaves room for the "-output" container suffix within
	// the 63-character container name limit.
	MaxJobNameLength = MaxContainerNameLength - len(OutputSuffix)

	MinContainerNameLength = 3
	MaxContainerNameLength = 63

	InputSuffix  = "-input"
	OutputSuffix = "-output"
)

func isIDChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
}

// SanitizeID lower-cases id. Characters outside [a-z0-9-] after lower-casing
// are rejected, never stripped.
func SanitizeID(id string) (string, error) {
	lowered := strings.ToLower(id)
	var bad []string
	seen := map[rune]bool{}
	for _, r := range lowered {
		if isIDChar(r) || seen[r] {
			continue
		}
		seen[r] = true
		bad = append(bad, fmt.Sprintf("%q", r))
	}
	if len(bad) > 0 {
		return "", errs.WithViolations(errs.KindNaming,
			fmt.Sprintf("identifier %q contains characters outside [a-z0-9-]", id), bad)
	}
	return lowered, nil
}

// ValidateJobName checks name against the job naming rules and returns the
// sanitized name. Every violated rule is reported.
func ValidateJobName(name string) (string, error) {
	violations := checkIdentifier(name, MinJobNameLength, MaxJobNameLength)
	if len(violations) > 0 {
		return "", errs.WithViolations(errs.KindNaming, fmt.Sprintf("invalid job name %q", name), violations)
	}
	return SanitizeID(name)
}

// ContainerName derives a blob container name from a job name.
func ContainerName(jobName, suffix string) (string, error) {
	id, err := SanitizeID(jobName + suffix)
	if err != nil {
		return "", err
	}
	if violations := checkIdentifier(id, MinContainerNameLength, MaxContainerNameLength); len(violations) > 0 {
		return "", errs.WithViolations(errs.KindNaming, fmt.Sprintf("invalid container name %q", id), violations)
	}
	return id, nil
}

func checkIdentifier(name string, minLen, maxLen int) []string {
	var violations []string
	if name != strings.ToLower(name) {
		violations = append(violations, "must be lowercase")
	}
	if n := len(name); n < minLen || n > maxLen {
		violations = append(violations, fmt.Sprintf("length must be between %d and %d characters, got %d", minLen, maxLen, n))
	}
	for _, r := range strings.ToLower(name) {
		if !isIDChar(r) {
			violations = append(violations, "only lowercase letters, digits and hyphens are allowed")
			break
		}
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		violations = append(violations, "must not start or end with a hyphen")
	}
	if strings.Contains(name, "--") {
		violations = append(violations, "must not contain consecutive hyphens")
	}
	return violations
}
