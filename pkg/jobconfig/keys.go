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

package jobconfig

import (
	"fmt"
	"kubejobsub/pkg/errs"
	"strings"

	"github.com/agext/levenshtein"
)

// Recognized configuration keys.
const (
	KeyBatchAccountName   = "BATCH_ACCOUNT_NAME"
	KeyBatchAccountKey    = "BATCH_ACCOUNT_KEY"
	KeyBatchAccountURL    = "BATCH_ACCOUNT_URL"
	KeyStorageAccountName = "STORAGE_ACCOUNT_NAME"
	KeyStorageAccountKey  = "STORAGE_ACCOUNT_KEY"
	KeyJobName            = "JOB_NAME"
	KeyCommand            = "COMMAND"
	KeyInput              = "INPUT"
	KeyOutput             = "OUTPUT"
	KeyVMImage            = "VM_IMAGE"
	KeyVMSize             = "VM_SIZE"

	KeyNodeAgentSKU   = "NODE_AGENT_SKU"
	KeyPoolNodeCount  = "POOL_NODE_COUNT"
	KeySASExpiryHours = "SAS_EXPIRY_HOURS"
	KeyTaskID         = "TASK_ID"
	KeyExtraResource  = "EXTRA_RESOURCE"
	KeyExclude        = "EXCLUDE"
)

// maxSuggestionDistance bounds the edit distance of a "did you mean" hint.
const maxSuggestionDistance = 3

// ConfigError collects every problem found in a configuration.
type ConfigError struct {
	Source         string
	UnknownKeys    []string
	Suggestions    map[string]string
	MalformedLines []int
	InvalidValues  []string
	MissingKeys    []string
}

func (e *ConfigError) ErrorKind() errs.Kind {
	return errs.KindConfiguration
}

func (e *ConfigError) empty() bool {
	return len(e.UnknownKeys) == 0 && len(e.MalformedLines) == 0 &&
		len(e.InvalidValues) == 0 && len(e.MissingKeys) == 0
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.UnknownKeys) > 0 {
		keys := make([]string, len(e.UnknownKeys))
		for i, k := range e.UnknownKeys {
			keys[i] = k
			if s, ok := e.Suggestions[k]; ok {
				keys[i] = fmt.Sprintf("%s (did you mean %s?)", k, s)
			}
		}
		parts = append(parts, "unrecognized options: "+strings.Join(keys, ", "))
	}
	if len(e.MalformedLines) > 0 {
		lines := make([]string, len(e.MalformedLines))
		for i, n := range e.MalformedLines {
			lines[i] = fmt.Sprint(n)
		}
		parts = append(parts, "lines without KEY:=VALUE: "+strings.Join(lines, ", "))
	}
	if len(e.InvalidValues) > 0 {
		parts = append(parts, "invalid values: "+strings.Join(e.InvalidValues, "; "))
	}
	if len(e.MissingKeys) > 0 {
		parts = append(parts, "missing required configuration: "+strings.Join(e.MissingKeys, ", "))
	}
	msg := "[" + string(errs.KindConfiguration) + "] " + strings.Join(parts, "; ")
	if e.Source != "" {
		msg = fmt.Sprintf("%s (in %s)", msg, e.Source)
	}
	return msg
}

func knownKeys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	return keys
}

func suggestKeys(unknown []string) map[string]string {
	if len(unknown) == 0 {
		return nil
	}
	known := knownKeys()
	out := map[string]string{}
	for _, u := range unknown {
		best, bestDist := "", maxSuggestionDistance+1
		for _, k := range known {
			d := levenshtein.Distance(strings.ToUpper(u), k, nil)
			if d < bestDist || (d == bestDist && k < best) {
				best, bestDist = k, d
			}
		}
		if best != "" {
			out[u] = best
		}
	}
	return out
}
