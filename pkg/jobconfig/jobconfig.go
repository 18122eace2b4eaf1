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

// Package jobconfig parses batch job configuration files.
//
// A configuration file holds one KEY:=VALUE directive per line. Blank lines and
// lines starting with '#' are ignored. The line is split on the first ":="
// so a value may contain further ":=" sequences, but a key never can.
package jobconfig

import (
	"bufio"
	"fmt"
	"io"
	"kubejobsub/pkg/errs"
	"kubejobsub/pkg/naming"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// DefaultGroup is the group every INPUT and OUTPUT directive of a file joins.
const DefaultGroup = ""

const (
	DefaultVMSize        = "Standard_D16s_v3"
	DefaultNodeAgentSKU  = "batch.node.ubuntu 22.04"
	DefaultPoolNodeCount = 1
	DefaultSASExpiry     = 2 * time.Hour
	DefaultTaskID        = "task1"
)

// ExtraResource is a remote file the task downloads as-is, without upload.
type ExtraResource struct {
	URL      string
	FilePath string
}

// JobRequest describes a single batch submission.
type JobRequest struct {
	BatchAccountName   string
	BatchAccountKey    string
	BatchAccountURL    string
	StorageAccountName string
	StorageAccountKey  string

	JobName string
	// SanitizedJobName is set by Validate.
	SanitizedJobName string

	Command string
	VMImage string
	VMSize  string

	// Inputs and Outputs map a group to its raw specs in declaration order.
	Inputs  map[string][]string
	Outputs map[string][]string

	NodeAgentSKU   string
	PoolNodeCount  int
	SASExpiry      time.Duration
	TaskID         string
	ExtraResources []ExtraResource
	Exclude        []string
}

// NewJobRequest returns a request with every optional field at its default.
func NewJobRequest() *JobRequest {
	return &JobRequest{
		VMSize:        DefaultVMSize,
		Inputs:        map[string][]string{},
		Outputs:       map[string][]string{},
		NodeAgentSKU:  DefaultNodeAgentSKU,
		PoolNodeCount: DefaultPoolNodeCount,
		SASExpiry:     DefaultSASExpiry,
		TaskID:        DefaultTaskID,
	}
}

// InputSpecs returns the INPUT specs of the default group.
func (r *JobRequest) InputSpecs() []string {
	return r.Inputs[DefaultGroup]
}

// OutputSpecs returns the OUTPUT specs of the default group.
func (r *JobRequest) OutputSpecs() []string {
	return r.Outputs[DefaultGroup]
}

type setter func(r *JobRequest, value string) error

func str(field func(r *JobRequest) *string) setter {
	return func(r *JobRequest, v string) error {
		*field(r) = v
		return nil
	}
}

func positiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer, got %q", v)
	}
	return n, nil
}

var setters = map[string]setter{
	KeyBatchAccountName:   str(func(r *JobRequest) *string { return &r.BatchAccountName }),
	KeyBatchAccountKey:    str(func(r *JobRequest) *string { return &r.BatchAccountKey }),
	KeyBatchAccountURL:    str(func(r *JobRequest) *string { return &r.BatchAccountURL }),
	KeyStorageAccountName: str(func(r *JobRequest) *string { return &r.StorageAccountName }),
	KeyStorageAccountKey:  str(func(r *JobRequest) *string { return &r.StorageAccountKey }),
	KeyJobName:            str(func(r *JobRequest) *string { return &r.JobName }),
	KeyCommand:            str(func(r *JobRequest) *string { return &r.Command }),
	KeyVMImage:            str(func(r *JobRequest) *string { return &r.VMImage }),
	KeyVMSize:             str(func(r *JobRequest) *string { return &r.VMSize }),
	KeyNodeAgentSKU:       str(func(r *JobRequest) *string { return &r.NodeAgentSKU }),
	KeyTaskID:             str(func(r *JobRequest) *string { return &r.TaskID }),
	KeyInput: func(r *JobRequest, v string) error {
		r.Inputs[DefaultGroup] = append(r.Inputs[DefaultGroup], v)
		return nil
	},
	KeyOutput: func(r *JobRequest, v string) error {
		r.Outputs[DefaultGroup] = append(r.Outputs[DefaultGroup], v)
		return nil
	},
	KeyExclude: func(r *JobRequest, v string) error {
		r.Exclude = append(r.Exclude, strings.Fields(v)...)
		return nil
	},
	KeyPoolNodeCount: func(r *JobRequest, v string) error {
		n, err := positiveInt(v)
		if err != nil {
			return err
		}
		r.PoolNodeCount = n
		return nil
	},
	KeySASExpiryHours: func(r *JobRequest, v string) error {
		n, err := positiveInt(v)
		if err != nil {
			return err
		}
		r.SASExpiry = time.Duration(n) * time.Hour
		return nil
	},
	KeyExtraResource: func(r *JobRequest, v string) error {
		fields := strings.Fields(v)
		if len(fields) != 2 {
			return fmt.Errorf("must be \"URL FILEPATH\", got %q", v)
		}
		r.ExtraResources = append(r.ExtraResources, ExtraResource{URL: fields[0], FilePath: fields[1]})
		return nil
	},
}

// Parse reads the configuration file at path from fs.
func Parse(fs afero.Fs, path string) (*JobRequest, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfiguration, "failed to open configuration file %s", path)
	}
	defer f.Close()
	return ParseReader(f, path)
}

// ParseReader parses configuration directives from r. source names the input
// in error messages. All violations in the input are reported together.
func ParseReader(r io.Reader, source string) (*JobRequest, error) {
	req := NewJobRequest()
	cfgErr := &ConfigError{Source: source}
	seenUnknown := map[string]bool{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":=")
		if !found {
			cfgErr.MalformedLines = append(cfgErr.MalformedLines, lineNo)
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		set, ok := setters[key]
		if !ok {
			if !seenUnknown[key] {
				seenUnknown[key] = true
				cfgErr.UnknownKeys = append(cfgErr.UnknownKeys, key)
			}
			continue
		}
		if err := set(req, value); err != nil {
			cfgErr.InvalidValues = append(cfgErr.InvalidValues, fmt.Sprintf("line %d: %s %v", lineNo, key, err))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(err, errs.KindConfiguration, "failed to read configuration %s", source)
	}
	if !cfgErr.empty() {
		cfgErr.Suggestions = suggestKeys(cfgErr.UnknownKeys)
		return nil, cfgErr
	}
	return req, nil
}

// Validate checks that every required field is set, then validates the job
// name and stores its sanitized form.
func (r *JobRequest) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{KeyBatchAccountName, r.BatchAccountName},
		{KeyBatchAccountKey, r.BatchAccountKey},
		{KeyBatchAccountURL, r.BatchAccountURL},
		{KeyStorageAccountName, r.StorageAccountName},
		{KeyStorageAccountKey, r.StorageAccountKey},
		{KeyJobName, r.JobName},
		{KeyCommand, r.Command},
		{KeyVMImage, r.VMImage},
		{KeyVMSize, r.VMSize},
		{KeyNodeAgentSKU, r.NodeAgentSKU},
		{KeyTaskID, r.TaskID},
	}
	var missing []string
	for _, f := range required {
		if f.value == "" {
			missing = append(missing, f.key)
		}
	}
	if len(r.InputSpecs()) == 0 {
		missing = append(missing, KeyInput)
	}
	if len(r.OutputSpecs()) == 0 {
		missing = append(missing, KeyOutput)
	}
	if len(missing) > 0 {
		return &ConfigError{MissingKeys: missing}
	}

	sanitized, err := naming.ValidateJobName(r.JobName)
	if err != nil {
		return err
	}
	r.SanitizedJobName = sanitized
	return nil
}
