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

// Package inputs resolves INPUT specs into the files a remote task receives.
package inputs

import (
	"kubejobsub/pkg/errs"
	"kubejobsub/pkg/logging"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"
	"github.com/spf13/afero"
)

// ResourceFile maps a local file to its path on the remote node. URL is set
// once the file has been uploaded.
type ResourceFile struct {
	LocalPath  string
	RemotePath string
	URL        string
}

// Spec is a parsed INPUT line.
type Spec struct {
	Patterns    []string
	Destination string
}

// ParseSpec splits a raw INPUT line. With more than one token the last one is
// the destination directory.
func ParseSpec(raw string) Spec {
	fields := strings.Fields(raw)
	if len(fields) <= 1 {
		return Spec{Patterns: fields}
	}
	return Spec{Patterns: fields[:len(fields)-1], Destination: fields[len(fields)-1]}
}

type resolver struct {
	fs      afero.Fs
	exclude *patternmatcher.PatternMatcher
}

// Option configures Resolve.
type Option func(*resolver) error

// WithExclude skips walked entries matching any of the .dockerignore-style
// patterns, relative to the matched directory.
func WithExclude(patterns []string) Option {
	return func(r *resolver) error {
		if len(patterns) == 0 {
			return nil
		}
		pm, err := patternmatcher.New(patterns)
		if err != nil {
			return errs.Wrap(err, errs.KindConfiguration, "invalid exclude patterns")
		}
		r.exclude = pm
		return nil
	}
}

// Resolve expands specs into resource files. Patterns are processed in order
// and a pattern matching nothing contributes nothing.
func Resolve(fs afero.Fs, specs []string, opts ...Option) ([]ResourceFile, error) {
	r := &resolver{fs: fs}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	var files []ResourceFile
	for _, raw := range specs {
		spec := ParseSpec(raw)
		for _, pattern := range spec.Patterns {
			matched, err := r.resolvePattern(pattern, spec.Destination)
			if err != nil {
				return nil, err
			}
			if len(matched) == 0 {
				logging.Warn("Input pattern %q matched no files", pattern)
			}
			files = append(files, matched...)
		}
	}
	return files, nil
}

func (r *resolver) resolvePattern(pattern, destination string) ([]ResourceFile, error) {
	matches, err := afero.Glob(r.fs, pattern)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfiguration, "invalid input pattern %q", pattern)
	}

	var files []ResourceFile
	for _, match := range matches {
		info, err := r.fs.Stat(match)
		if err != nil {
			return nil, errs.Wrap(err, errs.KindConfiguration, "failed to stat input %s", match)
		}
		switch {
		case info.IsDir():
			walked, err := r.walkDir(match, destination)
			if err != nil {
				return nil, err
			}
			files = append(files, walked...)
		case info.Mode().IsRegular():
			files = append(files, ResourceFile{
				LocalPath:  match,
				RemotePath: path.Join(destination, filepath.Base(match)),
			})
		default:
			logging.Debug("Skipping %s: not a regular file", match)
		}
	}
	return files, nil
}

// walkDir keeps the directory's own name as the first remote path segment.
func (r *resolver) walkDir(root, destination string) ([]ResourceFile, error) {
	base := filepath.Base(filepath.Clean(root))
	var files []ResourceFile
	err := afero.Walk(r.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if r.exclude != nil {
			check := rel
			if info.IsDir() {
				check += "/"
			}
			ignored, err := r.exclude.MatchesOrParentMatches(check)
			if err != nil {
				return err
			}
			if ignored {
				logging.Debug("Excluding %s", p)
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		files = append(files, ResourceFile{
			LocalPath:  p,
			RemotePath: path.Join(destination, base, rel),
		})
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.KindConfiguration, "failed to walk input directory %s", root)
	}
	return files, nil
}
