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

package blobstore

import (
	"encoding/base64"
	"kubejobsub/pkg/errs"
	"net/url"
	"testing"
	"time"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("not-a-real-storage-key"))

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("mystorage", testKey)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestNewRejectsBadKey(t *testing.T) {
	_, err := New("mystorage", "%%% not base64 %%%")
	if err == nil {
		t.Fatal("New() with bad key = nil error, want error")
	}
	if !errs.Is(err, errs.KindAuthentication) {
		t.Errorf("New() error = %v, want authentication kind", err)
	}
}

func TestReadURL(t *testing.T) {
	s := newTestStore(t)
	raw, err := s.ReadURL("good-job-input", "input/test_files/file_1.txt", 2*time.Hour)
	if err != nil {
		t.Fatalf("ReadURL() unexpected error: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	if u.Host != "mystorage.blob.core.windows.net" {
		t.Errorf("host = %q, want mystorage.blob.core.windows.net", u.Host)
	}
	if u.Path != "/good-job-input/input/test_files/file_1.txt" {
		t.Errorf("path = %q, want /good-job-input/input/test_files/file_1.txt", u.Path)
	}
	q := u.Query()
	if got := q.Get("sp"); got != "r" {
		t.Errorf("sp = %q, want r", got)
	}
	if got := q.Get("sr"); got != "c" {
		t.Errorf("sr = %q, want c", got)
	}
	if q.Get("sig") == "" {
		t.Error("sig is empty")
	}
	se, err := time.Parse(time.RFC3339, q.Get("se"))
	if err != nil {
		t.Fatalf("se = %q: %v", q.Get("se"), err)
	}
	if want := time.Date(2026, 1, 2, 5, 4, 5, 0, time.UTC); !se.Equal(want) {
		t.Errorf("se = %v, want %v", se, want)
	}
}

func TestContainerWriteURL(t *testing.T) {
	s := newTestStore(t)
	raw, err := s.ContainerWriteURL("good-job-output", time.Hour)
	if err != nil {
		t.Fatalf("ContainerWriteURL() unexpected error: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	if u.Path != "/good-job-output" {
		t.Errorf("path = %q, want /good-job-output", u.Path)
	}
	if got := u.Query().Get("sp"); got != "cw" {
		t.Errorf("sp = %q, want cw", got)
	}
}
