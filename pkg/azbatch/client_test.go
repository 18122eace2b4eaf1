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

package azbatch

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"kubejobsub/pkg/errs"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var (
	rawKey  = []byte("batch-shared-key")
	testKey = base64.StdEncoding.EncodeToString(rawKey)
	fixedAt = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient("acct", testKey, srv.URL, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}
	c.now = func() time.Time { return fixedAt }
	c.requestID = func() string { return "req-1" }
	return c
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name     string
		account  string
		key      string
		url      string
		wantKind errs.Kind
	}{
		{name: "bad key", account: "acct", key: "badaccountkey!", url: "https://acct.batch.azure.com", wantKind: errs.KindAuthentication},
		{name: "empty account", account: "", key: testKey, url: "https://acct.batch.azure.com", wantKind: errs.KindAuthentication},
		{name: "bad url", account: "acct", key: testKey, url: "bad_account_url", wantKind: errs.KindConfiguration},
		{name: "ftp url", account: "acct", key: testKey, url: "ftp://acct.batch.azure.com", wantKind: errs.KindConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.account, tt.key, tt.url)
			if err == nil {
				t.Fatal("NewClient() = nil error, want error")
			}
			if !errs.Is(err, tt.wantKind) {
				t.Errorf("NewClient() error = %v, want kind %s", err, tt.wantKind)
			}
		})
	}
}

func TestSharedKeySignature(t *testing.T) {
	var gotAuth, gotDate string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotDate = r.Header.Get("ocp-date")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"id":"task1","commandLine":"echo","state":"running"}`)
	})

	if _, err := c.GetTask(context.Background(), "myjob", "task1"); err != nil {
		t.Fatalf("GetTask() unexpected error: %v", err)
	}

	if gotDate != "Wed, 04 Mar 2026 05:06:07 GMT" {
		t.Errorf("ocp-date = %q", gotDate)
	}
	toSign := "GET\n\n\n\n\n\n\n\n\n\n\n\n" +
		"ocp-date:Wed, 04 Mar 2026 05:06:07 GMT\n" +
		"/acct/jobs/myjob/tasks/task1\napi-version:" + APIVersion
	mac := hmac.New(sha256.New, rawKey)
	mac.Write([]byte(toSign))
	want := "SharedKey acct:" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if gotAuth != want {
		t.Errorf("Authorization = %q, want %q", gotAuth, want)
	}
}

func TestAddPoolBody(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/pools" {
			t.Errorf("request = %s %s, want POST /pools", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != contentType {
			t.Errorf("Content-Type = %q, want %q", ct, contentType)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	})

	err := c.AddPool(context.Background(), Pool{
		ID:     "good-job-name",
		VMSize: "Standard_D16s_v3",
		VirtualMachineConfiguration: &VirtualMachineConfiguration{
			ImageReference: ImageReference{Publisher: "Canonical", Offer: "ubuntu", SKU: "22_04-lts", Version: "latest"},
			NodeAgentSKUID: "batch.node.ubuntu 22.04",
		},
		TargetDedicatedNodes: 1,
	})
	if err != nil {
		t.Fatalf("AddPool() unexpected error: %v", err)
	}
	want := map[string]interface{}{
		"id":     "good-job-name",
		"vmSize": "Standard_D16s_v3",
		"virtualMachineConfiguration": map[string]interface{}{
			"imageReference": map[string]interface{}{
				"publisher": "Canonical", "offer": "ubuntu", "sku": "22_04-lts", "version": "latest",
			},
			"nodeAgentSKUId": "batch.node.ubuntu 22.04",
		},
		"targetDedicatedNodes":   float64(1),
		"targetLowPriorityNodes": float64(0),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AddPool() body mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		code     string
		wantKind errs.Kind
	}{
		{name: "conflict", status: http.StatusConflict, code: "JobExists", wantKind: errs.KindConflict},
		{name: "not found", status: http.StatusNotFound, code: "PoolNotFound", wantKind: errs.KindNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, code: "AuthenticationFailed", wantKind: errs.KindAuthentication},
		{name: "forbidden", status: http.StatusForbidden, code: "InsufficientPermissions", wantKind: errs.KindAuthentication},
		{name: "server", status: http.StatusInternalServerError, code: "InternalError", wantKind: errs.KindRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"code":    tt.code,
					"message": map[string]string{"lang": "en-US", "value": "details"},
				})
			})
			err := c.AddJob(context.Background(), Job{ID: "j", PoolInfo: PoolInformation{PoolID: "j"}})
			if !errs.Is(err, tt.wantKind) {
				t.Fatalf("AddJob() error = %v, want kind %s", err, tt.wantKind)
			}
			var svcErr *ServiceError
			if !errors.As(err, &svcErr) {
				t.Fatalf("AddJob() error = %T, want *ServiceError in chain", err)
			}
			if svcErr.Code != tt.code || svcErr.StatusCode != tt.status || svcErr.Message != "details" {
				t.Errorf("ServiceError = %+v", svcErr)
			}
		})
	}
}

func TestDeletePoolPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/pools/good-job-name" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != APIVersion {
			t.Errorf("api-version = %q", r.URL.Query().Get("api-version"))
		}
		if r.Header.Get("client-request-id") != "req-1" {
			t.Errorf("client-request-id = %q", r.Header.Get("client-request-id"))
		}
		w.WriteHeader(http.StatusAccepted)
	})
	if err := c.DeletePool(context.Background(), "good-job-name"); err != nil {
		t.Fatalf("DeletePool() unexpected error: %v", err)
	}
}

func TestGetTaskDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"task1","commandLine":"run","state":"completed","executionInfo":{"exitCode":3,"result":"failure"}}`)
	})
	task, err := c.GetTask(context.Background(), "j", "task1")
	if err != nil {
		t.Fatalf("GetTask() unexpected error: %v", err)
	}
	if task.State != TaskCompleted {
		t.Errorf("State = %q, want completed", task.State)
	}
	if task.ExecutionInfo == nil || task.ExecutionInfo.ExitCode == nil || *task.ExecutionInfo.ExitCode != 3 {
		t.Errorf("ExecutionInfo = %+v, want exit code 3", task.ExecutionInfo)
	}
}

func TestNoRetryOnServerError(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	err := c.AddTask(context.Background(), "j", Task{ID: "t", CommandLine: "run"})
	if !errs.Is(err, errs.KindRemote) {
		t.Fatalf("AddTask() error = %v, want remote", err)
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.RequestID != "req-1" {
		t.Errorf("ServiceError = %+v, want request id req-1", svcErr)
	}
	if calls != 1 {
		t.Errorf("server saw %d requests, want 1", calls)
	}
}

func TestSharedKeySignatureWithBody(t *testing.T) {
	var gotAuth string
	var length int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		length = len(body)
		w.WriteHeader(http.StatusCreated)
	})
	if err := c.AddJob(context.Background(), Job{ID: "j", PoolInfo: PoolInformation{PoolID: "j"}}); err != nil {
		t.Fatalf("AddJob() unexpected error: %v", err)
	}

	toSign := "POST\n\n\n" + strconv.Itoa(length) + "\n\n" + contentType + "\n\n\n\n\n\n\n" +
		"ocp-date:Wed, 04 Mar 2026 05:06:07 GMT\n" +
		"/acct/jobs\napi-version:" + APIVersion
	mac := hmac.New(sha256.New, rawKey)
	mac.Write([]byte(toSign))
	want := "SharedKey acct:" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if length == 0 || gotAuth != want {
		t.Errorf("Authorization = %q, want %q (body %d bytes)", gotAuth, want, length)
	}
}
