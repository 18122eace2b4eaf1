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

// Package azbatch is a minimal Azure Batch data-plane client authenticated
// with an account shared key.
package azbatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"kubejobsub/pkg/errs"
	"kubejobsub/pkg/logging"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/google/uuid"
)

const (
	APIVersion  = "2024-07-01.20.0"
	contentType = "application/json; odata=minimalmetadata"

	// CodeJobExists is the error code returned when adding a job whose id
	// is already taken.
	CodeJobExists = "JobExists"

	moduleName    = "azbatch"
	moduleVersion = "v0.1.0"
)

// Client talks to one Batch account.
type Client struct {
	accountName string
	key         []byte
	baseURL     *url.URL
	transport   policy.Transporter
	pipeline    runtime.Pipeline
	now         func() time.Time
	requestID   func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.transport = hc }
}

// NewClient validates the credentials locally and returns a client for
// accountURL, such as https://myaccount.eastus.batch.azure.com.
func NewClient(accountName, accountKey, accountURL string, opts ...Option) (*Client, error) {
	if accountName == "" {
		return nil, errs.New(errs.KindAuthentication, "batch account name is empty")
	}
	key, err := base64.StdEncoding.DecodeString(accountKey)
	if err != nil || len(key) == 0 {
		return nil, errs.New(errs.KindAuthentication, "batch account key for %s is not a valid base64 key", accountName)
	}
	u, err := url.Parse(accountURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, errs.New(errs.KindConfiguration, "batch account URL %q must be an absolute http(s) URL", accountURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	c := &Client{
		accountName: accountName,
		key:         key,
		baseURL:     u,
		transport:   &http.Client{Timeout: 60 * time.Second},
		now:         time.Now,
		requestID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	// Each step is submitted exactly once, so the pipeline never retries.
	c.pipeline = runtime.NewPipeline(moduleName, moduleVersion,
		runtime.PipelineOptions{PerRetry: []policy.Policy{&sharedKeyPolicy{c: c}}},
		&policy.ClientOptions{
			Retry:     policy.RetryOptions{MaxRetries: -1},
			Transport: c.transport,
		})
	return c, nil
}

// ServiceError is a non-success response from the Batch service.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("batch service returned %d", e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

type errorBody struct {
	Code    string `json:"code"`
	Message struct {
		Value string `json:"value"`
	} `json:"message"`
}

func kindForStatus(status int) errs.Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.KindAuthentication
	case http.StatusNotFound:
		return errs.KindNotFound
	case http.StatusConflict:
		return errs.KindConflict
	default:
		return errs.KindRemote
	}
}

// AddPool creates a pool.
func (c *Client) AddPool(ctx context.Context, pool Pool) error {
	return c.do(ctx, http.MethodPost, "/pools", pool, nil, http.StatusCreated)
}

// DeletePool starts deleting a pool.
func (c *Client) DeletePool(ctx context.Context, poolID string) error {
	return c.do(ctx, http.MethodDelete, "/pools/"+url.PathEscape(poolID), nil, nil, http.StatusAccepted)
}

// AddJob creates a job.
func (c *Client) AddJob(ctx context.Context, job Job) error {
	return c.do(ctx, http.MethodPost, "/jobs", job, nil, http.StatusCreated)
}

// DeleteJob starts deleting a job and its tasks.
func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(jobID), nil, nil, http.StatusAccepted)
}

// AddTask adds a task to a job.
func (c *Client) AddTask(ctx context.Context, jobID string, task Task) error {
	return c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/tasks", task, nil, http.StatusCreated)
}

// GetTask returns the current state of a task.
func (c *Client) GetTask(ctx context.Context, jobID, taskID string) (*Task, error) {
	var task Task
	path := "/jobs/" + url.PathEscape(jobID) + "/tasks/" + url.PathEscape(taskID)
	if err := c.do(ctx, http.MethodGet, path, nil, &task, http.StatusOK); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, want int) error {
	u := *c.baseURL
	u.Path += path
	u.RawQuery = url.Values{"api-version": {APIVersion}}.Encode()

	req, err := runtime.NewRequest(ctx, method, u.String())
	if err != nil {
		return fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}
	req.Raw().Header.Set("Accept", "application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s request: %w", method, path, err)
		}
		if err := req.SetBody(streaming.NopCloser(bytes.NewReader(payload)), contentType); err != nil {
			return fmt.Errorf("failed to set %s %s request body: %w", method, path, err)
		}
	}

	resp, err := c.pipeline.Do(req)
	if err != nil {
		return errs.Wrap(err, errs.KindRemote, "batch %s %s failed", method, path)
	}
	requestID := resp.Header.Get("client-request-id")
	if requestID == "" && resp.Request != nil {
		requestID = resp.Request.Header.Get("client-request-id")
	}
	body, err := runtime.Payload(resp)
	if err != nil {
		return errs.Wrap(err, errs.KindRemote, "failed to read batch %s %s response", method, path)
	}
	if !runtime.HasStatusCode(resp, want) {
		svcErr := &ServiceError{StatusCode: resp.StatusCode, RequestID: requestID}
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			svcErr.Code = eb.Code
			svcErr.Message = eb.Message.Value
		}
		return errs.Wrap(svcErr, kindForStatus(resp.StatusCode), "batch %s %s", method, path)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return errs.Wrap(err, errs.KindRemote, "failed to decode batch %s %s response", method, path)
		}
	}
	return nil
}

// sharedKeyPolicy stamps the date and request id on every attempt and signs
// the request with the account key.
type sharedKeyPolicy struct {
	c *Client
}

func (p *sharedKeyPolicy) Do(req *policy.Request) (*http.Response, error) {
	raw := req.Raw()
	requestID := p.c.requestID()
	raw.Header.Set("ocp-date", p.c.now().UTC().Format(http.TimeFormat))
	raw.Header.Set("client-request-id", requestID)
	raw.Header.Set("return-client-request-id", "true")
	raw.Header.Set("Authorization", p.c.authorization(raw, int(raw.ContentLength)))
	logging.WithField("request", requestID).Debugf("Batch %s %s", raw.Method, raw.URL.Path)
	return req.Next()
}

func (c *Client) authorization(req *http.Request, contentLength int) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(c.stringToSign(req, contentLength)))
	return fmt.Sprintf("SharedKey %s:%s", c.accountName, base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

func (c *Client) stringToSign(req *http.Request, contentLength int) string {
	length := ""
	if contentLength > 0 {
		length = strconv.Itoa(contentLength)
	}
	h := req.Header
	lines := []string{
		req.Method,
		h.Get("Content-Encoding"),
		h.Get("Content-Language"),
		length,
		h.Get("Content-MD5"),
		h.Get("Content-Type"),
		h.Get("Date"),
		h.Get("If-Modified-Since"),
		h.Get("If-Match"),
		h.Get("If-None-Match"),
		h.Get("If-Unmodified-Since"),
		h.Get("Range"),
	}
	return strings.Join(lines, "\n") + "\n" + canonicalHeaders(h) + c.canonicalResource(req.URL)
}

func canonicalHeaders(h http.Header) string {
	var names []string
	for name := range h {
		if lower := strings.ToLower(name); strings.HasPrefix(lower, "ocp-") {
			names = append(names, lower)
		}
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s:%s\n", name, h.Get(name))
	}
	return b.String()
}

func (c *Client) canonicalResource(u *url.URL) string {
	var b strings.Builder
	b.WriteString("/" + c.accountName + u.Path)
	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		fmt.Fprintf(&b, "\n%s:%s", strings.ToLower(k), strings.Join(values, ","))
	}
	return b.String()
}
