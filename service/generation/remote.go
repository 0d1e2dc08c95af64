package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/strokeworks/vectorflow/internal/log"
	"github.com/strokeworks/vectorflow/tracing"
)

// Task statuses reported by the remote worker backend.
const (
	remoteStatusSuccess = "SUCCESS"
	remoteStatusFailure = "FAILURE"
)

// Remote is a client for the off-process queue/worker backend. A single
// generation submits a task and polls it to a terminal status; a batch is
// settled server-side and returned in one response, mirroring the
// in-process settle-all contract.
type Remote struct {
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
}

var (
	_ Service = (*Remote)(nil)
	_ Batch   = (*Remote)(nil)
)

// RemoteOption customises the client.
type RemoteOption func(c *Remote)

// WithRemotePollInterval sets the delay between task status polls.
func WithRemotePollInterval(interval time.Duration) RemoteOption {
	return func(c *Remote) { c.pollInterval = interval }
}

// WithRemotePollTimeout bounds how long a single generation waits for a
// terminal task status.
func WithRemotePollTimeout(timeout time.Duration) RemoteOption {
	return func(c *Remote) { c.pollTimeout = timeout }
}

// WithRemoteHTTPClient replaces the underlying HTTP client.
func WithRemoteHTTPClient(client *http.Client) RemoteOption {
	return func(c *Remote) { c.http = client }
}

// NewRemote builds a client for the worker backend at baseURL.
func NewRemote(baseURL string, options ...RemoteOption) *Remote {
	c := &Remote{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         newHTTPClient(),
		pollInterval: 500 * time.Millisecond,
		pollTimeout:  180 * time.Second,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

type remoteTask struct {
	TaskID string                 `json:"taskId"`
	Status string                 `json:"status"`
	Result map[string]interface{} `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

type remoteBatchResponse struct {
	GroupID string       `json:"groupId"`
	Tasks   []remoteItem `json:"tasks"`
}

type remoteItem struct {
	Key    string                 `json:"key"`
	TaskID string                 `json:"taskId"`
	Status string                 `json:"status"`
	Result map[string]interface{} `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// Generate submits one task and polls until it reaches a terminal status.
func (c *Remote) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "generation.remote", "CLIENT")
	content, err := c.generate(ctx, prompt)
	tracing.EndSpan(span, err)
	return content, err
}

func (c *Remote) generate(ctx context.Context, prompt string) (string, error) {
	created, err := c.post(ctx, "/llm/tasks", map[string]interface{}{
		"run_id":   "adhoc",
		"phase_id": "adhoc",
		"prompt":   prompt,
	})
	if err != nil {
		return "", err
	}
	task := &remoteTask{}
	if err := json.Unmarshal(created, task); err != nil {
		return "", fmt.Errorf("%w: remote: decode create response: %v", ErrProvider, err)
	}
	if task.TaskID == "" {
		return "", fmt.Errorf("%w: remote: create returned no task id", ErrProvider)
	}
	return c.await(ctx, task.TaskID)
}

// await polls the task until SUCCESS/FAILURE or the poll timeout.
func (c *Remote) await(ctx context.Context, taskID string) (string, error) {
	deadline := time.Now().Add(c.pollTimeout)
	for {
		body, err := c.get(ctx, "/llm/tasks/"+taskID)
		if err != nil {
			return "", err
		}
		task := &remoteTask{}
		if err := json.Unmarshal(body, task); err != nil {
			return "", fmt.Errorf("%w: remote: decode task response: %v", ErrProvider, err)
		}
		switch task.Status {
		case remoteStatusSuccess:
			return taskContent(task.Result)
		case remoteStatusFailure:
			reason := task.Error
			if reason == "" {
				reason = "task failed"
			}
			return "", fmt.Errorf("%w: remote: %s", ErrProvider, reason)
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: remote: task %s not completed before timeout (%s)", ErrProvider, taskID, c.pollTimeout)
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: remote: %v", ErrProvider, ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

// GenerateBatch submits all items in one request; the backend settles every
// item and reports per-item success or failure. Only a transport-level
// failure fails the batch as a whole.
func (c *Remote) GenerateBatch(ctx context.Context, items []Item) ([]Result, error) {
	if len(items) == 0 {
		return nil, nil
	}
	ctx, span := tracing.StartSpan(ctx, "generation.remote.batch", "CLIENT")
	results, err := c.generateBatch(ctx, items)
	tracing.EndSpan(span, err)
	return results, err
}

func (c *Remote) generateBatch(ctx context.Context, items []Item) ([]Result, error) {
	body, err := c.post(ctx, "/llm/tasks/batch", map[string]interface{}{"items": items})
	if err != nil {
		return nil, err
	}
	response := &remoteBatchResponse{}
	if err := json.Unmarshal(body, response); err != nil {
		return nil, fmt.Errorf("%w: remote: decode batch response: %v", ErrProvider, err)
	}

	byKey := make(map[string]remoteItem, len(response.Tasks))
	for _, task := range response.Tasks {
		byKey[task.Key] = task
	}
	results := make([]Result, 0, len(items))
	for _, item := range items {
		task, ok := byKey[item.Key]
		if !ok {
			results = append(results, Result{Key: item.Key, Err: fmt.Errorf("%w: remote: no result for key %s", ErrProvider, item.Key)})
			continue
		}
		if task.Status != remoteStatusSuccess {
			reason := task.Error
			if reason == "" {
				reason = "task status " + task.Status
			}
			results = append(results, Result{Key: item.Key, Err: fmt.Errorf("%w: remote: %s", ErrProvider, reason)})
			continue
		}
		content, err := taskContent(task.Result)
		results = append(results, Result{Key: item.Key, Content: content, Err: err})
	}
	log.GetLogger().WithField("groupId", response.GroupID).
		WithField("items", len(items)).
		Debug("remote batch settled")
	return results, nil
}

// taskContent pulls the generated text out of a task result payload.
func taskContent(result map[string]interface{}) (string, error) {
	content, _ := result["content"].(string)
	if content == "" {
		return "", fmt.Errorf("%w: remote: empty content in task result", ErrProvider)
	}
	return content, nil
}

func (c *Remote) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal remote request")
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: remote: create request: %v", ErrProvider, err)
	}
	request.Header.Set("Content-Type", "application/json")
	return c.do(request)
}

func (c *Remote) get(ctx context.Context, path string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: remote: create request: %v", ErrProvider, err)
	}
	return c.do(request)
}

func (c *Remote) do(request *http.Request) ([]byte, error) {
	response, err := c.http.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: remote: %v", ErrProvider, err)
	}
	defer func() { _ = response.Body.Close() }()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: remote: read response: %v", ErrProvider, err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, fmt.Errorf("%w: remote: status %d: %s", ErrProvider, response.StatusCode, Preview(string(body)))
	}
	return body, nil
}
