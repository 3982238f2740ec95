package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/technosupport/vms-coordinator/internal/statestore"
)

// HTTPClient implements StreamWorker, RecorderWorker, and AiWorker over
// plain HTTP+JSON against a worker node's reference HTTP surface (see
// cmd/streamworker, cmd/recorderworker, cmd/aiworker). This is the
// transport binding decided in SPEC_FULL.md §6.2 in place of gRPC: there is
// no generated protobuf stub for a media-plane service anywhere in this
// repo's ancestry, and the worker contract needs nothing beyond bounded
// request/reply.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("worker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("worker returned status %d for %s %s", resp.StatusCode, method, path)
	}
	return nil
}

// startResult shape from cmd/recorderworker and cmd/aiworker's start
// endpoints (spec.md §6.2: RecorderWorker/AiWorker start replies carry
// their own accepted/message, distinct from a transport-level failure).
type startResultPayload struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

func (c *HTTPClient) doStart(ctx context.Context, path string, body any) (bool, string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return false, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return false, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, "", fmt.Errorf("worker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return false, "", fmt.Errorf("worker returned status %d for POST %s", resp.StatusCode, path)
	}

	var result startResultPayload
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, "", fmt.Errorf("worker returned malformed start response: %w", err)
	}
	return result.Accepted, result.Message, nil
}

type startStreamPayload struct {
	StreamID  string `json:"stream_id"`
	URI       string `json:"uri"`
	Codec     string `json:"codec"`
	Container string `json:"container"`
}

func (c *HTTPClient) StartStream(ctx context.Context, streamID, uri, codec, container string) error {
	return c.do(ctx, http.MethodPost, "/streams", startStreamPayload{
		StreamID: streamID, URI: uri, Codec: codec, Container: container,
	})
}

func (c *HTTPClient) StopStream(ctx context.Context, streamID string) error {
	return c.do(ctx, http.MethodDelete, "/streams/"+streamID, nil)
}

type startRecordingPayload struct {
	RecordingID string           `json:"recording_id"`
	StreamID    string           `json:"stream_id"`
	Format      string           `json:"format"`
	Output      statestore.Value `json:"output,omitempty"`
}

func (c *HTTPClient) StartRecording(ctx context.Context, recordingID, streamID, format string, output statestore.Value) (bool, string, error) {
	return c.doStart(ctx, "/recordings", startRecordingPayload{
		RecordingID: recordingID, StreamID: streamID, Format: format, Output: output,
	})
}

func (c *HTTPClient) StopRecording(ctx context.Context, recordingID string) error {
	return c.do(ctx, http.MethodDelete, "/recordings/"+recordingID, nil)
}

type startAiTaskPayload struct {
	TaskID      string           `json:"task_id"`
	StreamID    string           `json:"stream_id"`
	ModelConfig statestore.Value `json:"model_config,omitempty"`
}

func (c *HTTPClient) StartAiTask(ctx context.Context, taskID, streamID string, modelConfig statestore.Value) (bool, string, error) {
	return c.doStart(ctx, "/ai-tasks", startAiTaskPayload{
		TaskID: taskID, StreamID: streamID, ModelConfig: modelConfig,
	})
}

func (c *HTTPClient) StopAiTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/ai-tasks/"+taskID, nil)
}

func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil)
}
