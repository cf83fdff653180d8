// File: internal/infra/rest/job_client.go
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chat-image-sync/internal/config"
	"chat-image-sync/internal/domain/model"
	"chat-image-sync/internal/domain/ports/adapter"
)

var _ adapter.JobServiceAdapter = (*JobClient)(nil)

// JobClient implements adapter.JobServiceAdapter against the image backend's
// REST surface: GET /job/{id}/status and POST /job/{id}/cancel.
type JobClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewJobClient(cfg config.APIConfig) (*JobClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("api base url empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &JobClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *JobClient) endpoint(path string) string { return c.baseURL + path }

func (c *JobClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s %s: backend status %d", method, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Status queries the job-status endpoint. A body with status "unknown" (or a
// 404) maps to Known=false; callers leave local state untouched in that case.
func (c *JobClient) Status(ctx context.Context, jobID string) (adapter.JobStatusResult, error) {
	if jobID == "" {
		return adapter.JobStatusResult{}, errors.New("status: empty job id")
	}
	var out struct {
		JobID          string `json:"job_id"`
		Status         string `json:"status"`
		Progress       int    `json:"progress"`
		QueuePosition  int    `json:"queue_position"`
		ConversationID string `json:"conversation_id"`
		ImageURL       string `json:"image_url"`
		Error          string `json:"error"`
	}
	err := c.do(ctx, http.MethodGet, "/job/"+url.PathEscape(jobID)+"/status", &out)
	if err != nil {
		return adapter.JobStatusResult{}, fmt.Errorf("job status: %w", err)
	}

	res := adapter.JobStatusResult{
		JobID:          jobID,
		Progress:       out.Progress,
		QueuePosition:  out.QueuePosition,
		ConversationID: out.ConversationID,
		ImageURL:       out.ImageURL,
		Error:          out.Error,
	}
	switch s := model.JobStatus(out.Status); s {
	case model.JobStatusQueued, model.JobStatusProcessing,
		model.JobStatusComplete, model.JobStatusError:
		res.Known = true
		res.Status = s
	default:
		// "unknown" or anything unrecognized: the backend has no usable record.
		res.Known = false
	}
	return res, nil
}

// Cancel posts to the cancel endpoint and relays the backend verdict.
func (c *JobClient) Cancel(ctx context.Context, jobID string) (adapter.CancelResult, error) {
	if jobID == "" {
		return adapter.CancelResult{}, errors.New("cancel: empty job id")
	}
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/job/"+url.PathEscape(jobID)+"/cancel", &out)
	if err != nil {
		return adapter.CancelResult{}, fmt.Errorf("job cancel: %w", err)
	}
	return adapter.CancelResult{Success: out.Success, Message: out.Message}, nil
}
