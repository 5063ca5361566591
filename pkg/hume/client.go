package hume

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"interview-worker/config"
)

const (
	jobStatusCompleted = "COMPLETED"
	jobStatusFailed    = "FAILED"
)

// Client submits recordings to the expression-measurement API and retrieves
// the raw per-frame predictions dump that the extraction engine scans. The
// dump format is an unversioned text serialization owned by the remote
// service; this client hands it over opaque.
type Client struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	maxPolls     int
	httpClient   *http.Client
}

func NewClient(cfg config.Hume) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.ApiKey,
		pollInterval: cfg.PollInterval,
		maxPolls:     cfg.MaxPolls,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
	}
}

type jobState struct {
	JobId  string `json:"job_id"`
	Status string `json:"status"`
}

// SubmitRecording uploads a recording for inference and returns the job id.
func (c *Client) SubmitRecording(ctx context.Context, recordingPath string) (string, error) {
	file, err := os.Open(recordingPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(recordingPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v0/batch/jobs", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Hume-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("hume: job submit returned status %d", resp.StatusCode)
	}

	var state jobState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return "", err
	}
	if state.JobId == "" {
		return "", fmt.Errorf("hume: job submit response carried no job id")
	}
	return state.JobId, nil
}

// AwaitJob polls a submitted job until it completes. A failed job or an
// exhausted poll budget is an error; transient status-check failures are
// absorbed by the retry around each poll.
func (c *Client) AwaitJob(ctx context.Context, jobID string) error {
	logger := zerolog.Ctx(ctx)

	for poll := 0; poll < c.maxPolls; poll++ {
		status, err := c.jobStatus(ctx, jobID)
		if err != nil {
			logger.Error().Err(err).Str("job_id", jobID).Msg("error checking job status")
		} else {
			logger.Info().Str("job_id", jobID).Str("status", status).Msg("job status")
			switch status {
			case jobStatusCompleted:
				return nil
			case jobStatusFailed:
				return fmt.Errorf("hume: job %s failed", jobID)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return fmt.Errorf("hume: job %s timed out after %d polls", jobID, c.maxPolls)
}

func (c *Client) jobStatus(ctx context.Context, jobID string) (string, error) {
	operation := func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v0/batch/jobs/"+jobID, nil)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		req.Header.Set("X-Hume-Api-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("hume: job status returned status %d", resp.StatusCode)
		}

		var state struct {
			State jobState `json:"state"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
			return "", err
		}
		return state.State.Status, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
}

// RawPredictions fetches the predictions dump for a completed job as an
// opaque string.
func (c *Client) RawPredictions(ctx context.Context, jobID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v0/batch/jobs/"+jobID+"/predictions", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Hume-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("hume: predictions fetch returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
