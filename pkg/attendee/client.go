package attendee

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"interview-worker/analytics"
	"interview-worker/config"
)

// Bot lifecycle states reported by the hosting API.
const (
	StateJoinedRecording = "joined_recording"
	StateEnded           = "ended"

	artifactStateComplete = "complete"
	artifactStateFailed   = "failed"
)

var ErrBotTimedOut = fmt.Errorf("attendee: bot did not finish within the poll budget")

// Client talks to the bot-hosting API that joins, records and transcribes
// meetings on our behalf. The API only exposes a poll endpoint for bot
// state, so completion detection is polling by necessity; that shape stays
// contained here.
type Client struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	pollBudget   time.Duration
	httpClient   *http.Client
}

func NewClient(cfg config.Attendee) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.ApiKey,
		pollInterval: cfg.PollInterval,
		pollBudget:   cfg.PollBudget,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
}

type BotStatus struct {
	Id                 string `json:"id"`
	State              string `json:"state"`
	RecordingState     string `json:"recording_state"`
	TranscriptionState string `json:"transcription_state"`
}

// transcriptUtterance is the wire form of one transcript entry.
type transcriptUtterance struct {
	Speaker       string `json:"speaker"`
	TimestampMS   int64  `json:"timestamp_ms"`
	DurationMS    int64  `json:"duration_ms"`
	Transcription struct {
		Transcript string `json:"transcript"`
	} `json:"transcription"`
}

// CreateBot asks the hosting API to send a bot into the meeting and returns
// the bot id.
func (c *Client) CreateBot(ctx context.Context, meetingURL string) (string, error) {
	body := fmt.Sprintf(`{"meeting_url":%q}`, meetingURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bots", strings.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("attendee: create bot returned status %d", resp.StatusCode)
	}

	var status BotStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", err
	}
	if status.Id == "" {
		return "", fmt.Errorf("attendee: create bot response carried no id")
	}
	return status.Id, nil
}

// GetStatus fetches the current bot state, retrying transient failures with
// exponential backoff.
func (c *Client) GetStatus(ctx context.Context, botID string) (*BotStatus, error) {
	operation := func() (*BotStatus, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/bots/"+botID, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Token "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("attendee: bot status returned status %d", resp.StatusCode)
		}

		var status BotStatus
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return nil, err
		}
		return &status, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
}

// AwaitCompletion polls the bot until the meeting has ended and the
// recording and transcription have settled. The poll budget only starts
// counting once the bot is recording, mirroring how long meetings are
// expected to run far past the initial join.
func (c *Client) AwaitCompletion(ctx context.Context, botID string) (*BotStatus, error) {
	logger := zerolog.Ctx(ctx)
	maxPolls := int(c.pollBudget / c.pollInterval)
	if maxPolls < 1 {
		maxPolls = 1
	}

	recordingStarted := false
	pollCount := 0
	for {
		status, err := c.GetStatus(ctx, botID)
		if err != nil {
			return nil, err
		}

		logger.Info().
			Str("bot_id", botID).
			Str("state", status.State).
			Str("recording_state", status.RecordingState).
			Str("transcription_state", status.TranscriptionState).
			Msg("bot status")

		if status.State == StateJoinedRecording && !recordingStarted {
			recordingStarted = true
			pollCount = 0
		}

		if status.State == StateEnded {
			if status.RecordingState == artifactStateComplete &&
				(status.TranscriptionState == artifactStateComplete || status.TranscriptionState == artifactStateFailed) {
				return status, nil
			}
		}

		if recordingStarted {
			pollCount++
			if pollCount >= maxPolls {
				logger.Warn().Str("bot_id", botID).Msg("poll budget exceeded, stopping polling")
				return status, ErrBotTimedOut
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// DownloadRecording streams the bot's recording to destPath.
func (c *Client) DownloadRecording(ctx context.Context, botID, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/bots/"+botID+"/recording", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("attendee: recording download returned status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

// GetTranscript fetches the bot's transcript utterances.
func (c *Client) GetTranscript(ctx context.Context, botID string) ([]analytics.TranscriptEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/bots/"+botID+"/transcript", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attendee: transcript download returned status %d", resp.StatusCode)
	}

	var utterances []transcriptUtterance
	if err := json.NewDecoder(resp.Body).Decode(&utterances); err != nil {
		return nil, err
	}

	entries := make([]analytics.TranscriptEntry, 0, len(utterances))
	for _, u := range utterances {
		entries = append(entries, analytics.TranscriptEntry{
			Speaker:     u.Speaker,
			TimestampMS: u.TimestampMS,
			DurationMS:  u.DurationMS,
			Text:        u.Transcription.Transcript,
		})
	}
	return entries, nil
}
