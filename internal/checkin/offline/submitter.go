package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shepherd/internal/checkin/attendance"
	"shepherd/internal/checkin/models"
	dErrors "shepherd/pkg/domain-errors"
)

// Submitter sends one queued check-in under its idempotency key, dated by
// when the kiosk captured it.
type Submitter interface {
	Submit(ctx context.Context, entry Entry) (*models.BatchResult, error)
}

type Recorder interface {
	Record(ctx context.Context, req attendance.RecordRequest) (*models.BatchResult, error)
}

// RecorderSubmitter replays straight into an in-process Recorder.
type RecorderSubmitter struct {
	recorder Recorder
}

func NewRecorderSubmitter(recorder Recorder) *RecorderSubmitter {
	return &RecorderSubmitter{recorder: recorder}
}

func (s *RecorderSubmitter) Submit(ctx context.Context, entry Entry) (*models.BatchResult, error) {
	return s.recorder.Record(ctx, attendance.RecordRequest{
		IdempotencyKey: entry.Key,
		Items:          entry.Items,
		CapturedAt:     entry.EnqueuedAt,
	})
}

const (
	idempotencyHeader    = "Idempotency-Key"
	defaultSubmitTimeout = 30 * time.Second
	maxResponseBytes     = 1 << 20
)

// HTTPSubmitter posts queued check-ins to a server as the kiosk device.
type HTTPSubmitter struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewHTTPSubmitter(baseURL, deviceToken string, client *http.Client) *HTTPSubmitter {
	if client == nil {
		client = &http.Client{Timeout: defaultSubmitTimeout}
	}
	return &HTTPSubmitter{
		endpoint: strings.TrimRight(baseURL, "/") + "/checkin/attendance",
		token:    deviceToken,
		client:   client,
	}
}

type submitBody struct {
	Items      []models.RecordItem `json:"items"`
	CapturedAt *time.Time          `json:"captured_at,omitempty"`
}

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func (s *HTTPSubmitter) Submit(ctx context.Context, entry Entry) (*models.BatchResult, error) {
	body := submitBody{Items: entry.Items}
	if !entry.EnqueuedAt.IsZero() {
		capturedAt := entry.EnqueuedAt.UTC()
		body.CapturedAt = &capturedAt
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode submission")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set(idempotencyHeader, entry.Key)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "server unreachable")
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		var e errorBody
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			msg := e.Description
			if msg == "" {
				msg = e.Error
			}
			return nil, dErrors.New(dErrors.Code(e.Error), msg)
		}
		return nil, dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	var result models.BatchResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode check-in result")
	}
	return &result, nil
}
