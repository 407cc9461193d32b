package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mossy-p/proctor-signaling/internal/models"
)

// DefaultTimeout bounds one offer round-trip. Signaling is worthless once
// the caller has given up, so there are no retries.
const DefaultTimeout = 10 * time.Second

// maxAnswerSize caps how much of a video server response is read.
const maxAnswerSize = 1 << 20

var ErrInvalidAnswer = errors.New("relay: video server answer is not valid JSON")

// StatusError is returned when the video server answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("relay: video server returned %d: %s", e.Code, e.Body)
}

// Client posts offers to {baseURL}/{roomID}. It holds no per-call state.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Relay forwards offer on behalf of userID and returns the answer body
// unchanged.
func (c *Client) Relay(ctx context.Context, roomID, userID string, role models.Role, offer json.RawMessage) (json.RawMessage, error) {
	body, err := json.Marshal(models.RelayRequest{
		Type:    "offer",
		Payload: offer,
		UserID:  userID,
		Role:    role,
	})
	if err != nil {
		return nil, fmt.Errorf("relay: encode offer: %w", err)
	}

	endpoint := c.baseURL + "/" + url.PathEscape(roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("relay: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay: post offer: %w", err)
	}
	defer resp.Body.Close()

	answer, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerSize))
	if err != nil {
		return nil, fmt.Errorf("relay: read answer: %w", err)
	}

	log.Debug().Str("module", "relay").Str("room", roomID).Str("user", userID).
		Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("offer relayed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(answer))}
	}
	if !json.Valid(answer) {
		return nil, ErrInvalidAnswer
	}
	return answer, nil
}
