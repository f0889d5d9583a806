// Package webhook implements the Webhook Signer (spec.md §4.2): it posts
// signed match results to the external matchmaking API, attaching a fresh
// random idempotency key to every Submit call. Deduplication is left to the
// receiver.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"usion-arena/server/internal/telemetry"
)

// Config carries the credentials and target for signed webhook delivery.
type Config struct {
	APIURL       string
	ServiceID    string
	SigningKeyID string
	Secret       string
	Timeout      time.Duration
}

// ResultPayload is the body submitted to POST /games/direct/results, per
// spec.md §4.2's submit input object.
type ResultPayload struct {
	RoomID       string         `json:"room_id"`
	SessionID    string         `json:"session_id"`
	WinnerIDs    []string       `json:"winner_ids"`
	Participants []string       `json:"participants"`
	Reason       string         `json:"reason"`
	FinalStats   map[string]any `json:"final_stats"`
	FinalTick    uint64         `json:"final_tick"`
	EndedAt      string         `json:"ended_at"`
}

// WebhookError carries a non-2xx response or transport failure from a
// Submit call, per spec.md §4.2.
type WebhookError struct {
	RoomID     string
	StatusCode int
	Body       string
	Err        error
}

func (e *WebhookError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook: delivering result for room %s: %v", e.RoomID, e.Err)
	}
	return fmt.Sprintf("webhook: unexpected status %d for room %s: %s", e.StatusCode, e.RoomID, e.Body)
}

func (e *WebhookError) Unwrap() error { return e.Err }

// Signer signs and delivers match results.
type Signer struct {
	cfg    Config
	client *http.Client
	logger telemetry.Logger
	clock  func() time.Time
}

// NewSigner builds a Signer from cfg. A zero Timeout defaults to 10s.
func NewSigner(cfg Config, logger telemetry.Logger) *Signer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	return &Signer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		clock:  time.Now,
	}
}

const resultsPath = "/games/direct/results"

// Submit signs and POSTs payload, returning the decoded server response
// body on a 2xx status. Callers own retry policy per spec.md §7's
// delivery-failure handling; Submit itself retries nothing.
func (s *Signer) Submit(ctx context.Context, payload ResultPayload) (map[string]any, error) {
	if payload.EndedAt == "" {
		payload.EndedAt = s.clock().UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("webhook: marshal payload: %w", err)
	}

	url := s.cfg.APIURL + resultsPath
	ts := s.clock().Unix()
	sig := sign(s.cfg.Secret, ts, http.MethodPost, resultsPath, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Usion-Service-Id", s.cfg.ServiceID)
	req.Header.Set("X-Usion-Key-Id", s.cfg.SigningKeyID)
	req.Header.Set("X-Usion-Signature", sig)
	req.Header.Set("X-Usion-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Idempotency-Key", uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &WebhookError{RoomID: payload.RoomID, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 300 {
		const preview = 4096
		truncated := respBody
		if len(truncated) > preview {
			truncated = truncated[:preview]
		}
		return nil, &WebhookError{RoomID: payload.RoomID, StatusCode: resp.StatusCode, Body: string(truncated)}
	}

	s.logger.Printf("webhook: delivered result room=%s status=%d", payload.RoomID, resp.StatusCode)

	if len(respBody) == 0 {
		return map[string]any{}, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("webhook: decode response for room %s: %w", payload.RoomID, err)
	}
	return decoded, nil
}

// sign produces the canonical HMAC-SHA256 signature spec.md §4.2 defines:
// hex(hmac(secret, "<unix>\n<METHOD>\n<path>\n<hex sha256 body>")).
func sign(secret string, ts int64, method, path string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	canonical := fmt.Sprintf("%d\n%s\n%s\n%s", ts, method, path, hex.EncodeToString(bodyHash[:]))

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}
