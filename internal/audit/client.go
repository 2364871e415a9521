package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Receipt reports how an entry was recorded. RemoteID is set only when the
// remote store accepted the entry; FellBack marks entries that were recorded
// through the local structured log instead. The fallback path is not a
// failure of the operation that produced the entry.
type Receipt struct {
	RemoteID *int64
	FellBack bool
}

type Submitter interface {
	Submit(ctx context.Context, entry Entry) Receipt
}

// Client reports entries to the remote audit store, falling back to durable
// local logging when the store is unreachable. Submit never returns an
// error: audit logging must never fail the operation it describes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	fallback   zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, fallback zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		fallback:   fallback,
	}
}

func (c *Client) Submit(ctx context.Context, entry Entry) (receipt Receipt) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Msg("audit: panic during submit, entry may be lost")
			receipt = Receipt{FellBack: true}
		}
	}()

	id, err := c.submitRemote(ctx, entry)
	if err == nil {
		return Receipt{RemoteID: &id}
	}

	log.Warn().Err(err).Str("action", entry.Action).Str("entity_id", entry.EntityID).Msg("audit: remote store unavailable, recording locally")

	c.submitLocal(entry)
	return Receipt{FellBack: true}
}

func (c *Client) submitRemote(ctx context.Context, entry Entry) (int64, error) {
	body, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audit-logs", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("audit store returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	id, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("audit store returned non-numeric id %q: %w", string(data), err)
	}

	return id, nil
}

// submitLocal records the entry through the dedicated fallback logger. Any
// failure here is absorbed too.
func (c *Client) submitLocal(entry Entry) {
	c.fallback.Info().
		Str("action", entry.Action).
		Str("entity_name", entry.EntityName).
		Str("entity_id", entry.EntityID).
		Str("user_id", entry.UserID).
		Str("user_email", entry.UserEmail).
		Str("old_values", entry.OldValues).
		Str("new_values", entry.NewValues).
		Str("changes", entry.Changes).
		Time("timestamp", entry.Timestamp).
		Str("ip_address", entry.IPAddress).
		Str("user_agent", entry.UserAgent).
		Str("additional_info", entry.AdditionalInfo).
		Msg("audit entry recorded locally")
}
