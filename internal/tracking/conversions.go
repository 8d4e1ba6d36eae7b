package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"checkout-service/internal/models"
)

// ConversionsConfig holds the server-side conversions credentials
type ConversionsConfig struct {
	Endpoint      string
	Version       string
	PixelID       string
	AccessToken   string
	TestEventCode string
}

// ConversionsEvent is one entry of the events payload
type ConversionsEvent struct {
	EventName      string                 `json:"event_name"`
	EventTime      int64                  `json:"event_time"`
	EventID        string                 `json:"event_id"`
	EventSourceURL string                 `json:"event_source_url,omitempty"`
	ActionSource   string                 `json:"action_source"`
	UserData       map[string]interface{} `json:"user_data"`
	CustomData     map[string]interface{} `json:"custom_data"`
}

type conversionsRequest struct {
	Data          []ConversionsEvent `json:"data"`
	AccessToken   string             `json:"access_token"`
	TestEventCode string             `json:"test_event_code,omitempty"`
}

type conversionsResponse struct {
	EventsReceived int    `json:"events_received"`
	FbTraceID      string `json:"fbtrace_id"`
	Error          *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// passthrough user_data keys taken verbatim from event extras
var conversionsPassthrough = []string{"client_ip_address", "client_user_agent", "fbp", "fbc"}

// Conversions is the server-side conversions destination.
type Conversions struct {
	cfg        ConversionsConfig
	httpClient *http.Client
}

// NewConversions creates the server-side conversions destination
func NewConversions(cfg ConversionsConfig, httpClient *http.Client) *Conversions {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
	cfg.Version = strings.TrimPrefix(cfg.Version, "v")
	return &Conversions{cfg: cfg, httpClient: httpClient}
}

// Name implements Destination
func (c *Conversions) Name() string { return DestinationConversions }

// BuildConversionsEvent renders event in the conversions payload shape. User
// identity is hashed; nothing is sent in cleartext.
func BuildConversionsEvent(event *models.TrackingEvent) ConversionsEvent {
	userData := make(map[string]interface{})
	for k, v := range HashUser(event.User) {
		userData[k] = v
	}
	for _, key := range conversionsPassthrough {
		if v := event.ExtraString(key); v != "" {
			userData[key] = v
		}
	}

	_, name := PixelEvent(event)
	params := PixelParamsFor(event)

	customData := map[string]interface{}{
		"currency":     event.Currency,
		"value":        params.Value,
		"content_ids":  params.ContentIDs,
		"content_type": params.ContentType,
		"contents":     params.Contents,
		"num_items":    params.NumItems,
	}
	if orderID, ok := event.Extra["order_id"]; ok {
		customData["order_id"] = fmt.Sprint(orderID)
	}

	return ConversionsEvent{
		EventName:      name,
		EventTime:      event.OccurredAt,
		EventID:        event.EventID,
		EventSourceURL: event.SourceURL,
		ActionSource:   "website",
		UserData:       userData,
		CustomData:     customData,
	}
}

// Send implements Destination. Anything but a 2xx with events_received == 1
// is a failure.
func (c *Conversions) Send(ctx context.Context, event *models.TrackingEvent) error {
	if c.cfg.PixelID == "" || c.cfg.AccessToken == "" {
		return fmt.Errorf("conversions api credentials are not configured")
	}

	body, err := json.Marshal(conversionsRequest{
		Data:          []ConversionsEvent{BuildConversionsEvent(event)},
		AccessToken:   c.cfg.AccessToken,
		TestEventCode: c.cfg.TestEventCode,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v%s/%s/events", c.cfg.Endpoint, c.cfg.Version, c.cfg.PixelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("conversions api error (status %d): %s", resp.StatusCode, string(respBytes))
	}

	var out conversionsResponse
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out.Error != nil {
		return fmt.Errorf("conversions api error %d: %s", out.Error.Code, out.Error.Message)
	}
	if out.EventsReceived != 1 {
		return fmt.Errorf("conversions api received %d events, expected 1", out.EventsReceived)
	}
	return nil
}
