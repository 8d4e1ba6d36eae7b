package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"checkout-service/internal/models"
)

// Pixel call verbs
const (
	VerbTrack       = "track"
	VerbTrackCustom = "trackCustom"
)

var ErrPixelNotLoaded = errors.New("pixel runtime is not loaded")

// PixelContent is one entry of the pixel contents parameter
type PixelContent struct {
	ID        string  `json:"id"`
	Quantity  int     `json:"quantity"`
	ItemPrice float64 `json:"item_price"`
}

// PixelParams is the parameter object passed with each pixel call
type PixelParams struct {
	ContentIDs  []string       `json:"content_ids"`
	ContentType string         `json:"content_type"`
	Value       float64        `json:"value"`
	Currency    string         `json:"currency"`
	Contents    []PixelContent `json:"contents"`
	NumItems    int            `json:"num_items,omitempty"`
}

// PixelRuntime is the loaded pixel script: its event-tracking entry point and
// whether it is present at all.
type PixelRuntime interface {
	Loaded() bool
	Call(ctx context.Context, verb, eventName string, params PixelParams, eventID string) error
}

var pixelEventNames = map[models.EventKind]string{
	models.EventViewContent:   "ViewContent",
	models.EventAddToCart:     "AddToCart",
	models.EventBeginCheckout: "InitiateCheckout",
	models.EventPurchase:      "Purchase",
	models.EventSearch:        "Search",
	models.EventSignUp:        "CompleteRegistration",
	models.EventGenerateLead:  "Lead",
	models.EventPageView:      "PageView",
}

// PixelEvent translates the canonical kind into the pixel vocabulary. Kinds
// without a standard pixel event are sent as custom events.
func PixelEvent(event *models.TrackingEvent) (verb, name string) {
	if name, ok := pixelEventNames[event.Kind]; ok {
		return VerbTrack, name
	}
	if event.Kind == models.EventCustom {
		return VerbTrackCustom, event.Name
	}
	return VerbTrackCustom, string(event.Kind)
}

// PixelParamsFor builds the pixel parameter object for event
func PixelParamsFor(event *models.TrackingEvent) PixelParams {
	contents := make([]PixelContent, 0, len(event.Items))
	for _, item := range event.Items {
		contents = append(contents, PixelContent{
			ID:        item.ID,
			Quantity:  item.Quantity,
			ItemPrice: item.UnitPrice.InexactFloat64(),
		})
	}
	return PixelParams{
		ContentIDs:  event.ContentIDs(),
		ContentType: "product",
		Value:       event.Value.InexactFloat64(),
		Currency:    event.Currency,
		Contents:    contents,
		NumItems:    event.NumItems(),
	}
}

// Pixel is the client-side pixel destination.
type Pixel struct {
	runtime PixelRuntime
}

// NewPixel creates the pixel destination on top of runtime
func NewPixel(runtime PixelRuntime) *Pixel {
	return &Pixel{runtime: runtime}
}

// Name implements Destination
func (p *Pixel) Name() string { return DestinationPixel }

// Init loads the runtime when it has a startup step
func (p *Pixel) Init(ctx context.Context) error {
	if initializer, ok := p.runtime.(Initializer); ok {
		return initializer.Init(ctx)
	}
	return nil
}

// Send implements Destination. Without a loaded runtime nothing is sent.
func (p *Pixel) Send(ctx context.Context, event *models.TrackingEvent) error {
	if p.runtime == nil || !p.runtime.Loaded() {
		return ErrPixelNotLoaded
	}
	verb, name := PixelEvent(event)
	return p.runtime.Call(ctx, verb, name, PixelParamsFor(event), event.EventID)
}

// ImagePixel is a PixelRuntime speaking the pixel's image-request transport
// (GET {endpoint}/tr). It is loaded by Init.
type ImagePixel struct {
	pixelID    string
	endpoint   string
	httpClient *http.Client
	loaded     atomic.Bool
}

// NewImagePixel creates an image pixel runtime
func NewImagePixel(pixelID, endpoint string, httpClient *http.Client) *ImagePixel {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ImagePixel{
		pixelID:    pixelID,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		httpClient: httpClient,
	}
}

// Init registers the pixel id, which makes the runtime present.
func (p *ImagePixel) Init(_ context.Context) error {
	if p.pixelID == "" {
		return fmt.Errorf("pixel id is not configured")
	}
	p.loaded.Store(true)
	return nil
}

// Loaded implements PixelRuntime
func (p *ImagePixel) Loaded() bool {
	return p.loaded.Load()
}

// Call implements PixelRuntime
func (p *ImagePixel) Call(ctx context.Context, verb, eventName string, params PixelParams, eventID string) error {
	contentIDs, err := json.Marshal(params.ContentIDs)
	if err != nil {
		return fmt.Errorf("marshal content ids: %w", err)
	}
	contents, err := json.Marshal(params.Contents)
	if err != nil {
		return fmt.Errorf("marshal contents: %w", err)
	}

	q := url.Values{}
	q.Set("id", p.pixelID)
	q.Set("ev", eventName)
	q.Set("eid", eventID)
	q.Set("noscript", "1")
	if verb == VerbTrackCustom {
		q.Set("custom", "1")
	}
	q.Set("cd[content_ids]", string(contentIDs))
	q.Set("cd[content_type]", params.ContentType)
	q.Set("cd[contents]", string(contents))
	q.Set("cd[value]", strconv.FormatFloat(params.Value, 'f', -1, 64))
	q.Set("cd[currency]", params.Currency)
	if params.NumItems > 0 {
		q.Set("cd[num_items]", strconv.Itoa(params.NumItems))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/tr?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pixel endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
