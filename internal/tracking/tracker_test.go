package tracking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerForcesGateForRevenueEvents(t *testing.T) {
	layer, pixel, capi := newFakes()
	dispatcher := NewDispatcher(time.Second, layer, pixel, capi)
	gate := NewGate(time.Minute, dispatcher.Init)
	tracker := NewTracker(NewComposer("BDT"), dispatcher, gate)

	_, results, err := tracker.Track(context.Background(), models.EventSearch, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Results{DestinationDataLayer: true}, results)
	assert.Equal(t, GateIdle, gate.State())

	_, results, err = tracker.Track(context.Background(), models.EventAddToCart, []models.TrackingProduct{product("p1", "10", 1)}, nil, nil)
	require.NoError(t, err)
	assert.True(t, gate.IsReady())
	assert.Len(t, results, 3)
	assert.Equal(t, 1, pixel.inits())
}

func TestTrackerReturnsComposeErrors(t *testing.T) {
	layer, _, _ := newFakes()
	tracker := NewTracker(NewComposer("BDT"), NewDispatcher(time.Second, layer), nil)

	_, _, err := tracker.Track(context.Background(), models.EventCustom, nil, nil, nil)

	assert.ErrorIs(t, err, ErrMissingCustomName)
	assert.Empty(t, layer.received())
}

func TestPurchaseSharesEventIDAcrossDestinations(t *testing.T) {
	var (
		mu        sync.Mutex
		pixelEID  string
		capiEvent ConversionsEvent
	)

	pixelSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		pixelEID = r.URL.Query().Get("eid")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer pixelSrv.Close()

	capiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body conversionsRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		if len(body.Data) == 1 {
			capiEvent = body.Data[0]
		}
		mu.Unlock()
		_, _ = w.Write([]byte(`{"events_received":1,"fbtrace_id":"abc"}`))
	}))
	defer capiSrv.Close()

	queue := newMemoryQueue()
	dispatcher := NewDispatcher(time.Second,
		NewDataLayer(queue),
		NewPixel(NewImagePixel("123", pixelSrv.URL, pixelSrv.Client())),
		NewConversions(ConversionsConfig{
			Endpoint:    capiSrv.URL,
			Version:     "v18.0",
			PixelID:     "123",
			AccessToken: "token",
		}, capiSrv.Client()),
	)
	tracker := NewTracker(NewComposer("BDT"), dispatcher, NewGate(time.Minute, dispatcher.Init))

	total := decimal.NewFromInt(1150)
	event, results, err := tracker.Track(context.Background(), models.EventPurchase,
		[]models.TrackingProduct{product("p1", "1000", 1)},
		&models.TrackingUser{Email: "buyer@example.com"},
		&Params{EventID: OrderEventID(models.EventPurchase, 9), Value: &total, Extra: map[string]interface{}{"order_id": "9"}},
	)
	require.NoError(t, err)
	assert.Equal(t, Results{DestinationDataLayer: true, DestinationPixel: true, DestinationConversions: true}, results)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, event.EventID, pixelEID)
	assert.Equal(t, event.EventID, capiEvent.EventID)
	assert.Equal(t, "Purchase", capiEvent.EventName)
	assert.Equal(t, 1150.0, capiEvent.CustomData["value"])

	records := queue.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "gtm.js", records[0]["event"])
	assert.Equal(t, "purchase", records[1]["event"])
	assert.Equal(t, event.EventID, records[1]["event_id"])
}
