package tracking

import (
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id string, price string, qty int) models.TrackingProduct {
	return models.TrackingProduct{
		ID:        id,
		Name:      "Product " + id,
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  qty,
	}
}

func TestComposeSumsLineTotals(t *testing.T) {
	c := NewComposer("BDT")

	event, err := c.Compose(models.EventAddToCart, []models.TrackingProduct{
		product("p1", "10.25", 2),
		product("p2", "5.00", 1),
	}, nil, nil)
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("25.50").Equal(event.Value))
	assert.Equal(t, "BDT", event.Currency)
	assert.Equal(t, []string{"p1", "p2"}, event.ContentIDs())
	assert.Equal(t, 3, event.NumItems())
	_, err = uuid.Parse(event.EventID)
	assert.NoError(t, err)
}

func TestComposeCurrencyPrecedence(t *testing.T) {
	c := NewComposer("BDT")
	p := product("p1", "1", 1)
	p.Currency = "USD"

	event, err := c.Compose(models.EventViewContent, []models.TrackingProduct{p}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "USD", event.Currency)

	event, err = c.Compose(models.EventViewContent, []models.TrackingProduct{p}, nil, &Params{Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "EUR", event.Currency)
	assert.Equal(t, "EUR", event.Items[0].Currency)
}

func TestComposeOverrides(t *testing.T) {
	c := NewComposer("BDT")
	total := decimal.NewFromInt(1150)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	event, err := c.Compose(models.EventPurchase, []models.TrackingProduct{product("p1", "1000", 1)}, nil, &Params{
		EventID:    "evt-1",
		Value:      &total,
		OccurredAt: at,
		Extra:      map[string]interface{}{"order_id": "7"},
	})
	require.NoError(t, err)

	assert.Equal(t, "evt-1", event.EventID)
	assert.True(t, total.Equal(event.Value))
	assert.Equal(t, at.Unix(), event.OccurredAt)
	assert.Equal(t, "7", event.ExtraString("order_id"))
}

func TestComposeRejectsInvalidInput(t *testing.T) {
	c := NewComposer("BDT")

	_, err := c.Compose("Bogus", nil, nil, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = c.Compose(models.EventCustom, nil, nil, nil)
	assert.ErrorIs(t, err, ErrMissingCustomName)

	_, err = c.Compose(models.EventAddToCart, []models.TrackingProduct{product("p1", "1", 0)}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidProduct)

	_, err = c.Compose(models.EventAddToCart, []models.TrackingProduct{product("p1", "-1", 1)}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidProduct)

	_, err = c.Compose(models.EventAddToCart, []models.TrackingProduct{product("", "1", 1)}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidProduct)
}

func TestComposeCopiesUser(t *testing.T) {
	c := NewComposer("BDT")
	user := &models.TrackingUser{Email: "a@b.c"}

	event, err := c.Compose(models.EventSignUp, nil, user, nil)
	require.NoError(t, err)

	user.Email = "changed@b.c"
	assert.Equal(t, "a@b.c", event.User.Email)
	assert.True(t, event.Value.IsZero())
}

func TestOrderEventIDIsStable(t *testing.T) {
	a := OrderEventID(models.EventPurchase, 7)
	b := OrderEventID(models.EventPurchase, 7)
	c := OrderEventID(models.EventPurchase, 8)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
