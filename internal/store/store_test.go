package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStoreWithDB(sqlx.NewDb(db, "postgres")), mock
}

var orderRowColumns = []string{
	"id", "user_id", "cart_id", "subtotal", "delivery_charge", "total_amount", "currency",
	"status", "payment_status", "payment_method", "customer_name", "customer_phone", "customer_email",
	"shipping_address", "city", "state", "zip_code", "country", "idempotency_key", "created_at", "updated_at",
}

func TestCreateOrder(t *testing.T) {
	s, mock := setupMockStore(t)
	now := time.Now()

	order := &models.Order{
		CartID:         "cart-1",
		Subtotal:       decimal.NewFromInt(1000),
		DeliveryCharge: decimal.NewFromInt(150),
		TotalAmount:    decimal.NewFromInt(1150),
		Currency:       "BDT",
		Status:         models.OrderStatusPending,
		PaymentStatus:  models.PaymentStatusUnpaid,
		PaymentMethod:  models.ProviderCashOnDelivery,
		CustomerName:   "Rahim",
		IdempotencyKey: "key-1",
	}
	items := []models.OrderItem{
		{ProductID: "p1", Name: "Shirt", UnitPrice: decimal.NewFromInt(500), Quantity: 2},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(7, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO order_items")).
		WithArgs(int64(7), "p1", "Shirt", "", "", "", sqlmock.AnyArg(), 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(70))
	mock.ExpectCommit()

	err := s.CreateOrder(context.Background(), order, items)
	require.NoError(t, err)
	assert.Equal(t, int64(7), order.ID)
	assert.Equal(t, int64(7), items[0].OrderID)
	assert.Equal(t, int64(70), items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderDuplicateKey(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := s.CreateOrder(context.Background(), &models.Order{IdempotencyKey: "key-1"}, nil)
	assert.ErrorIs(t, err, ErrDuplicateIdempotencyKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderItemFailureRollsBack(t *testing.T) {
	s, mock := setupMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(7, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO order_items")).
		WillReturnError(errors.New("check constraint"))
	mock.ExpectRollback()

	err := s.CreateOrder(context.Background(), &models.Order{}, []models.OrderItem{{ProductID: "p1", Quantity: 1}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderByID(t *testing.T) {
	s, mock := setupMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows(orderRowColumns).AddRow(
		7, nil, "cart-1", "1000.00", "150.00", "1150.00", "BDT",
		"pending", "unpaid", "cod", "Rahim", "01712345678", "",
		"House 1", "Dhaka", "", "", "BD", "key-1", now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	order, err := s.GetOrderByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), order.ID)
	assert.Nil(t, order.UserID)
	assert.True(t, decimal.NewFromInt(1150).Equal(order.TotalAmount))
	assert.Equal(t, models.PaymentStatusUnpaid, order.PaymentStatus)
}

func TestGetOrderByIDNotFound(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	order, err := s.GetOrderByID(context.Background(), 9)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetOrderByIdempotencyKeyMissing(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE idempotency_key = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(orderRowColumns))

	order, err := s.GetOrderByIdempotencyKey(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, order)
}

func TestFinalizeOrder(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1, payment_status = $2")).
		WithArgs(models.OrderStatusProcessing, models.PaymentStatusPaid, int64(7), models.OrderStatusPending, models.PaymentStatusUnpaid).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1, payment_status = $2")).
		WithArgs(models.OrderStatusProcessing, models.PaymentStatusPaid, int64(7), models.OrderStatusPending, models.PaymentStatusUnpaid).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.FinalizeOrder(context.Background(), 7, models.OrderStatusProcessing, models.PaymentStatusPaid)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.FinalizeOrder(context.Background(), 7, models.OrderStatusProcessing, models.PaymentStatusPaid)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListGatewaySettings(t *testing.T) {
	s, mock := setupMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"provider_id", "enabled", "sandbox_mode", "base_url", "credentials", "updated_at"}).
		AddRow("bkash", true, true, "", []byte(`{"app_key":"k","app_secret":"s","username":"u","password":"p"}`), now).
		AddRow("sslcommerz", false, true, "", []byte(`{}`), now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_gateway_settings")).WillReturnRows(rows)

	settings, err := s.ListGatewaySettings(context.Background())
	require.NoError(t, err)
	require.Len(t, settings, 2)
	assert.Equal(t, "bkash", settings[0].ProviderID)
	assert.True(t, settings[0].Enabled)
	assert.Equal(t, "k", settings[0].Credentials["app_key"])
	assert.False(t, settings[1].Enabled)
}

func TestCreatePayment(t *testing.T) {
	s, mock := setupMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs(int64(7), "bkash", models.PaymentAttemptInitiated, "PAY1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(3, now, now))

	p := &models.Payment{OrderID: 7, Provider: "bkash", Status: models.PaymentAttemptInitiated, ProviderTxID: "PAY1", Amount: decimal.NewFromInt(1150)}
	require.NoError(t, s.CreatePayment(context.Background(), p))
	assert.Equal(t, int64(3), p.ID)
}

func TestProcessedEvents(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("callback:7:success").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO processed_events")).
		WithArgs("callback:7:success", models.EventTypePaymentCallback).
		WillReturnResult(sqlmock.NewResult(0, 1))

	processed, err := s.IsEventProcessed(context.Background(), "callback:7:success")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, s.MarkEventProcessed(context.Background(), "callback:7:success", models.EventTypePaymentCallback))
	assert.NoError(t, mock.ExpectationsWereMet())
}
