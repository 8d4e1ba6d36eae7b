package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-service/internal/models"
)

const orderColumns = `id, user_id, cart_id, subtotal, delivery_charge, total_amount, currency,
	status, payment_status, payment_method, customer_name, customer_phone, customer_email,
	shipping_address, city, state, zip_code, country, idempotency_key, created_at, updated_at`

// CreateOrder inserts the order and its items in one transaction
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (user_id, cart_id, subtotal, delivery_charge, total_amount, currency,
			status, payment_status, payment_method, customer_name, customer_phone, customer_email,
			shipping_address, city, state, zip_code, country, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.UserID, order.CartID, order.Subtotal, order.DeliveryCharge, order.TotalAmount, order.Currency,
		order.Status, order.PaymentStatus, order.PaymentMethod, order.CustomerName, order.CustomerPhone,
		order.CustomerEmail, order.ShippingAddress, order.City, order.State, order.ZipCode, order.Country,
		order.IdempotencyKey,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, name, category, brand, variant, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	for i := range items {
		items[i].OrderID = order.ID
		err := tx.QueryRowxContext(ctx, itemQuery,
			items[i].OrderID, items[i].ProductID, items[i].Name, items[i].Category, items[i].Brand,
			items[i].Variant, items[i].UnitPrice, items[i].Quantity,
		).Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item %s: %w", items[i].ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key. A missing
// order is (nil, nil).
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		`SELECT id, order_id, product_id, name, category, brand, variant, unit_price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	return items, err
}

// FinalizeOrder moves a pending/unpaid order to its terminal status. It
// reports false when the order had already left pending/unpaid.
func (s *Store) FinalizeOrder(ctx context.Context, orderID int64, status, paymentStatus string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, payment_status = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4 AND payment_status = $5`,
		status, paymentStatus, orderID, models.OrderStatusPending, models.PaymentStatusUnpaid)
	if err != nil {
		return false, fmt.Errorf("failed to finalize order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
