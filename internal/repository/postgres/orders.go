package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

type orderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository. An order, its items and
// its creation event are written in one transaction.
func NewOrderRepository(db *sql.DB, logger *zap.Logger) *orderRepository {
	return &orderRepository{
		db:     db,
		logger: logger,
	}
}

const orderColumns = `id, user_id, customer_name, customer_email, subtotal, tax, shipping_cost,
	discount, total, currency, status, payment_status, shipping_address, billing_address,
	notes, created_at, updated_at`

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	now := time.Now().UTC()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}

	shipping, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return errors.Persistence("encode shipping address", err)
	}
	var billing interface{} // NULL unless present
	if order.BillingAddress != nil {
		b, err := json.Marshal(order.BillingAddress)
		if err != nil {
			return errors.Persistence("encode billing address", err)
		}
		billing = string(b)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Persistence("begin order transaction", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = tx.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.CustomerName,
		order.CustomerEmail,
		order.Subtotal,
		order.Tax,
		order.ShippingCost,
		order.Discount,
		order.Total,
		order.Currency,
		order.Status,
		order.PaymentStatus,
		string(shipping),
		billing,
		order.Notes,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert order", zap.Error(err))
		return errors.Persistence("create order", err)
	}

	itemQuery := `INSERT INTO order_items (order_id, product_id, name, image, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, item := range order.Items {
		if _, err := tx.ExecContext(ctx, itemQuery,
			order.ID,
			item.ProductID,
			item.Name,
			item.Image,
			item.Price,
			item.Quantity,
		); err != nil {
			r.logger.Error("Failed to insert order item", zap.Error(err))
			return errors.Persistence("create order items", err)
		}
	}

	if err := insertEvent(ctx, tx, order.ID, "order_created", map[string]interface{}{
		"status": order.Status,
		"total":  order.Total.String(),
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit order", zap.Error(err))
		return errors.Persistence("commit order", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, eventType string, data map[string]interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Persistence("encode order event", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_events (id, order_id, event_type, event_data, created_at) VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New(), orderID, eventType, string(payload))
	if err != nil {
		return errors.Persistence("create order event", err)
	}
	return nil
}

func scanOrder(row interface{ Scan(...interface{}) error }) (*domain.Order, error) {
	var (
		o        domain.Order
		shipping []byte
		billing  []byte
	)
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.Subtotal,
		&o.Tax,
		&o.ShippingCost,
		&o.Discount,
		&o.Total,
		&o.Currency,
		&o.Status,
		&o.PaymentStatus,
		&shipping,
		&billing,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	if len(billing) > 0 {
		var addr domain.Address
		if err := json.Unmarshal(billing, &addr); err != nil {
			return nil, fmt.Errorf("decode billing address: %w", err)
		}
		o.BillingAddress = &addr
	}
	o.Items = []domain.OrderItem{}
	return &o, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get order by ID", zap.Error(err))
		return nil, errors.Persistence("get order", err)
	}

	if err := r.attachItems(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query orders", zap.Error(err))
		return nil, errors.Persistence("list orders", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Persistence("list orders", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Persistence("list orders", err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of every order in one query
func (r *orderRepository) attachItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID.String())
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, name, image, price, quantity
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY id`, pq.Array(ids))
	if err != nil {
		r.logger.Error("Failed to query order items", zap.Error(err))
		return errors.Persistence("get order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID uuid.UUID
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Image, &item.Price, &item.Quantity); err != nil {
			return errors.Persistence("get order items", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Persistence("get order items", err)
	}
	return nil
}

func (r *orderRepository) ListByUserID(ctx context.Context, userID string, status domain.OrderStatus) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	return r.queryOrders(ctx, query, args...)
}

func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+likeEscaper.Replace(s)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(id::text ILIKE $%d OR customer_email ILIKE $%d OR customer_name ILIKE $%d)", n, n, n))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	limit, offset := filter.Limit, filter.Offset

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count orders", zap.Error(err))
		return nil, 0, errors.Persistence("list orders", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	orders, err := r.queryOrders(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Persistence("begin status transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, from, to)
	if err != nil {
		r.logger.Error("Failed to update order status", zap.Error(err))
		return errors.Persistence("update order status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return &errors.ErrConflict{Message: "order status changed concurrently"}
	}

	if err := insertEvent(ctx, tx, id, "status_change", map[string]interface{}{
		"from": from,
		"to":   to,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Persistence("commit order status", err)
	}
	return nil
}

func (r *orderRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if err != nil {
		r.logger.Error("Failed to update payment status", zap.Error(err))
		return errors.Persistence("update payment status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	return nil
}
