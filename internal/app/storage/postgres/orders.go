package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maxnate/infinit-butchery/internal/app/domain/order"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
)

type orderRow struct {
	ID            string `db:"id"`
	TenantID      string `db:"tenant_id"`
	Type          string `db:"order_type"`
	CustomerName  string `db:"customer_name"`
	CustomerPhone string `db:"customer_phone"`
	CustomerEmail string `db:"customer_email"`

	Items       []byte  `db:"items"`
	Subtotal    float64 `db:"subtotal"`
	Discount    float64 `db:"discount"`
	DeliveryFee float64 `db:"delivery_fee"`
	TaxAmount   float64 `db:"tax_amount"`
	GrandTotal  float64 `db:"grand_total"`

	Status        string `db:"status"`
	PaymentStatus string `db:"payment_status"`

	DeliveryZoneID   sql.NullString `db:"delivery_zone_id"`
	DeliveryAddress  string         `db:"delivery_address"`
	DeliveryDate     sql.NullTime   `db:"delivery_date"`
	DeliveryTimeSlot string         `db:"delivery_time_slot"`
	PickupDate       sql.NullTime   `db:"pickup_date"`
	PickupTime       string         `db:"pickup_time"`

	Notes              string       `db:"notes"`
	CancellationReason string       `db:"cancellation_reason"`
	CompletedAt        sql.NullTime `db:"completed_at"`
	CreatedAt          time.Time    `db:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at"`
}

func (r orderRow) toDomain() (order.Order, error) {
	o := order.Order{
		ID:                 r.ID,
		TenantID:           r.TenantID,
		Type:               order.Type(r.Type),
		CustomerName:       r.CustomerName,
		CustomerPhone:      r.CustomerPhone,
		CustomerEmail:      r.CustomerEmail,
		Subtotal:           r.Subtotal,
		Discount:           r.Discount,
		DeliveryFee:        r.DeliveryFee,
		TaxAmount:          r.TaxAmount,
		GrandTotal:         r.GrandTotal,
		Status:             order.Status(r.Status),
		PaymentStatus:      order.PaymentStatus(r.PaymentStatus),
		DeliveryZoneID:     r.DeliveryZoneID.String,
		DeliveryAddress:    r.DeliveryAddress,
		DeliveryDate:       fromNullTime(r.DeliveryDate),
		DeliveryTimeSlot:   r.DeliveryTimeSlot,
		PickupDate:         fromNullTime(r.PickupDate),
		PickupTime:         r.PickupTime,
		Notes:              r.Notes,
		CancellationReason: r.CancellationReason,
		CompletedAt:        fromNullTime(r.CompletedAt),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if len(r.Items) > 0 {
		if err := json.Unmarshal(r.Items, &o.Items); err != nil {
			return order.Order{}, fmt.Errorf("decode order items: %w", err)
		}
	}
	return o, nil
}

func (s *Store) CreateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	items, err := json.Marshal(o.Items)
	if err != nil {
		return order.Order{}, fmt.Errorf("encode order items: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, tenant_id, order_type, customer_name, customer_phone, customer_email,
		                    items, subtotal, discount, delivery_fee, tax_amount, grand_total,
		                    status, payment_status, delivery_zone_id, delivery_address, delivery_date,
		                    delivery_time_slot, pickup_date, pickup_time, notes, cancellation_reason,
		                    completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		o.ID, o.TenantID, string(o.Type), o.CustomerName, o.CustomerPhone, o.CustomerEmail,
		items, o.Subtotal, o.Discount, o.DeliveryFee, o.TaxAmount, o.GrandTotal,
		string(o.Status), string(o.PaymentStatus), nullString(o.DeliveryZoneID), o.DeliveryAddress, nullTime(o.DeliveryDate),
		o.DeliveryTimeSlot, nullTime(o.PickupDate), o.PickupTime, o.Notes, o.CancellationReason,
		nullTime(o.CompletedAt), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return order.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

func (s *Store) UpdateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	o.UpdatedAt = time.Now().UTC()
	items, err := json.Marshal(o.Items)
	if err != nil {
		return order.Order{}, fmt.Errorf("encode order items: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET order_type = $2, customer_name = $3, customer_phone = $4, customer_email = $5,
		    items = $6, subtotal = $7, discount = $8, delivery_fee = $9, tax_amount = $10, grand_total = $11,
		    status = $12, payment_status = $13, delivery_zone_id = $14, delivery_address = $15,
		    delivery_date = $16, delivery_time_slot = $17, pickup_date = $18, pickup_time = $19,
		    notes = $20, cancellation_reason = $21, completed_at = $22, updated_at = $23
		WHERE id = $1`,
		o.ID, string(o.Type), o.CustomerName, o.CustomerPhone, o.CustomerEmail,
		items, o.Subtotal, o.Discount, o.DeliveryFee, o.TaxAmount, o.GrandTotal,
		string(o.Status), string(o.PaymentStatus), nullString(o.DeliveryZoneID), o.DeliveryAddress,
		nullTime(o.DeliveryDate), o.DeliveryTimeSlot, nullTime(o.PickupDate), o.PickupTime,
		o.Notes, o.CancellationReason, nullTime(o.CompletedAt), o.UpdatedAt)
	if err != nil {
		return order.Order{}, fmt.Errorf("update order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return order.Order{}, fmt.Errorf("order %s not found", o.ID)
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (order.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM orders WHERE id = $1`, id)
	if isNoRows(err) {
		return order.Order{}, fmt.Errorf("order %s not found", id)
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("get order: %w", err)
	}
	return row.toDomain()
}

func (s *Store) ListOrders(ctx context.Context, tenantID string, filter storage.OrderFilter) ([]order.Order, int, error) {
	where := ` WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	add := func(clause string, value interface{}) {
		args = append(args, value)
		where += fmt.Sprintf(clause, len(args))
	}
	if filter.Status != "" {
		add(` AND status = $%d`, string(filter.Status))
	}
	if filter.Type != "" {
		add(` AND order_type = $%d`, string(filter.Type))
	}
	if filter.PaymentStatus != "" {
		add(` AND payment_status = $%d`, string(filter.PaymentStatus))
	}
	if filter.Phone != "" {
		add(` AND customer_phone = $%d`, filter.Phone)
	}
	if !filter.CreatedBefore.IsZero() {
		add(` AND created_at < $%d`, filter.CreatedBefore)
	}
	if !filter.DateFrom.IsZero() {
		add(` AND created_at >= $%d`, filter.DateFrom)
	}
	if !filter.DateTo.IsZero() {
		add(` AND created_at < $%d`, filter.DateTo)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT count(*) FROM orders`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT * FROM orders` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	result := make([]order.Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		result = append(result, o)
	}
	return result, total, nil
}
