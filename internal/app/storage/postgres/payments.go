package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maxnate/infinit-butchery/internal/app/domain/payment"
)

type gatewayRow struct {
	ID             string    `db:"id"`
	Code           string    `db:"code"`
	Name           string    `db:"name"`
	Type           string    `db:"gateway_type"`
	Active         bool      `db:"active"`
	SandboxMode    bool      `db:"sandbox_mode"`
	SupportsRefund bool      `db:"supports_refund"`
	WebhookSecret  string    `db:"webhook_secret"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r gatewayRow) toDomain() payment.Gateway {
	return payment.Gateway{
		ID:             r.ID,
		Code:           r.Code,
		Name:           r.Name,
		Type:           payment.GatewayType(r.Type),
		Active:         r.Active,
		SandboxMode:    r.SandboxMode,
		SupportsRefund: r.SupportsRefund,
		WebhookSecret:  r.WebhookSecret,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (s *Store) CreateGateway(ctx context.Context, g payment.Gateway) (payment.Gateway, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_gateways (id, code, name, gateway_type, active, sandbox_mode, supports_refund, webhook_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		g.ID, g.Code, g.Name, string(g.Type), g.Active, g.SandboxMode, g.SupportsRefund, g.WebhookSecret, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return payment.Gateway{}, fmt.Errorf("insert gateway: %w", err)
	}
	return g, nil
}

func (s *Store) UpdateGateway(ctx context.Context, g payment.Gateway) (payment.Gateway, error) {
	g.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE payment_gateways
		SET name = $2, gateway_type = $3, active = $4, sandbox_mode = $5, supports_refund = $6, webhook_secret = $7, updated_at = $8
		WHERE code = $1`,
		g.Code, g.Name, string(g.Type), g.Active, g.SandboxMode, g.SupportsRefund, g.WebhookSecret, g.UpdatedAt)
	if err != nil {
		return payment.Gateway{}, fmt.Errorf("update gateway: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return payment.Gateway{}, fmt.Errorf("gateway %s not found", g.Code)
	}
	return s.GetGatewayByCode(ctx, g.Code)
}

func (s *Store) GetGatewayByCode(ctx context.Context, code string) (payment.Gateway, error) {
	var row gatewayRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM payment_gateways WHERE code = $1`, code)
	if isNoRows(err) {
		return payment.Gateway{}, fmt.Errorf("gateway %s not found", code)
	}
	if err != nil {
		return payment.Gateway{}, fmt.Errorf("get gateway: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListGateways(ctx context.Context, activeOnly bool) ([]payment.Gateway, error) {
	query := `SELECT * FROM payment_gateways`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY code`

	var rows []gatewayRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list gateways: %w", err)
	}
	result := make([]payment.Gateway, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

type methodRow struct {
	ID           string    `db:"id"`
	TenantID     string    `db:"tenant_id"`
	GatewayCode  string    `db:"gateway_code"`
	DisplayName  string    `db:"display_name"`
	Enabled      bool      `db:"enabled"`
	MinAmount    float64   `db:"min_amount"`
	MaxAmount    float64   `db:"max_amount"`
	DisplayOrder int       `db:"display_order"`
	MerchantID   string    `db:"merchant_id"`
	MerchantCode string    `db:"merchant_code"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r methodRow) toDomain() payment.Method {
	return payment.Method{
		ID:           r.ID,
		TenantID:     r.TenantID,
		GatewayCode:  r.GatewayCode,
		DisplayName:  r.DisplayName,
		Enabled:      r.Enabled,
		MinAmount:    r.MinAmount,
		MaxAmount:    r.MaxAmount,
		DisplayOrder: r.DisplayOrder,
		MerchantID:   r.MerchantID,
		MerchantCode: r.MerchantCode,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (s *Store) CreateMethod(ctx context.Context, m payment.Method) (payment.Method, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_methods (id, tenant_id, gateway_code, display_name, enabled, min_amount, max_amount, display_order, merchant_id, merchant_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID, m.TenantID, m.GatewayCode, m.DisplayName, m.Enabled, m.MinAmount, m.MaxAmount, m.DisplayOrder, m.MerchantID, m.MerchantCode, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return payment.Method{}, fmt.Errorf("insert payment method: %w", err)
	}
	return m, nil
}

func (s *Store) UpdateMethod(ctx context.Context, m payment.Method) (payment.Method, error) {
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE payment_methods
		SET display_name = $3, enabled = $4, min_amount = $5, max_amount = $6, display_order = $7,
		    merchant_id = $8, merchant_code = $9, updated_at = $10
		WHERE tenant_id = $1 AND gateway_code = $2`,
		m.TenantID, m.GatewayCode, m.DisplayName, m.Enabled, m.MinAmount, m.MaxAmount, m.DisplayOrder,
		m.MerchantID, m.MerchantCode, m.UpdatedAt)
	if err != nil {
		return payment.Method{}, fmt.Errorf("update payment method: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return payment.Method{}, fmt.Errorf("payment method %s not found", m.GatewayCode)
	}
	return s.GetMethod(ctx, m.TenantID, m.GatewayCode)
}

func (s *Store) GetMethod(ctx context.Context, tenantID, gatewayCode string) (payment.Method, error) {
	var row methodRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM payment_methods WHERE tenant_id = $1 AND gateway_code = $2`, tenantID, gatewayCode)
	if isNoRows(err) {
		return payment.Method{}, fmt.Errorf("payment method %s not found", gatewayCode)
	}
	if err != nil {
		return payment.Method{}, fmt.Errorf("get payment method: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListMethods(ctx context.Context, tenantID string, enabledOnly bool) ([]payment.Method, error) {
	query := `SELECT * FROM payment_methods WHERE tenant_id = $1`
	if enabledOnly {
		query += ` AND enabled`
	}
	query += ` ORDER BY display_order, gateway_code`

	var rows []methodRow
	if err := s.db.SelectContext(ctx, &rows, query, tenantID); err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	result := make([]payment.Method, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

type transactionRow struct {
	ID               string       `db:"id"`
	TenantID         string       `db:"tenant_id"`
	OrderID          string       `db:"order_id"`
	GatewayCode      string       `db:"gateway_code"`
	Amount           float64      `db:"amount"`
	Currency         string       `db:"currency"`
	Status           string       `db:"status"`
	GatewayReference string       `db:"gateway_reference"`
	CustomerPhone    string       `db:"customer_phone"`
	ErrorMessage     string       `db:"error_message"`
	CallbackData     string       `db:"callback_data"`
	RefundAmount     float64      `db:"refund_amount"`
	InitiatedAt      sql.NullTime `db:"initiated_at"`
	CompletedAt      sql.NullTime `db:"completed_at"`
	RefundedAt       sql.NullTime `db:"refunded_at"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}

func (r transactionRow) toDomain() payment.Transaction {
	return payment.Transaction{
		ID:               r.ID,
		TenantID:         r.TenantID,
		OrderID:          r.OrderID,
		GatewayCode:      r.GatewayCode,
		Amount:           r.Amount,
		Currency:         r.Currency,
		Status:           payment.TransactionStatus(r.Status),
		GatewayReference: r.GatewayReference,
		CustomerPhone:    r.CustomerPhone,
		ErrorMessage:     r.ErrorMessage,
		CallbackData:     r.CallbackData,
		RefundAmount:     r.RefundAmount,
		InitiatedAt:      fromNullTime(r.InitiatedAt),
		CompletedAt:      fromNullTime(r.CompletedAt),
		RefundedAt:       fromNullTime(r.RefundedAt),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (s *Store) CreateTransaction(ctx context.Context, tx payment.Transaction) (payment.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_transactions (id, tenant_id, order_id, gateway_code, amount, currency, status,
		                                  gateway_reference, customer_phone, error_message, callback_data,
		                                  refund_amount, initiated_at, completed_at, refunded_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		tx.ID, tx.TenantID, tx.OrderID, tx.GatewayCode, tx.Amount, tx.Currency, string(tx.Status),
		tx.GatewayReference, tx.CustomerPhone, tx.ErrorMessage, tx.CallbackData,
		tx.RefundAmount, nullTime(tx.InitiatedAt), nullTime(tx.CompletedAt), nullTime(tx.RefundedAt), tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return payment.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx payment.Transaction) (payment.Transaction, error) {
	tx.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE payment_transactions
		SET status = $2, gateway_reference = $3, error_message = $4, callback_data = $5,
		    refund_amount = $6, initiated_at = $7, completed_at = $8, refunded_at = $9, updated_at = $10
		WHERE id = $1`,
		tx.ID, string(tx.Status), tx.GatewayReference, tx.ErrorMessage, tx.CallbackData,
		tx.RefundAmount, nullTime(tx.InitiatedAt), nullTime(tx.CompletedAt), nullTime(tx.RefundedAt), tx.UpdatedAt)
	if err != nil {
		return payment.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return payment.Transaction{}, fmt.Errorf("transaction %s not found", tx.ID)
	}
	return tx, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (payment.Transaction, error) {
	var row transactionRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM payment_transactions WHERE id = $1`, id)
	if isNoRows(err) {
		return payment.Transaction{}, fmt.Errorf("transaction %s not found", id)
	}
	if err != nil {
		return payment.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListTransactionsByOrder(ctx context.Context, orderID string) ([]payment.Transaction, error) {
	var rows []transactionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM payment_transactions WHERE order_id = $1 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	result := make([]payment.Transaction, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) ListPendingTransactions(ctx context.Context) ([]payment.Transaction, error) {
	var rows []transactionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM payment_transactions WHERE status IN ('Initiated', 'Pending') ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	result := make([]payment.Transaction, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) DeleteFailedTransactionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM payment_transactions WHERE status = 'Failed' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete failed transactions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
