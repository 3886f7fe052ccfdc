// Package payments manages payment gateways, transactions and webhooks.
package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/maxnate/infinit-butchery/internal/app/domain/order"
	"github.com/maxnate/infinit-butchery/internal/app/domain/payment"
	"github.com/maxnate/infinit-butchery/internal/app/services/orders"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

// Service provides payment operations. Gateway handlers are registered by
// code; unhandled gateways fail at initiation.
type Service struct {
	store   storage.PaymentStore
	tenants storage.TenantStore
	orders  *orders.Service
	log     *logger.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates the payment service with the cash handler pre-registered.
func New(store storage.PaymentStore, tenants storage.TenantStore, orderSvc *orders.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("payments")
	}
	s := &Service{
		store:    store,
		tenants:  tenants,
		orders:   orderSvc,
		log:      log,
		handlers: make(map[string]Handler),
	}
	s.RegisterHandler(CashHandler{})
	return s
}

// RegisterHandler adds or replaces the handler for its gateway code.
func (s *Service) RegisterHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[h.Code()] = h
}

func (s *Service) handler(code string) (Handler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[code]
	if !ok {
		return nil, fmt.Errorf("no handler registered for gateway %s", code)
	}
	return h, nil
}

// MethodOption pairs an enabled payment method with its gateway for
// storefront display.
type MethodOption struct {
	Method  payment.Method
	Gateway payment.Gateway
}

// AvailableMethods returns the payment options a customer can pick from.
func (s *Service) AvailableMethods(ctx context.Context, tenantID string) ([]MethodOption, error) {
	methods, err := s.store.ListMethods(ctx, tenantID, true)
	if err != nil {
		return nil, err
	}
	result := make([]MethodOption, 0, len(methods))
	for _, m := range methods {
		g, err := s.store.GetGatewayByCode(ctx, m.GatewayCode)
		if err != nil || !g.Active {
			continue
		}
		result = append(result, MethodOption{Method: m, Gateway: g})
	}
	return result, nil
}

// MethodsByType buckets the available payment options by gateway type.
func (s *Service) MethodsByType(ctx context.Context, tenantID string) (map[payment.GatewayType][]MethodOption, error) {
	options, err := s.AvailableMethods(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	grouped := make(map[payment.GatewayType][]MethodOption)
	for _, opt := range options {
		grouped[opt.Gateway.Type] = append(grouped[opt.Gateway.Type], opt)
	}
	return grouped, nil
}

// Methods lists every configured payment method for the tenant, disabled ones
// included.
func (s *Service) Methods(ctx context.Context, tenantID string) ([]payment.Method, error) {
	return s.store.ListMethods(ctx, tenantID, false)
}

// ConfigureMethod enables a gateway for the tenant or updates its existing
// configuration. The amount limits must be ordered when both are set.
func (s *Service) ConfigureMethod(ctx context.Context, m payment.Method) (payment.Method, error) {
	g, err := s.store.GetGatewayByCode(ctx, m.GatewayCode)
	if err != nil {
		return payment.Method{}, err
	}
	if m.MinAmount < 0 || m.MaxAmount < 0 {
		return payment.Method{}, fmt.Errorf("amount limits cannot be negative")
	}
	if m.MinAmount > 0 && m.MaxAmount > 0 && m.MinAmount > m.MaxAmount {
		return payment.Method{}, fmt.Errorf("minimum amount exceeds maximum")
	}
	if m.DisplayName == "" {
		m.DisplayName = g.Name
	}

	existing, err := s.store.GetMethod(ctx, m.TenantID, m.GatewayCode)
	if err != nil {
		created, err := s.store.CreateMethod(ctx, m)
		if err != nil {
			return payment.Method{}, err
		}
		s.log.WithField("tenant_id", m.TenantID).Infof("payment method %s configured", m.GatewayCode)
		return created, nil
	}
	m.ID = existing.ID
	m.CreatedAt = existing.CreatedAt
	return s.store.UpdateMethod(ctx, m)
}

// Initiate starts a payment for an order through the chosen gateway.
func (s *Service) Initiate(ctx context.Context, tenantID, orderID, gatewayCode, customerPhone string) (payment.Transaction, InitiationResult, error) {
	o, err := s.orders.Get(ctx, tenantID, orderID)
	if err != nil {
		return payment.Transaction{}, InitiationResult{}, err
	}
	if o.PaymentStatus == order.PaymentPaid {
		return payment.Transaction{}, InitiationResult{}, fmt.Errorf("order %s is already paid", orderID)
	}
	if o.Status == order.StatusCancelled {
		return payment.Transaction{}, InitiationResult{}, fmt.Errorf("order %s is cancelled", orderID)
	}

	g, err := s.store.GetGatewayByCode(ctx, gatewayCode)
	if err != nil {
		return payment.Transaction{}, InitiationResult{}, err
	}
	if !g.Active {
		return payment.Transaction{}, InitiationResult{}, fmt.Errorf("gateway %s is not active", gatewayCode)
	}
	m, err := s.store.GetMethod(ctx, tenantID, gatewayCode)
	if err != nil {
		return payment.Transaction{}, InitiationResult{}, fmt.Errorf("gateway %s is not configured for this tenant", gatewayCode)
	}
	if !m.Enabled {
		return payment.Transaction{}, InitiationResult{}, fmt.Errorf("payment method %s is disabled", gatewayCode)
	}
	if m.MinAmount > 0 && o.GrandTotal < m.MinAmount {
		return payment.Transaction{}, InitiationResult{}, fmt.Errorf("order total below the %s minimum of %.2f", gatewayCode, m.MinAmount)
	}
	if m.MaxAmount > 0 && o.GrandTotal > m.MaxAmount {
		return payment.Transaction{}, InitiationResult{}, fmt.Errorf("order total above the %s maximum of %.2f", gatewayCode, m.MaxAmount)
	}
	h, err := s.handler(gatewayCode)
	if err != nil {
		return payment.Transaction{}, InitiationResult{}, err
	}

	currency := ""
	if t, err := s.tenants.GetTenant(ctx, tenantID); err == nil {
		currency = t.Currency
	}
	tx, err := s.store.CreateTransaction(ctx, payment.Transaction{
		TenantID:      tenantID,
		OrderID:       orderID,
		GatewayCode:   gatewayCode,
		Amount:        o.GrandTotal,
		Currency:      currency,
		Status:        payment.TxInitiated,
		CustomerPhone: customerPhone,
		InitiatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return payment.Transaction{}, InitiationResult{}, err
	}

	result, err := h.Initiate(ctx, g, m, tx)
	if err != nil {
		tx.Status = payment.TxFailed
		tx.ErrorMessage = err.Error()
		if _, uerr := s.store.UpdateTransaction(ctx, tx); uerr != nil {
			s.log.WithError(uerr).Error("record failed initiation")
		}
		return payment.Transaction{}, InitiationResult{}, fmt.Errorf("initiate payment: %w", err)
	}

	tx.GatewayReference = result.Reference
	if result.Status != "" {
		tx.Status = result.Status
	}
	tx, err = s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return payment.Transaction{}, InitiationResult{}, err
	}
	if tx.Status == payment.TxCompleted {
		if err := s.settle(ctx, tx); err != nil {
			return payment.Transaction{}, InitiationResult{}, err
		}
	}
	s.log.WithField("tenant_id", tenantID).
		WithField("order_id", orderID).
		Infof("payment initiated via %s, transaction %s", gatewayCode, tx.ID)
	return tx, result, nil
}

// settle marks the transaction complete and flows the payment onto the order.
func (s *Service) settle(ctx context.Context, tx payment.Transaction) error {
	if tx.CompletedAt.IsZero() {
		tx.CompletedAt = time.Now().UTC()
		tx.Status = payment.TxCompleted
		if _, err := s.store.UpdateTransaction(ctx, tx); err != nil {
			return err
		}
	}
	if _, err := s.orders.MarkPaid(ctx, tx.TenantID, tx.OrderID); err != nil {
		return err
	}
	s.log.WithField("order_id", tx.OrderID).Infof("payment %s settled", tx.ID)
	return nil
}

// Verify polls the gateway for a non-terminal transaction and applies the
// outcome.
func (s *Service) Verify(ctx context.Context, txID string) (payment.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return payment.Transaction{}, err
	}
	if tx.Status.Terminal() {
		return tx, nil
	}
	g, err := s.store.GetGatewayByCode(ctx, tx.GatewayCode)
	if err != nil {
		return payment.Transaction{}, err
	}
	h, err := s.handler(tx.GatewayCode)
	if err != nil {
		return payment.Transaction{}, err
	}
	status, err := h.Verify(ctx, g, tx)
	if err != nil {
		return payment.Transaction{}, fmt.Errorf("verify payment: %w", err)
	}
	return s.applyStatus(ctx, tx, status, "")
}

// VerifyForOrder verifies a transaction on a customer's behalf. The
// transaction must belong to the tenant's order.
func (s *Service) VerifyForOrder(ctx context.Context, tenantID, orderID, txID string) (payment.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return payment.Transaction{}, err
	}
	if tx.TenantID != tenantID || tx.OrderID != orderID {
		return payment.Transaction{}, fmt.Errorf("transaction %s not found", txID)
	}
	return s.Verify(ctx, txID)
}

func (s *Service) applyStatus(ctx context.Context, tx payment.Transaction, status payment.TransactionStatus, message string) (payment.Transaction, error) {
	if status == tx.Status {
		return tx, nil
	}
	switch status {
	case payment.TxCompleted:
		tx.Status = payment.TxCompleted
		tx.CompletedAt = time.Now().UTC()
		tx, err := s.store.UpdateTransaction(ctx, tx)
		if err != nil {
			return payment.Transaction{}, err
		}
		if _, err := s.orders.MarkPaid(ctx, tx.TenantID, tx.OrderID); err != nil {
			return payment.Transaction{}, err
		}
		return tx, nil
	case payment.TxFailed:
		tx.Status = payment.TxFailed
		tx.ErrorMessage = message
		tx, err := s.store.UpdateTransaction(ctx, tx)
		if err != nil {
			return payment.Transaction{}, err
		}
		if _, err := s.orders.SetPaymentStatus(ctx, tx.TenantID, tx.OrderID, order.PaymentFailed); err != nil {
			return payment.Transaction{}, err
		}
		return tx, nil
	case payment.TxPending, payment.TxInitiated:
		tx.Status = status
		return s.store.UpdateTransaction(ctx, tx)
	default:
		return payment.Transaction{}, fmt.Errorf("unexpected gateway status %q", status)
	}
}

// VerifySignature checks the HMAC-SHA256 hex signature of a webhook payload.
func VerifySignature(secret string, payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleWebhook processes a gateway callback. The payload must carry the
// transaction ID and resulting status, and the signature must match the
// gateway's webhook secret.
func (s *Service) HandleWebhook(ctx context.Context, gatewayCode string, payload []byte, signature string) (payment.Transaction, error) {
	g, err := s.store.GetGatewayByCode(ctx, gatewayCode)
	if err != nil {
		return payment.Transaction{}, err
	}
	if g.WebhookSecret != "" && !VerifySignature(g.WebhookSecret, payload, signature) {
		s.log.WithField("gateway", gatewayCode).Warn("webhook signature mismatch")
		return payment.Transaction{}, fmt.Errorf("invalid webhook signature")
	}

	body := gjson.ParseBytes(payload)
	txID := body.Get("transaction_id").String()
	if txID == "" {
		return payment.Transaction{}, fmt.Errorf("webhook payload missing transaction_id")
	}
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return payment.Transaction{}, err
	}
	if tx.GatewayCode != gatewayCode {
		return payment.Transaction{}, fmt.Errorf("transaction %s does not belong to gateway %s", txID, gatewayCode)
	}
	if tx.Status.Terminal() {
		// Replayed webhook; acknowledge without changing anything.
		return tx, nil
	}

	if ref := body.Get("reference").String(); ref != "" {
		tx.GatewayReference = ref
	}
	tx.CallbackData = string(payload)

	var status payment.TransactionStatus
	switch body.Get("status").String() {
	case "success", "completed", "paid":
		status = payment.TxCompleted
	case "failed", "declined", "error":
		status = payment.TxFailed
	case "pending", "processing":
		status = payment.TxPending
	default:
		return payment.Transaction{}, fmt.Errorf("webhook payload has unknown status %q", body.Get("status").String())
	}
	return s.applyStatus(ctx, tx, status, body.Get("message").String())
}

// ConfirmCash completes a pending cash transaction after staff collect the
// money.
func (s *Service) ConfirmCash(ctx context.Context, tenantID, txID string) (payment.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return payment.Transaction{}, err
	}
	if tx.TenantID != tenantID {
		return payment.Transaction{}, fmt.Errorf("transaction %s not found", txID)
	}
	if tx.GatewayCode != "cash" {
		return payment.Transaction{}, fmt.Errorf("transaction %s is not a cash payment", txID)
	}
	if tx.Status.Terminal() {
		return payment.Transaction{}, fmt.Errorf("transaction %s is already %s", txID, tx.Status)
	}
	return s.applyStatus(ctx, tx, payment.TxCompleted, "")
}

// Refund refunds part or all of a completed transaction through its gateway.
func (s *Service) Refund(ctx context.Context, tenantID, txID string, amount float64) (payment.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return payment.Transaction{}, err
	}
	if tx.TenantID != tenantID {
		return payment.Transaction{}, fmt.Errorf("transaction %s not found", txID)
	}
	if tx.Status != payment.TxCompleted {
		return payment.Transaction{}, fmt.Errorf("only completed transactions can be refunded")
	}
	if amount <= 0 {
		amount = tx.Amount
	}
	if amount > tx.Amount-tx.RefundAmount {
		return payment.Transaction{}, fmt.Errorf("refund exceeds the remaining %.2f", tx.Amount-tx.RefundAmount)
	}
	g, err := s.store.GetGatewayByCode(ctx, tx.GatewayCode)
	if err != nil {
		return payment.Transaction{}, err
	}
	if !g.SupportsRefund {
		return payment.Transaction{}, fmt.Errorf("gateway %s does not support refunds", tx.GatewayCode)
	}
	h, err := s.handler(tx.GatewayCode)
	if err != nil {
		return payment.Transaction{}, err
	}
	if err := h.Refund(ctx, g, tx, amount); err != nil {
		return payment.Transaction{}, fmt.Errorf("gateway refund: %w", err)
	}

	tx.RefundAmount += amount
	tx.RefundedAt = time.Now().UTC()
	if tx.RefundAmount >= tx.Amount {
		tx.Status = payment.TxRefunded
	}
	tx, err = s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return payment.Transaction{}, err
	}
	if tx.Status == payment.TxRefunded {
		if _, err := s.orders.SetPaymentStatus(ctx, tx.TenantID, tx.OrderID, order.PaymentRefunded); err != nil {
			return payment.Transaction{}, err
		}
	}
	s.log.WithField("order_id", tx.OrderID).Infof("refunded %.2f on transaction %s", amount, tx.ID)
	return tx, nil
}

// TransactionsForOrder lists an order's payment attempts, newest first.
func (s *Service) TransactionsForOrder(ctx context.Context, tenantID, orderID string) ([]payment.Transaction, error) {
	if _, err := s.orders.Get(ctx, tenantID, orderID); err != nil {
		return nil, err
	}
	return s.store.ListTransactionsByOrder(ctx, orderID)
}
