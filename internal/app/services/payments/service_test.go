package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"testing"

	"github.com/maxnate/infinit-butchery/internal/app/domain/catalog"
	"github.com/maxnate/infinit-butchery/internal/app/domain/order"
	"github.com/maxnate/infinit-butchery/internal/app/domain/payment"
	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
	"github.com/maxnate/infinit-butchery/internal/app/services/deliverysvc"
	"github.com/maxnate/infinit-butchery/internal/app/services/orders"
	"github.com/maxnate/infinit-butchery/internal/app/storage/memory"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

// mobileHandler fakes a mobile money gateway for tests.
type mobileHandler struct {
	initiateStatus payment.TransactionStatus
	verifyStatus   payment.TransactionStatus
	refundErr      error
	refunds        []float64
}

func (h *mobileHandler) Code() string { return "mpesa" }

func (h *mobileHandler) Initiate(_ context.Context, _ payment.Gateway, _ payment.Method, tx payment.Transaction) (InitiationResult, error) {
	return InitiationResult{Reference: "MP-" + tx.ID, Status: h.initiateStatus}, nil
}

func (h *mobileHandler) Verify(_ context.Context, _ payment.Gateway, _ payment.Transaction) (payment.TransactionStatus, error) {
	return h.verifyStatus, nil
}

func (h *mobileHandler) Refund(_ context.Context, _ payment.Gateway, _ payment.Transaction, amount float64) error {
	if h.refundErr != nil {
		return h.refundErr
	}
	h.refunds = append(h.refunds, amount)
	return nil
}

type fixture struct {
	svc    *Service
	orders *orders.Service
	store  *memory.Store
	tenant tenant.Tenant
	order  order.Order
	mobile *mobileHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	log := logger.NewDefault("payments-test")
	log.SetOutput(io.Discard)

	owner, err := store.CreateTenant(ctx, tenant.Tenant{
		Name: "Prime Cuts", Currency: "KES",
		Features: tenant.DefaultFeatures(tenant.BusinessRetail),
	})
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	product, err := store.CreateProduct(ctx, catalog.Product{
		TenantID: owner.ID, Code: "PACK", Name: "Sausage Pack", UnitPrice: 50, Visible: true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	orderSvc := orders.New(store, store, store, deliverysvc.New(store, log), nil, log)
	o, err := orderSvc.Create(ctx, owner.ID, orders.CreateInput{
		CustomerName:  "Ada",
		CustomerPhone: "555-0100",
		Items:         []orders.ItemInput{{ProductID: product.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := store.CreateGateway(ctx, payment.Gateway{
		Code: "cash", Name: "Cash", Type: payment.GatewayCash, Active: true,
	}); err != nil {
		t.Fatalf("create gateway: %v", err)
	}
	if _, err := store.CreateGateway(ctx, payment.Gateway{
		Code: "mpesa", Name: "M-Pesa", Type: payment.GatewayMobileMoney,
		Active: true, SupportsRefund: true, WebhookSecret: "whsec",
	}); err != nil {
		t.Fatalf("create gateway: %v", err)
	}
	for _, code := range []string{"cash", "mpesa"} {
		if _, err := store.CreateMethod(ctx, payment.Method{
			TenantID: owner.ID, GatewayCode: code, Enabled: true,
		}); err != nil {
			t.Fatalf("create method: %v", err)
		}
	}

	mobile := &mobileHandler{initiateStatus: payment.TxPending, verifyStatus: payment.TxPending}
	svc := New(store, store, orderSvc, log)
	svc.RegisterHandler(mobile)
	return &fixture{svc: svc, orders: orderSvc, store: store, tenant: owner, order: o, mobile: mobile}
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCashFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, result, err := f.svc.Initiate(ctx, f.tenant.ID, f.order.ID, "cash", "555-0100")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if tx.Status != payment.TxPending {
		t.Fatalf("status = %s, want Pending", tx.Status)
	}
	if result.Reference != "CASH-"+tx.ID {
		t.Fatalf("reference = %q", result.Reference)
	}
	if tx.Currency != "KES" {
		t.Fatalf("currency = %q, want KES", tx.Currency)
	}

	confirmed, err := f.svc.ConfirmCash(ctx, f.tenant.ID, tx.ID)
	if err != nil {
		t.Fatalf("confirm cash: %v", err)
	}
	if confirmed.Status != payment.TxCompleted {
		t.Fatalf("status = %s, want Completed", confirmed.Status)
	}

	// A paid pending order auto-confirms.
	o, err := f.orders.Get(ctx, f.tenant.ID, f.order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if o.PaymentStatus != order.PaymentPaid || o.Status != order.StatusConfirmed {
		t.Fatalf("order = %s/%s, want Confirmed/Paid", o.Status, o.PaymentStatus)
	}

	if _, err := f.svc.ConfirmCash(ctx, f.tenant.ID, tx.ID); err == nil {
		t.Fatal("expected double confirm to fail")
	}
	if _, _, err := f.svc.Initiate(ctx, f.tenant.ID, f.order.ID, "cash", ""); err == nil {
		t.Fatal("expected paid order to refuse new payments")
	}
}

func TestInitiateEnforcesMethodLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.store.GetMethod(ctx, f.tenant.ID, "mpesa")
	if err != nil {
		t.Fatalf("get method: %v", err)
	}
	m.MinAmount = 500
	if _, err := f.store.UpdateMethod(ctx, m); err != nil {
		t.Fatalf("update method: %v", err)
	}

	if _, _, err := f.svc.Initiate(ctx, f.tenant.ID, f.order.ID, "mpesa", ""); err == nil {
		t.Fatal("expected order below the method minimum to be rejected")
	}
}

func TestVerifyAppliesGatewayOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, _, err := f.svc.Initiate(ctx, f.tenant.ID, f.order.ID, "mpesa", "555-0100")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	f.mobile.verifyStatus = payment.TxCompleted
	verified, err := f.svc.Verify(ctx, tx.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.Status != payment.TxCompleted {
		t.Fatalf("status = %s, want Completed", verified.Status)
	}
	o, _ := f.orders.Get(ctx, f.tenant.ID, f.order.ID)
	if o.PaymentStatus != order.PaymentPaid {
		t.Fatalf("order payment = %s, want Paid", o.PaymentStatus)
	}

	// Verifying a terminal transaction is a no-op.
	again, err := f.svc.Verify(ctx, tx.ID)
	if err != nil {
		t.Fatalf("verify again: %v", err)
	}
	if again.Status != payment.TxCompleted {
		t.Fatalf("status = %s", again.Status)
	}
}

func TestWebhookSignatureAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, _, err := f.svc.Initiate(ctx, f.tenant.ID, f.order.ID, "mpesa", "555-0100")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	payload := []byte(fmt.Sprintf(`{"transaction_id":%q,"status":"success","reference":"MP-XYZ"}`, tx.ID))

	if _, err := f.svc.HandleWebhook(ctx, "mpesa", payload, "bad-signature"); err == nil {
		t.Fatal("expected bad signature to be rejected")
	}

	updated, err := f.svc.HandleWebhook(ctx, "mpesa", payload, sign("whsec", payload))
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if updated.Status != payment.TxCompleted {
		t.Fatalf("status = %s, want Completed", updated.Status)
	}
	if updated.GatewayReference != "MP-XYZ" {
		t.Fatalf("reference = %q", updated.GatewayReference)
	}

	// Replays acknowledge without modifying the settled transaction.
	replayed, err := f.svc.HandleWebhook(ctx, "mpesa", payload, sign("whsec", payload))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replayed.Status != payment.TxCompleted {
		t.Fatalf("replay status = %s", replayed.Status)
	}
}

func TestWebhookFailureMarksOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, _, err := f.svc.Initiate(ctx, f.tenant.ID, f.order.ID, "mpesa", "555-0100")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	payload := []byte(fmt.Sprintf(`{"transaction_id":%q,"status":"failed","message":"insufficient funds"}`, tx.ID))
	updated, err := f.svc.HandleWebhook(ctx, "mpesa", payload, sign("whsec", payload))
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if updated.Status != payment.TxFailed || updated.ErrorMessage != "insufficient funds" {
		t.Fatalf("tx = %s %q", updated.Status, updated.ErrorMessage)
	}
	o, _ := f.orders.Get(ctx, f.tenant.ID, f.order.ID)
	if o.PaymentStatus != order.PaymentFailed {
		t.Fatalf("order payment = %s, want Failed", o.PaymentStatus)
	}
}

func TestRefundRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, _, err := f.svc.Initiate(ctx, f.tenant.ID, f.order.ID, "mpesa", "555-0100")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// Not completed yet.
	if _, err := f.svc.Refund(ctx, f.tenant.ID, tx.ID, 10); err == nil {
		t.Fatal("expected refund of pending transaction to fail")
	}

	f.mobile.verifyStatus = payment.TxCompleted
	if _, err := f.svc.Verify(ctx, tx.ID); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if _, err := f.svc.Refund(ctx, f.tenant.ID, tx.ID, 1000); err == nil {
		t.Fatal("expected over-refund to fail")
	}

	partial, err := f.svc.Refund(ctx, f.tenant.ID, tx.ID, 40)
	if err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if partial.Status != payment.TxCompleted || partial.RefundAmount != 40 {
		t.Fatalf("tx = %s refund %.2f", partial.Status, partial.RefundAmount)
	}

	full, err := f.svc.Refund(ctx, f.tenant.ID, tx.ID, 60)
	if err != nil {
		t.Fatalf("full refund: %v", err)
	}
	if full.Status != payment.TxRefunded {
		t.Fatalf("status = %s, want Refunded", full.Status)
	}
	o, _ := f.orders.Get(ctx, f.tenant.ID, f.order.ID)
	if o.PaymentStatus != order.PaymentRefunded {
		t.Fatalf("order payment = %s, want Refunded", o.PaymentStatus)
	}
	if len(f.mobile.refunds) != 2 {
		t.Fatalf("gateway saw %d refunds, want 2", len(f.mobile.refunds))
	}
}

func TestCashRefundsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, _, err := f.svc.Initiate(ctx, f.tenant.ID, f.order.ID, "cash", "")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := f.svc.ConfirmCash(ctx, f.tenant.ID, tx.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	// The cash gateway does not support refunds.
	if _, err := f.svc.Refund(ctx, f.tenant.ID, tx.ID, 0); err == nil {
		t.Fatal("expected cash refund to fail")
	}
}

func TestAvailableMethodsSkipsInactiveGateways(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.store.GetGatewayByCode(ctx, "mpesa")
	if err != nil {
		t.Fatalf("get gateway: %v", err)
	}
	g.Active = false
	if _, err := f.store.UpdateGateway(ctx, g); err != nil {
		t.Fatalf("update gateway: %v", err)
	}

	options, err := f.svc.AvailableMethods(ctx, f.tenant.ID)
	if err != nil {
		t.Fatalf("available methods: %v", err)
	}
	if len(options) != 1 || options[0].Gateway.Code != "cash" {
		t.Fatalf("options = %+v, want just cash", options)
	}
}

func TestConfigureMethod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.ConfigureMethod(ctx, payment.Method{
		TenantID: f.tenant.ID, GatewayCode: "mpesa", MinAmount: 100, MaxAmount: 10,
	}); err == nil {
		t.Fatal("expected inverted limits to be rejected")
	}
	if _, err := f.svc.ConfigureMethod(ctx, payment.Method{
		TenantID: f.tenant.ID, GatewayCode: "nope",
	}); err == nil {
		t.Fatal("expected unknown gateway to be rejected")
	}

	existing, err := f.store.GetMethod(ctx, f.tenant.ID, "mpesa")
	if err != nil {
		t.Fatalf("get method: %v", err)
	}
	updated, err := f.svc.ConfigureMethod(ctx, payment.Method{
		TenantID: f.tenant.ID, GatewayCode: "mpesa", Enabled: true, MinAmount: 10, MaxAmount: 5000,
	})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if updated.ID != existing.ID {
		t.Fatalf("configure created a duplicate method: %s != %s", updated.ID, existing.ID)
	}
	if updated.DisplayName != "M-Pesa" {
		t.Fatalf("display name = %q, want gateway name fallback", updated.DisplayName)
	}
}

func TestMethodsByTypeGroups(t *testing.T) {
	f := newFixture(t)

	grouped, err := f.svc.MethodsByType(context.Background(), f.tenant.ID)
	if err != nil {
		t.Fatalf("methods by type: %v", err)
	}
	if len(grouped[payment.GatewayCash]) != 1 || len(grouped[payment.GatewayMobileMoney]) != 1 {
		t.Fatalf("grouped = %+v", grouped)
	}
}

func TestVerifyForOrderChecksOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, _, err := f.svc.Initiate(ctx, f.tenant.ID, f.order.ID, "mpesa", "555-0100")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	f.mobile.verifyStatus = payment.TxCompleted
	verified, err := f.svc.VerifyForOrder(ctx, f.tenant.ID, f.order.ID, tx.ID)
	if err != nil {
		t.Fatalf("verify for order: %v", err)
	}
	if verified.Status != payment.TxCompleted {
		t.Fatalf("status = %s, want Completed", verified.Status)
	}

	if _, err := f.svc.VerifyForOrder(ctx, f.tenant.ID, "other-order", tx.ID); err == nil {
		t.Fatal("expected transaction from another order to be rejected")
	}
	if _, err := f.svc.VerifyForOrder(ctx, "other-tenant", f.order.ID, tx.ID); err == nil {
		t.Fatal("expected transaction from another tenant to be rejected")
	}
}
