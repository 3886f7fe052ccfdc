package httpapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	app "github.com/maxnate/infinit-butchery/internal/app"
	"github.com/maxnate/infinit-butchery/internal/app/domain/catalog"
	"github.com/maxnate/infinit-butchery/internal/app/domain/payment"
	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
	"github.com/maxnate/infinit-butchery/internal/app/services/orders"
	"github.com/maxnate/infinit-butchery/internal/app/services/tenants"
	"github.com/maxnate/infinit-butchery/internal/app/storage/memory"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

const testSecret = "handler-test-secret"

type fixture struct {
	handler http.Handler
	app     *app.Application
	store   *memory.Store
	tenant  tenant.Tenant
	product catalog.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	log := logger.NewDefault("httpapi-test")
	log.SetOutput(io.Discard)

	application, err := app.New(app.Stores{
		Tenants:  store,
		Catalog:  store,
		Orders:   store,
		Delivery: store,
		Payments: store,
	}, app.Options{}, log)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	owner, err := application.Tenants.Create(ctx, tenants.CreateInput{
		Name:      "Prime Cuts",
		Subdomain: "primecuts",
		Currency:  "KES",
		TaxRate:   10,
	})
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	product, err := application.Catalog.CreateProduct(ctx, catalog.Product{
		TenantID:  owner.ID,
		Name:      "Beef Ribeye",
		UnitPrice: 30,
		Visible:   true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	if _, err := store.CreateGateway(ctx, payment.Gateway{
		Code: "cash", Name: "Cash", Type: payment.GatewayCash, Active: true,
	}); err != nil {
		t.Fatalf("create gateway: %v", err)
	}
	if _, err := store.CreateMethod(ctx, payment.Method{
		TenantID: owner.ID, GatewayCode: "cash", DisplayName: "Cash on pickup", Enabled: true,
	}); err != nil {
		t.Fatalf("create method: %v", err)
	}

	handler, err := NewHandler(application, nil, Config{AuthSecret: testSecret}, log)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return &fixture{handler: handler, app: application, store: store, tenant: owner, product: product}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Tenant-ID", f.tenant.ID)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func TestStorefrontOrderFlow(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/health", nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("health status = %d", resp.Code)
	}

	resp = f.do(t, http.MethodGet, "/store/features", nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("features status = %d", resp.Code)
	}
	var features map[string]bool
	if err := json.Unmarshal(resp.Body.Bytes(), &features); err != nil {
		t.Fatalf("unmarshal features: %v", err)
	}
	if !features[tenant.FeatureModule] {
		t.Fatalf("expected module feature on, got %v", features)
	}

	resp = f.do(t, http.MethodGet, "/store/products", nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("products status = %d", resp.Code)
	}

	resp = f.do(t, http.MethodPost, "/store/orders", map[string]interface{}{
		"customer_name":  "Jane Doe",
		"customer_phone": "0700111222",
		"items": []map[string]interface{}{
			{"product_id": f.product.ID, "qty": 2},
		},
	}, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create order status = %d: %s", resp.Code, resp.Body.String())
	}
	var created map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal order: %v", err)
	}
	orderID := created["ID"].(string)
	// 2 x 30 plus 10% tax.
	if total := created["GrandTotal"].(float64); total != 66 {
		t.Fatalf("grand total = %v, want 66", total)
	}

	resp = f.do(t, http.MethodGet, "/store/orders/"+orderID+"?phone=0700111222", nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("get order status = %d", resp.Code)
	}
	resp = f.do(t, http.MethodGet, "/store/orders/"+orderID+"?phone=0711999999", nil, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("wrong phone status = %d, want 404", resp.Code)
	}
	// The phone only gates the lookup when supplied.
	resp = f.do(t, http.MethodGet, "/store/orders/"+orderID, nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("phoneless lookup status = %d, want 200", resp.Code)
	}

	resp = f.do(t, http.MethodGet, "/store/orders?phone=0700111222", nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("history status = %d", resp.Code)
	}
	var history struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if history.Total != 1 {
		t.Fatalf("history total = %d, want 1", history.Total)
	}

	resp = f.do(t, http.MethodGet, "/store/payment-methods", nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("payment methods status = %d", resp.Code)
	}

	resp = f.do(t, http.MethodPost, "/store/orders/"+orderID+"/pay", map[string]interface{}{
		"gateway": "cash",
		"phone":   "0700111222",
	}, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("pay status = %d: %s", resp.Code, resp.Body.String())
	}

	resp = f.do(t, http.MethodPost, "/store/orders/"+orderID+"/cancel", map[string]interface{}{
		"phone": "0700111222",
	}, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("cancel status = %d: %s", resp.Code, resp.Body.String())
	}
	var cancelled map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &cancelled); err != nil {
		t.Fatalf("unmarshal cancelled: %v", err)
	}
	if cancelled["Status"] != "Cancelled" {
		t.Fatalf("status = %v, want Cancelled", cancelled["Status"])
	}
	if cancelled["CancellationReason"] != "Cancelled by customer" {
		t.Fatalf("reason = %v", cancelled["CancellationReason"])
	}
}

func orderInput(productID string) orders.CreateInput {
	return orders.CreateInput{
		CustomerName:  "Jane Doe",
		CustomerPhone: "0700111222",
		Items:         []orders.ItemInput{{ProductID: productID, Qty: 1}},
	}
}

func TestStorefrontUnknownTenant(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/store/products", nil)
	req.Header.Set("X-Tenant-ID", "999")
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}

func TestStorefrontResolvesSubdomain(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/store/features", nil)
	req.Host = "primecuts.butchery.example:8080"
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.Code, resp.Body.String())
	}
}

func TestPaymentWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.store.CreateGateway(ctx, payment.Gateway{
		Code: "mpesa", Name: "M-Pesa", Type: payment.GatewayMobileMoney,
		Active: true, WebhookSecret: "whsec",
	}); err != nil {
		t.Fatalf("create gateway: %v", err)
	}

	o, err := f.app.Orders.Create(ctx, f.tenant.ID, orderInput(f.product.ID))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	tx, err := f.store.CreateTransaction(ctx, payment.Transaction{
		TenantID: f.tenant.ID, OrderID: o.ID, GatewayCode: "mpesa",
		Amount: o.GrandTotal, Status: payment.TxPending, InitiatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	payload := []byte(fmt.Sprintf(`{"transaction_id":%q,"status":"success","reference":"MP-77"}`, tx.ID))
	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/mpesa", bytes.NewReader(payload))
	req.Header.Set("X-Webhook-Signature", signature)
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("webhook status = %d: %s", resp.Code, resp.Body.String())
	}

	settled, err := f.store.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if settled.Status != payment.TxCompleted {
		t.Fatalf("transaction status = %q, want Completed", settled.Status)
	}
	paid, err := f.store.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if paid.PaymentStatus != "Paid" {
		t.Fatalf("order payment status = %q, want Paid", paid.PaymentStatus)
	}

	// Bad signature is rejected.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/payments/mpesa", bytes.NewReader(payload))
	req.Header.Set("X-Webhook-Signature", "deadbeef")
	resp = httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad signature status = %d, want 400", resp.Code)
	}
}

func TestVerifyPaymentEndpoint(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/store/orders", map[string]interface{}{
		"customer_name":  "Jane Doe",
		"customer_phone": "0700111222",
		"items": []map[string]interface{}{
			{"product_id": f.product.ID, "qty": 1},
		},
	}, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create order status = %d: %s", resp.Code, resp.Body.String())
	}
	var created map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal order: %v", err)
	}
	orderID := created["ID"].(string)

	resp = f.do(t, http.MethodPost, "/store/orders/"+orderID+"/pay", map[string]interface{}{
		"gateway": "cash",
		"phone":   "0700111222",
	}, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("pay status = %d: %s", resp.Code, resp.Body.String())
	}
	var paid struct {
		Transaction struct {
			ID string
		} `json:"transaction"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &paid); err != nil {
		t.Fatalf("unmarshal payment: %v", err)
	}

	resp = f.do(t, http.MethodPost, "/store/orders/"+orderID+"/verify-payment", map[string]interface{}{
		"transaction_id": paid.Transaction.ID,
	}, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("verify status = %d: %s", resp.Code, resp.Body.String())
	}
	var verified map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &verified); err != nil {
		t.Fatalf("unmarshal verification: %v", err)
	}
	if verified["Status"] != "Pending" {
		t.Fatalf("transaction status = %v, want Pending", verified["Status"])
	}

	// A transaction from another order is invisible.
	resp = f.do(t, http.MethodPost, "/store/orders/other-order/verify-payment", map[string]interface{}{
		"transaction_id": paid.Transaction.ID,
	}, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("cross-order verify status = %d, want 404", resp.Code)
	}
}

func TestPlatformTenantProvisioning(t *testing.T) {
	f := newFixture(t)
	handler, err := NewHandler(f.app, nil, Config{
		AuthSecret:    testSecret,
		PlatformToken: "platform-secret",
	}, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"name":           "Kalingalinga Meats",
		"subdomain":      "kalingalinga",
		"business_type":  "Retail",
		"admin_email":    "owner@kalingalinga.example",
		"admin_name":     "Owner",
		"admin_password": "first-password",
	})

	req := httptest.NewRequest(http.MethodPost, "/platform/tenants", bytes.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("tokenless status = %d, want 403", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/platform/tenants", bytes.NewReader(body))
	req.Header.Set("X-Platform-Token", "platform-secret")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("provision status = %d: %s", resp.Code, resp.Body.String())
	}
	var provisioned struct {
		Tenant struct {
			ID       string
			Currency string
		} `json:"tenant"`
		Admin struct {
			Email string
			Role  string
		} `json:"admin"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &provisioned); err != nil {
		t.Fatalf("unmarshal provisioning: %v", err)
	}
	if provisioned.Tenant.ID == "" || provisioned.Tenant.Currency != "ZMW" {
		t.Fatalf("tenant = %+v, want an ID and ZMW default currency", provisioned.Tenant)
	}
	if provisioned.Admin.Email != "owner@kalingalinga.example" || provisioned.Admin.Role != "admin" {
		t.Fatalf("admin = %+v", provisioned.Admin)
	}

	// The new admin can sign in immediately.
	resp = httptest.NewRecorder()
	loginBody, _ := json.Marshal(map[string]string{
		"email":    "owner@kalingalinga.example",
		"password": "first-password",
	})
	req = httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(loginBody))
	req.Header.Set("X-Tenant-ID", provisioned.Tenant.ID)
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/platform/tenants", nil)
	req.Header.Set("X-Platform-Token", "platform-secret")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", resp.Code, resp.Body.String())
	}
	var list []map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("tenant count = %d, want 2", len(list))
	}
}

func TestPlatformDisabledWithoutToken(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/platform/tenants", nil)
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}
