package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/maxnate/infinit-butchery/internal/app/domain/order"
	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestCreateTenantAssignsID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO tenants").WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := store.CreateTenant(context.Background(), tenant.Tenant{
		Name:         "Prime Cuts",
		BusinessType: tenant.BusinessRetail,
		Features:     tenant.DefaultFeatures(tenant.BusinessRetail),
	})
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetTenantNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM tenants").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := store.GetTenant(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing tenant")
	}
}

func TestGetTenantDecodesFeatures(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "name", "subdomain", "currency", "tax_rate", "business_type", "features", "created_at", "updated_at",
	}).AddRow("t1", "Prime Cuts", "prime", "USD", 7.5, "Retail",
		[]byte(`{"enable_butchery_module":true,"weight_pricing":true}`), now, now)
	mock.ExpectQuery("SELECT \\* FROM tenants").WillReturnRows(rows)

	got, err := store.GetTenant(context.Background(), "t1")
	if err != nil {
		t.Fatalf("get tenant: %v", err)
	}
	if !got.Features[tenant.FeatureWeightPricing] {
		t.Fatal("expected weight_pricing enabled")
	}
	if got.TaxRate != 7.5 {
		t.Fatalf("tax rate = %v, want 7.5", got.TaxRate)
	}
}

func TestUpdateOrderNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE orders").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateOrder(context.Background(), order.Order{ID: "missing"})
	if err == nil {
		t.Fatal("expected error for missing order")
	}
}

func TestListOrdersCountsBeforePaging(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM orders").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery("SELECT \\* FROM orders").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "order_type", "customer_name", "customer_phone",
			"customer_email", "items", "subtotal", "discount", "delivery_fee", "tax_amount", "grand_total",
			"status", "payment_status", "delivery_zone_id", "delivery_address", "delivery_date",
			"delivery_time_slot", "pickup_date", "pickup_time", "notes", "cancellation_reason",
			"completed_at", "created_at", "updated_at"}))

	_, total, err := store.ListOrders(context.Background(), "t1", storage.OrderFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if total != 42 {
		t.Fatalf("total = %d, want 42", total)
	}
}
