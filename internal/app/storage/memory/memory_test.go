package memory

import (
	"context"
	"testing"
	"time"

	"github.com/maxnate/infinit-butchery/internal/app/domain/order"
	"github.com/maxnate/infinit-butchery/internal/app/domain/payment"
	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
)

func TestTenantSubdomainUniqueness(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateTenant(ctx, tenant.Tenant{Name: "A", Subdomain: "prime"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateTenant(ctx, tenant.Tenant{Name: "B", Subdomain: "prime"}); err == nil {
		t.Fatal("expected duplicate subdomain to be rejected")
	}

	got, err := store.GetTenantBySubdomain(ctx, "prime")
	if err != nil {
		t.Fatalf("get by subdomain: %v", err)
	}
	if got.Name != "A" {
		t.Fatalf("name = %q, want A", got.Name)
	}
}

func TestTenantFeaturesAreCopied(t *testing.T) {
	store := New()
	ctx := context.Background()

	features := map[string]bool{tenant.FeatureModule: true}
	created, err := store.CreateTenant(ctx, tenant.Tenant{Name: "A", Features: features})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Mutating the caller's map must not leak into the store.
	features[tenant.FeatureModule] = false
	got, err := store.GetTenant(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Features[tenant.FeatureModule] {
		t.Fatal("stored features were mutated through the caller's map")
	}
}

func TestListOrdersFiltersAndPaginates(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		status := order.StatusPending
		if i%2 == 1 {
			status = order.StatusCompleted
		}
		if _, err := store.CreateOrder(ctx, order.Order{TenantID: "t1", Status: status}); err != nil {
			t.Fatalf("create order: %v", err)
		}
	}
	if _, err := store.CreateOrder(ctx, order.Order{TenantID: "t2", Status: order.StatusPending}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	pending, total, err := store.ListOrders(ctx, "t1", storage.OrderFilter{Status: order.StatusPending})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(pending) != 3 {
		t.Fatalf("pending = %d (total %d), want 3", len(pending), total)
	}

	page, total, err := store.ListOrders(ctx, "t1", storage.OrderFilter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(page) != 1 {
		t.Fatalf("page = %d, want 1", len(page))
	}
}

func TestDeleteFailedTransactionsBefore(t *testing.T) {
	store := New()
	ctx := context.Background()

	old, err := store.CreateTransaction(ctx, payment.Transaction{TenantID: "t1", OrderID: "o1", Status: payment.TxFailed})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateTransaction(ctx, payment.Transaction{TenantID: "t1", OrderID: "o2", Status: payment.TxCompleted}); err != nil {
		t.Fatalf("create: %v", err)
	}

	deleted, err := store.DeleteFailedTransactionsBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if _, err := store.GetTransaction(ctx, old.ID); err == nil {
		t.Fatal("expected failed transaction to be gone")
	}
}
