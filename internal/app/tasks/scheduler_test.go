package tasks

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/maxnate/infinit-butchery/internal/app/domain/catalog"
	"github.com/maxnate/infinit-butchery/internal/app/domain/payment"
	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
	"github.com/maxnate/infinit-butchery/internal/app/services/catalogsvc"
	"github.com/maxnate/infinit-butchery/internal/app/services/deliverysvc"
	"github.com/maxnate/infinit-butchery/internal/app/services/orders"
	"github.com/maxnate/infinit-butchery/internal/app/services/reports"
	"github.com/maxnate/infinit-butchery/internal/app/storage/memory"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

func newScheduler(t *testing.T) (*Scheduler, *memory.Store, tenant.Tenant) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	log := logger.NewDefault("tasks-test")
	log.SetOutput(io.Discard)

	owner, err := store.CreateTenant(ctx, tenant.Tenant{
		Name:     "Prime Cuts",
		Features: tenant.DefaultFeatures(tenant.BusinessWholesale),
	})
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	orderSvc := orders.New(store, store, store, deliverysvc.New(store, log), nil, log)
	catalogSvc := catalogsvc.New(store, store, nil, log)
	reportSvc := reports.New(store, store, log)
	return NewScheduler(store, store, orderSvc, catalogSvc, reportSvc, log), store, owner
}

func TestDailyExpiresOverdueBatchesAndPrunesTransactions(t *testing.T) {
	sched, store, owner := newScheduler(t)
	ctx := context.Background()

	if _, err := store.CreateBatch(ctx, catalog.Batch{
		TenantID: owner.ID, Code: "OLD", Status: catalog.BatchActive,
		ExpiryDate: time.Now().UTC().Add(-24 * time.Hour),
	}); err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if _, err := store.CreateBatch(ctx, catalog.Batch{
		TenantID: owner.ID, Code: "FRESH", Status: catalog.BatchActive,
		ExpiryDate: time.Now().UTC().Add(30 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("create batch: %v", err)
	}
	// Recent failed transactions survive the 90 day retention window.
	if _, err := store.CreateTransaction(ctx, payment.Transaction{
		TenantID: owner.ID, OrderID: "o1", Status: payment.TxFailed,
	}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	sched.Daily()

	expired, err := store.GetBatchByCode(ctx, owner.ID, "OLD")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if expired.Status != catalog.BatchExpired {
		t.Fatalf("status = %q, want Expired", expired.Status)
	}
	fresh, err := store.GetBatchByCode(ctx, owner.ID, "FRESH")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if fresh.Status != catalog.BatchActive {
		t.Fatalf("fresh batch status = %q, want Active", fresh.Status)
	}

	kept, err := store.ListTransactionsByOrder(ctx, "o1")
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("recent failed transaction was pruned")
	}
}

func TestSchedulerLifecycle(t *testing.T) {
	sched, _, _ := newScheduler(t)
	ctx := context.Background()

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	// Stopping again is a no-op.
	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestHourlyRunsWithoutData(t *testing.T) {
	sched, _, _ := newScheduler(t)
	sched.Hourly()
	sched.Weekly()
}
