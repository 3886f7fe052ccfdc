package reports

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/maxnate/infinit-butchery/internal/app/domain/catalog"
	"github.com/maxnate/infinit-butchery/internal/app/domain/order"
	"github.com/maxnate/infinit-butchery/internal/app/storage/memory"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	log := logger.NewDefault("reports-test")
	log.SetOutput(io.Discard)
	store := memory.New()
	return New(store, store, log), store
}

func seedOrder(t *testing.T, store *memory.Store, o order.Order) order.Order {
	t.Helper()
	o.TenantID = "t1"
	created, err := store.CreateOrder(context.Background(), o)
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return created
}

func TestDashboardCounts(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := store.CreateProduct(ctx, catalog.Product{TenantID: "t1", Name: "Ribeye", Visible: true, UnitPrice: 30}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := store.CreateProduct(ctx, catalog.Product{TenantID: "t1", Name: "Offcuts", Visible: false, UnitPrice: 5}); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	seedOrder(t, store, order.Order{
		Type: order.TypePickup, Status: order.StatusPending,
		PaymentStatus: order.PaymentUnpaid, GrandTotal: 50,
	})
	seedOrder(t, store, order.Order{
		Type: order.TypeDelivery, Status: order.StatusConfirmed,
		PaymentStatus: order.PaymentPaid, GrandTotal: 120,
	})
	seedOrder(t, store, order.Order{
		Type: order.TypePickup, Status: order.StatusCompleted,
		PaymentStatus: order.PaymentPaid, GrandTotal: 30,
	})
	seedOrder(t, store, order.Order{
		Type: order.TypePickup, Status: order.StatusCancelled,
		PaymentStatus: order.PaymentUnpaid, GrandTotal: 99,
	})

	d, err := svc.Dashboard(ctx, "t1")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.TodayOrders != 4 {
		t.Fatalf("today orders = %d, want 4", d.TodayOrders)
	}
	if d.TodayRevenue != 150 {
		t.Fatalf("today revenue = %v, want 150", d.TodayRevenue)
	}
	if d.PendingOrders != 1 {
		t.Fatalf("pending = %d, want 1", d.PendingOrders)
	}
	if d.ActiveOrders != 2 {
		t.Fatalf("active = %d, want 2", d.ActiveOrders)
	}
	if d.UnpaidOrders != 1 {
		t.Fatalf("unpaid = %d, want 1 (cancelled excluded)", d.UnpaidOrders)
	}
	if d.ActiveProducts != 1 {
		t.Fatalf("active products = %d, want 1 (hidden excluded)", d.ActiveProducts)
	}
	if len(d.Recent) != 4 {
		t.Fatalf("recent = %d orders, want 4", len(d.Recent))
	}
}

func TestSummarize(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seedOrder(t, store, order.Order{Type: order.TypePickup, Status: order.StatusCompleted, PaymentStatus: order.PaymentPaid, GrandTotal: 100})
	seedOrder(t, store, order.Order{Type: order.TypeDelivery, Status: order.StatusCompleted, PaymentStatus: order.PaymentPaid, GrandTotal: 200})
	seedOrder(t, store, order.Order{Type: order.TypePickup, Status: order.StatusCancelled, GrandTotal: 500})
	seedOrder(t, store, order.Order{Type: order.TypePickup, Status: order.StatusCompleted, PaymentStatus: order.PaymentRefunded, GrandTotal: 80})

	now := time.Now().UTC()
	sum, err := svc.Summarize(ctx, "t1", now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Orders != 4 || sum.Cancelled != 1 {
		t.Fatalf("orders/cancelled = %d/%d, want 4/1", sum.Orders, sum.Cancelled)
	}
	if sum.Revenue != 300 {
		t.Fatalf("revenue = %v, want 300", sum.Revenue)
	}
	if sum.AverageOrder != 150 {
		t.Fatalf("average = %v, want 150", sum.AverageOrder)
	}
	if sum.DeliveryOrders != 1 || sum.PickupOrders != 3 {
		t.Fatalf("delivery/pickup = %d/%d, want 1/3", sum.DeliveryOrders, sum.PickupOrders)
	}
	if sum.RefundedRevenue != 80 {
		t.Fatalf("refunded = %v, want 80", sum.RefundedRevenue)
	}
	day := now.Format("2006-01-02")
	if sum.RevenueByDay[day] != 300 {
		t.Fatalf("revenue for %s = %v, want 300", day, sum.RevenueByDay[day])
	}
}

func TestTopProducts(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seedOrder(t, store, order.Order{
		Status: order.StatusCompleted, PaymentStatus: order.PaymentPaid,
		Items: []order.Item{
			{ProductID: "ribeye", ProductName: "Ribeye", Qty: 1, WeightKG: 1.5, Amount: 45},
			{ProductID: "pack", ProductName: "Sausage Pack", Qty: 2, Amount: 16},
		},
	})
	seedOrder(t, store, order.Order{
		Status: order.StatusConfirmed, PaymentStatus: order.PaymentPaid,
		Items: []order.Item{
			{ProductID: "ribeye", ProductName: "Ribeye", Qty: 2, WeightKG: 1, Amount: 60},
		},
	})
	// Cancelled orders must not count.
	seedOrder(t, store, order.Order{
		Status: order.StatusCancelled,
		Items:  []order.Item{{ProductID: "ribeye", ProductName: "Ribeye", Qty: 10, Amount: 300}},
	})

	now := time.Now().UTC()
	top, err := svc.TopProducts(ctx, "t1", now.Add(-time.Hour), now.Add(time.Hour), 5)
	if err != nil {
		t.Fatalf("top products: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("len = %d, want 2", len(top))
	}
	if top[0].ProductID != "ribeye" || top[0].Revenue != 105 {
		t.Fatalf("top[0] = %+v", top[0])
	}
	if top[0].WeightKG != 3.5 {
		t.Fatalf("weight = %v, want 3.5", top[0].WeightKG)
	}
	if top[1].ProductID != "pack" {
		t.Fatalf("top[1] = %+v", top[1])
	}
}

func TestLastWeek(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seedOrder(t, store, order.Order{
		Status: order.StatusCompleted, PaymentStatus: order.PaymentPaid, GrandTotal: 75,
		Items: []order.Item{{ProductID: "pack", ProductName: "Sausage Pack", Qty: 1, Amount: 75}},
	})

	report, err := svc.LastWeek(ctx, "t1")
	if err != nil {
		t.Fatalf("last week: %v", err)
	}
	if report.Summary.Revenue != 75 {
		t.Fatalf("revenue = %v, want 75", report.Summary.Revenue)
	}
	if len(report.Top) != 1 {
		t.Fatalf("top = %+v", report.Top)
	}
}
