// Package reports aggregates order data into dashboards and period summaries.
package reports

import (
	"context"
	"sort"
	"time"

	"github.com/maxnate/infinit-butchery/internal/app/domain/order"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

// Service computes reports from stored orders and the catalog.
type Service struct {
	orders  storage.OrderStore
	catalog storage.CatalogStore
	log     *logger.Logger
	now     func() time.Time
}

// New creates the report service.
func New(orders storage.OrderStore, catalog storage.CatalogStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reports")
	}
	return &Service{orders: orders, catalog: catalog, log: log, now: time.Now}
}

// Dashboard is the admin landing page snapshot.
type Dashboard struct {
	TodayOrders    int
	TodayRevenue   float64
	PendingOrders  int
	ActiveOrders   int
	WeekOrders     int
	WeekRevenue    float64
	UnpaidOrders   int
	ActiveProducts int
	Recent         []order.Order
}

// Dashboard summarises today and the trailing seven days. Revenue counts paid
// orders only, and Recent carries the ten newest orders.
func (s *Service) Dashboard(ctx context.Context, tenantID string) (Dashboard, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := dayStart.AddDate(0, 0, -6)

	week, _, err := s.orders.ListOrders(ctx, tenantID, storage.OrderFilter{DateFrom: weekStart})
	if err != nil {
		return Dashboard{}, err
	}

	var d Dashboard
	for _, o := range week {
		paid := o.PaymentStatus == order.PaymentPaid
		if !o.CreatedAt.Before(dayStart) {
			d.TodayOrders++
			if paid {
				d.TodayRevenue += o.GrandTotal
			}
		}
		d.WeekOrders++
		if paid {
			d.WeekRevenue += o.GrandTotal
		}
		switch o.Status {
		case order.StatusPending:
			d.PendingOrders++
			d.ActiveOrders++
		case order.StatusConfirmed, order.StatusPreparing, order.StatusReady, order.StatusOutForDelivery:
			d.ActiveOrders++
		}
		if o.PaymentStatus == order.PaymentUnpaid && o.Status != order.StatusCancelled {
			d.UnpaidOrders++
		}
	}

	recent, _, err := s.orders.ListOrders(ctx, tenantID, storage.OrderFilter{Limit: 10})
	if err != nil {
		return Dashboard{}, err
	}
	d.Recent = recent

	visible, err := s.catalog.ListProducts(ctx, tenantID, storage.ProductFilter{VisibleOnly: true})
	if err != nil {
		return Dashboard{}, err
	}
	d.ActiveProducts = len(visible)
	return d, nil
}

// Summary is an aggregate over a date range. RevenueByDay is keyed by
// YYYY-MM-DD and counts paid orders.
type Summary struct {
	From            time.Time
	To              time.Time
	Orders          int
	Revenue         float64
	AverageOrder    float64
	Cancelled       int
	DeliveryOrders  int
	PickupOrders    int
	RefundedRevenue float64
	RevenueByDay    map[string]float64
}

// Summarize aggregates the tenant's orders between from (inclusive) and to
// (exclusive).
func (s *Service) Summarize(ctx context.Context, tenantID string, from, to time.Time) (Summary, error) {
	matches, _, err := s.orders.ListOrders(ctx, tenantID, storage.OrderFilter{DateFrom: from, DateTo: to})
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{From: from, To: to, RevenueByDay: make(map[string]float64)}
	var paidCount int
	for _, o := range matches {
		sum.Orders++
		switch o.Type {
		case order.TypeDelivery:
			sum.DeliveryOrders++
		case order.TypePickup:
			sum.PickupOrders++
		}
		if o.Status == order.StatusCancelled {
			sum.Cancelled++
			continue
		}
		switch o.PaymentStatus {
		case order.PaymentPaid:
			sum.Revenue += o.GrandTotal
			sum.RevenueByDay[o.CreatedAt.UTC().Format("2006-01-02")] += o.GrandTotal
			paidCount++
		case order.PaymentRefunded:
			sum.RefundedRevenue += o.GrandTotal
		}
	}
	if paidCount > 0 {
		sum.AverageOrder = sum.Revenue / float64(paidCount)
	}
	return sum, nil
}

// ProductSales is one product's aggregated sales.
type ProductSales struct {
	ProductID   string
	ProductName string
	Qty         float64
	WeightKG    float64
	Revenue     float64
}

// TopProducts ranks products by quantity sold over the period, revenue
// breaking ties. Cancelled orders are excluded.
func (s *Service) TopProducts(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]ProductSales, error) {
	matches, _, err := s.orders.ListOrders(ctx, tenantID, storage.OrderFilter{DateFrom: from, DateTo: to})
	if err != nil {
		return nil, err
	}

	byProduct := make(map[string]*ProductSales)
	for _, o := range matches {
		if o.Status == order.StatusCancelled {
			continue
		}
		for _, item := range o.Items {
			agg, ok := byProduct[item.ProductID]
			if !ok {
				agg = &ProductSales{ProductID: item.ProductID, ProductName: item.ProductName}
				byProduct[item.ProductID] = agg
			}
			agg.Qty += item.Qty
			agg.WeightKG += item.WeightKG * item.Qty
			agg.Revenue += item.Amount
		}
	}

	ranked := make([]ProductSales, 0, len(byProduct))
	for _, agg := range byProduct {
		ranked = append(ranked, *agg)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Qty != ranked[j].Qty {
			return ranked[i].Qty > ranked[j].Qty
		}
		return ranked[i].Revenue > ranked[j].Revenue
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// WeeklyReport bundles last week's summary with its top sellers.
type WeeklyReport struct {
	Summary Summary
	Top     []ProductSales
}

// LastWeek reports on the seven days ending now.
func (s *Service) LastWeek(ctx context.Context, tenantID string) (WeeklyReport, error) {
	to := s.now().UTC()
	from := to.AddDate(0, 0, -7)
	sum, err := s.Summarize(ctx, tenantID, from, to)
	if err != nil {
		return WeeklyReport{}, err
	}
	top, err := s.TopProducts(ctx, tenantID, from, to, 10)
	if err != nil {
		return WeeklyReport{}, err
	}
	return WeeklyReport{Summary: sum, Top: top}, nil
}
