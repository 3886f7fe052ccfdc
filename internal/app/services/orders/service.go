// Package orders implements order intake, pricing and the fulfilment status
// machine.
package orders

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/maxnate/infinit-butchery/internal/app/domain/order"
	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
	"github.com/maxnate/infinit-butchery/internal/app/services/deliverysvc"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

// EventPublisher receives order status events for realtime subscribers. A nil
// publisher is ignored.
type EventPublisher interface {
	PublishOrderEvent(ev order.StatusEvent)
}

// Service provides order operations.
type Service struct {
	store    storage.OrderStore
	catalog  storage.CatalogStore
	tenants  storage.TenantStore
	delivery *deliverysvc.Service
	events   EventPublisher
	log      *logger.Logger
}

// New creates the order service.
func New(store storage.OrderStore, catalog storage.CatalogStore, tenants storage.TenantStore,
	delivery *deliverysvc.Service, events EventPublisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("orders")
	}
	return &Service{store: store, catalog: catalog, tenants: tenants, delivery: delivery, events: events, log: log}
}

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID string
	Qty       float64
	WeightKG  float64
	Notes     string
}

// CreateInput carries a new order request.
type CreateInput struct {
	Type          order.Type
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Items         []ItemInput
	Discount      float64

	DeliveryZoneID   string
	DeliveryAddress  string
	DeliveryDate     time.Time
	DeliveryTimeSlot string
	PickupDate       time.Time
	PickupTime       string

	Notes string
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func midnightUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Create prices the requested items, applies the tenant tax rate and the
// delivery fee, and stores the order in Pending status.
func (s *Service) Create(ctx context.Context, tenantID string, in CreateInput) (order.Order, error) {
	t, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return order.Order{}, err
	}
	if !t.Features[tenant.FeatureModule] {
		return order.Order{}, fmt.Errorf("ordering is not enabled for this tenant")
	}
	if in.CustomerName = strings.TrimSpace(in.CustomerName); in.CustomerName == "" {
		return order.Order{}, fmt.Errorf("customer name is required")
	}
	if in.CustomerPhone = strings.TrimSpace(in.CustomerPhone); in.CustomerPhone == "" {
		return order.Order{}, fmt.Errorf("customer phone is required")
	}
	if len(in.Items) == 0 {
		return order.Order{}, fmt.Errorf("order needs at least one item")
	}
	if in.Type == "" {
		in.Type = order.TypePickup
	}
	if in.Type != order.TypePickup && in.Type != order.TypeDelivery {
		return order.Order{}, fmt.Errorf("unknown order type %q", in.Type)
	}
	if in.Discount < 0 {
		return order.Order{}, fmt.Errorf("discount cannot be negative")
	}

	weightPricing := t.Features[tenant.FeatureWeightPricing]
	items := make([]order.Item, 0, len(in.Items))
	var subtotal float64
	for _, req := range in.Items {
		item, err := s.priceItem(ctx, tenantID, req, weightPricing)
		if err != nil {
			return order.Order{}, err
		}
		items = append(items, item)
		subtotal += item.Amount
	}
	subtotal = round2(subtotal)
	if in.Discount > subtotal {
		return order.Order{}, fmt.Errorf("discount exceeds order subtotal")
	}

	var deliveryFee float64
	if in.Type == order.TypeDelivery {
		if in.DeliveryZoneID == "" {
			return order.Order{}, fmt.Errorf("delivery orders need a delivery zone")
		}
		if strings.TrimSpace(in.DeliveryAddress) == "" {
			return order.Order{}, fmt.Errorf("delivery orders need an address")
		}
		zone, err := s.delivery.CheckZone(ctx, tenantID, in.DeliveryZoneID, subtotal)
		if err != nil {
			return order.Order{}, err
		}
		deliveryFee = zone.Fee
		if in.DeliveryDate.IsZero() {
			in.DeliveryDate = midnightUTC(time.Now().UTC().AddDate(0, 0, 1))
		}
	} else if in.PickupDate.IsZero() {
		in.PickupDate = midnightUTC(time.Now().UTC())
	}

	taxable := subtotal - in.Discount + deliveryFee
	taxAmount := round2(taxable * t.TaxRate / 100)
	grandTotal := round2(taxable + taxAmount)

	created, err := s.store.CreateOrder(ctx, order.Order{
		TenantID:         tenantID,
		Type:             in.Type,
		CustomerName:     in.CustomerName,
		CustomerPhone:    in.CustomerPhone,
		CustomerEmail:    strings.TrimSpace(in.CustomerEmail),
		Items:            items,
		Subtotal:         subtotal,
		Discount:         round2(in.Discount),
		DeliveryFee:      deliveryFee,
		TaxAmount:        taxAmount,
		GrandTotal:       grandTotal,
		Status:           order.StatusPending,
		PaymentStatus:    order.PaymentUnpaid,
		DeliveryZoneID:   in.DeliveryZoneID,
		DeliveryAddress:  strings.TrimSpace(in.DeliveryAddress),
		DeliveryDate:     in.DeliveryDate,
		DeliveryTimeSlot: in.DeliveryTimeSlot,
		PickupDate:       in.PickupDate,
		PickupTime:       in.PickupTime,
		Notes:            in.Notes,
	})
	if err != nil {
		return order.Order{}, err
	}
	s.log.WithField("tenant_id", tenantID).
		WithField("order_id", created.ID).
		Infof("order created: %s, total %.2f %s", created.Type, created.GrandTotal, t.Currency)
	s.publish(created)
	return created, nil
}

func (s *Service) priceItem(ctx context.Context, tenantID string, req ItemInput, weightPricing bool) (order.Item, error) {
	p, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return order.Item{}, err
	}
	if p.TenantID != tenantID {
		return order.Item{}, fmt.Errorf("product %s not found", req.ProductID)
	}
	if !p.Visible {
		return order.Item{}, fmt.Errorf("product %s is not available", p.Name)
	}
	qty := req.Qty
	if qty <= 0 {
		qty = 1
	}

	item := order.Item{
		ProductID:   p.ID,
		ProductName: p.Name,
		Qty:         qty,
		Notes:       req.Notes,
	}
	// Without a weight the item falls through to standard unit pricing.
	if p.SellByWeight && weightPricing && req.WeightKG > 0 {
		item.WeightKG = req.WeightKG
		item.Rate = p.PricePerKG
		item.Amount = round2(p.PricePerKG * req.WeightKG * qty)
		return item, nil
	}

	rate := p.UnitPrice
	if rate <= 0 {
		rate = p.PricePerKG
	}
	if rate <= 0 {
		return order.Item{}, fmt.Errorf("product %s has no price", p.Name)
	}
	item.Rate = rate
	item.Amount = round2(rate * qty)
	return item, nil
}

// Get returns an order scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id string) (order.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return order.Order{}, err
	}
	if o.TenantID != tenantID {
		return order.Order{}, fmt.Errorf("order %s not found", id)
	}
	return o, nil
}

// List returns a page of the tenant's orders with the total match count.
func (s *Service) List(ctx context.Context, tenantID string, filter storage.OrderFilter) ([]order.Order, int, error) {
	return s.store.ListOrders(ctx, tenantID, filter)
}

// History returns a customer's orders by phone number, newest first.
func (s *Service) History(ctx context.Context, tenantID, phone string, offset, limit int) ([]order.Order, int, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, 0, fmt.Errorf("phone number is required")
	}
	return s.store.ListOrders(ctx, tenantID, storage.OrderFilter{Phone: phone, Offset: offset, Limit: limit})
}

// Transition moves an order to the next fulfilment status. Completed orders
// get a completion timestamp, cancellations record the reason.
func (s *Service) Transition(ctx context.Context, tenantID, id string, to order.Status, reason string) (order.Order, error) {
	o, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return order.Order{}, err
	}
	if !order.CanTransition(o.Status, to) {
		return order.Order{}, fmt.Errorf("cannot move order from %s to %s", o.Status, to)
	}
	from := o.Status
	o.Status = to
	switch to {
	case order.StatusCompleted:
		o.CompletedAt = time.Now().UTC()
	case order.StatusCancelled:
		o.CancellationReason = strings.TrimSpace(reason)
	}
	updated, err := s.store.UpdateOrder(ctx, o)
	if err != nil {
		return order.Order{}, err
	}
	s.log.WithField("tenant_id", tenantID).
		WithField("order_id", id).
		Infof("order moved %s -> %s", from, to)
	s.publish(updated)
	return updated, nil
}

// CustomerCancel cancels an order on the customer's behalf. Only orders still
// in Pending or Confirmed can be cancelled, and the phone must match.
func (s *Service) CustomerCancel(ctx context.Context, tenantID, id, phone, reason string) (order.Order, error) {
	o, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return order.Order{}, err
	}
	if o.CustomerPhone != strings.TrimSpace(phone) {
		return order.Order{}, fmt.Errorf("order %s not found", id)
	}
	if o.Status != order.StatusPending && o.Status != order.StatusConfirmed {
		return order.Order{}, fmt.Errorf("order in %s can no longer be cancelled", o.Status)
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "Cancelled by customer"
	}
	return s.Transition(ctx, tenantID, id, order.StatusCancelled, reason)
}

// MarkPaid records a successful payment and auto-confirms pending orders.
func (s *Service) MarkPaid(ctx context.Context, tenantID, id string) (order.Order, error) {
	o, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return order.Order{}, err
	}
	o.PaymentStatus = order.PaymentPaid
	if o.Status == order.StatusPending {
		o.Status = order.StatusConfirmed
	}
	updated, err := s.store.UpdateOrder(ctx, o)
	if err != nil {
		return order.Order{}, err
	}
	s.log.WithField("order_id", id).Info("order marked paid")
	s.publish(updated)
	return updated, nil
}

// SetPaymentStatus records a failed or refunded payment.
func (s *Service) SetPaymentStatus(ctx context.Context, tenantID, id string, status order.PaymentStatus) (order.Order, error) {
	o, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return order.Order{}, err
	}
	o.PaymentStatus = status
	updated, err := s.store.UpdateOrder(ctx, o)
	if err != nil {
		return order.Order{}, err
	}
	s.publish(updated)
	return updated, nil
}

// StalePending lists orders still Pending after the given age.
func (s *Service) StalePending(ctx context.Context, tenantID string, olderThan time.Duration) ([]order.Order, error) {
	matches, _, err := s.store.ListOrders(ctx, tenantID, storage.OrderFilter{
		Status:        order.StatusPending,
		CreatedBefore: time.Now().UTC().Add(-olderThan),
	})
	return matches, err
}

func (s *Service) publish(o order.Order) {
	if s.events == nil {
		return
	}
	s.events.PublishOrderEvent(order.StatusEvent{
		OrderID:       o.ID,
		TenantID:      o.TenantID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		CustomerName:  o.CustomerName,
		At:            time.Now().UTC(),
	})
}
