package order

import "time"

// Type distinguishes collection from delivery orders.
type Type string

const (
	TypePickup   Type = "Pickup"
	TypeDelivery Type = "Delivery"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending        Status = "Pending"
	StatusConfirmed      Status = "Confirmed"
	StatusPreparing      Status = "Preparing"
	StatusReady          Status = "Ready"
	StatusOutForDelivery Status = "Out for Delivery"
	StatusCompleted      Status = "Completed"
	StatusCancelled      Status = "Cancelled"
)

// PaymentStatus is the settlement state of an order.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "Unpaid"
	PaymentPaid     PaymentStatus = "Paid"
	PaymentFailed   PaymentStatus = "Failed"
	PaymentRefunded PaymentStatus = "Refunded"
)

// transitions lists the statuses staff may move an order into.
var transitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady, StatusCancelled},
	StatusReady:          {StatusOutForDelivery, StatusCompleted, StatusCancelled},
	StatusOutForDelivery: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Item is a single order line. Rate is the resolved price at order time:
// price-per-kg times weight for weight-priced products, unit price otherwise.
type Item struct {
	ProductID   string
	ProductName string
	Qty         float64
	WeightKG    float64
	Rate        float64
	Amount      float64
	Notes       string
}

// Order is a customer purchase, pickup or delivery.
type Order struct {
	ID       string
	TenantID string
	Type     Type

	CustomerName  string
	CustomerPhone string
	CustomerEmail string

	Items       []Item
	Subtotal    float64
	Discount    float64
	DeliveryFee float64
	TaxAmount   float64
	GrandTotal  float64

	Status        Status
	PaymentStatus PaymentStatus

	DeliveryZoneID   string
	DeliveryAddress  string
	DeliveryDate     time.Time
	DeliveryTimeSlot string
	PickupDate       time.Time
	PickupTime       string

	Notes              string
	CancellationReason string
	CompletedAt        time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StatusEvent is published to realtime subscribers when an order changes
// status.
type StatusEvent struct {
	OrderID       string        `json:"order_id"`
	TenantID      string        `json:"-"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CustomerName  string        `json:"customer"`
	At            time.Time     `json:"at"`
}
