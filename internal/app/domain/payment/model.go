package payment

import "time"

// GatewayType groups gateways for storefront display.
type GatewayType string

const (
	GatewayCash        GatewayType = "cash"
	GatewayMobileMoney GatewayType = "mobile_money"
	GatewayCard        GatewayType = "card"
	GatewayBank        GatewayType = "bank"
)

// ValidGatewayType reports whether t is a recognised gateway type.
func ValidGatewayType(t GatewayType) bool {
	switch t {
	case GatewayCash, GatewayMobileMoney, GatewayCard, GatewayBank:
		return true
	}
	return false
}

// Gateway is a payment provider definition. The handler for a gateway is
// resolved by code from the handler registry at call time.
type Gateway struct {
	ID             string
	Code           string
	Name           string
	Type           GatewayType
	Active         bool
	SandboxMode    bool
	SupportsRefund bool
	WebhookSecret  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Method is a tenant's configuration of a gateway: display, limits and
// merchant identifiers.
type Method struct {
	ID           string
	TenantID     string
	GatewayCode  string
	DisplayName  string
	Enabled      bool
	MinAmount    float64
	MaxAmount    float64
	DisplayOrder int
	MerchantID   string
	MerchantCode string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TransactionStatus is the lifecycle state of a payment attempt.
type TransactionStatus string

const (
	TxInitiated TransactionStatus = "Initiated"
	TxPending   TransactionStatus = "Pending"
	TxCompleted TransactionStatus = "Completed"
	TxFailed    TransactionStatus = "Failed"
	TxRefunded  TransactionStatus = "Refunded"
)

// Terminal reports whether the status can no longer change through
// verification.
func (s TransactionStatus) Terminal() bool {
	return s == TxCompleted || s == TxFailed || s == TxRefunded
}

// Transaction records one payment attempt against an order.
type Transaction struct {
	ID               string
	TenantID         string
	OrderID          string
	GatewayCode      string
	Amount           float64
	Currency         string
	Status           TransactionStatus
	GatewayReference string
	CustomerPhone    string
	ErrorMessage     string
	CallbackData     string
	RefundAmount     float64
	InitiatedAt      time.Time
	CompletedAt      time.Time
	RefundedAt       time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
