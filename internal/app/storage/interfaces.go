package storage

import (
	"context"
	"time"

	"github.com/maxnate/infinit-butchery/internal/app/domain/catalog"
	"github.com/maxnate/infinit-butchery/internal/app/domain/delivery"
	"github.com/maxnate/infinit-butchery/internal/app/domain/order"
	"github.com/maxnate/infinit-butchery/internal/app/domain/payment"
	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
)

// TenantStore persists tenants and their staff users.
type TenantStore interface {
	CreateTenant(ctx context.Context, t tenant.Tenant) (tenant.Tenant, error)
	UpdateTenant(ctx context.Context, t tenant.Tenant) (tenant.Tenant, error)
	GetTenant(ctx context.Context, id string) (tenant.Tenant, error)
	GetTenantBySubdomain(ctx context.Context, subdomain string) (tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)

	CreateStaffUser(ctx context.Context, u tenant.StaffUser) (tenant.StaffUser, error)
	UpdateStaffUser(ctx context.Context, u tenant.StaffUser) (tenant.StaffUser, error)
	GetStaffUserByEmail(ctx context.Context, tenantID, email string) (tenant.StaffUser, error)
	ListStaffUsers(ctx context.Context, tenantID string) ([]tenant.StaffUser, error)
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID  string
	Search      string
	VisibleOnly bool
	// InStockOnly is applied by the catalog service, not the stores.
	InStockOnly bool
	Offset      int
	Limit       int
}

// CatalogStore persists categories, products, warehouses, stock and batches.
type CatalogStore interface {
	CreateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error)
	UpdateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error)
	GetCategory(ctx context.Context, id string) (catalog.Category, error)
	ListCategories(ctx context.Context, tenantID string, activeOnly bool) ([]catalog.Category, error)

	CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error)
	UpdateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error)
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	GetProductByCode(ctx context.Context, tenantID, code string) (catalog.Product, error)
	ListProducts(ctx context.Context, tenantID string, filter ProductFilter) ([]catalog.Product, error)
	CountProductsByCategory(ctx context.Context, tenantID, categoryID string) (int, error)

	CreateWarehouse(ctx context.Context, w catalog.Warehouse) (catalog.Warehouse, error)
	ListWarehouses(ctx context.Context, tenantID string) ([]catalog.Warehouse, error)
	SetStock(ctx context.Context, warehouseID, productID string, qty float64) error
	ListStockByProduct(ctx context.Context, tenantID, productID string) ([]catalog.StockLevel, error)
	ListStock(ctx context.Context, tenantID string) ([]catalog.StockLevel, error)

	CreateBatch(ctx context.Context, b catalog.Batch) (catalog.Batch, error)
	UpdateBatch(ctx context.Context, b catalog.Batch) (catalog.Batch, error)
	GetBatchByCode(ctx context.Context, tenantID, code string) (catalog.Batch, error)
	ListBatches(ctx context.Context, tenantID string) ([]catalog.Batch, error)
	ListExpiringBatches(ctx context.Context, tenantID string, before time.Time) ([]catalog.Batch, error)
}

// OrderFilter narrows order listings. A zero Limit returns all matches.
type OrderFilter struct {
	Status        order.Status
	Type          order.Type
	PaymentStatus order.PaymentStatus
	Phone         string
	CreatedBefore time.Time
	DateFrom      time.Time
	DateTo        time.Time
	Offset        int
	Limit         int
}

// OrderStore persists orders. ListOrders returns the filtered page and the
// total match count.
type OrderStore interface {
	CreateOrder(ctx context.Context, o order.Order) (order.Order, error)
	UpdateOrder(ctx context.Context, o order.Order) (order.Order, error)
	GetOrder(ctx context.Context, id string) (order.Order, error)
	ListOrders(ctx context.Context, tenantID string, filter OrderFilter) ([]order.Order, int, error)
}

// DeliveryStore persists delivery zones.
type DeliveryStore interface {
	CreateZone(ctx context.Context, z delivery.Zone) (delivery.Zone, error)
	UpdateZone(ctx context.Context, z delivery.Zone) (delivery.Zone, error)
	GetZone(ctx context.Context, id string) (delivery.Zone, error)
	ListZones(ctx context.Context, tenantID string, activeOnly bool) ([]delivery.Zone, error)
}

// PaymentStore persists gateways, tenant payment methods and transactions.
type PaymentStore interface {
	CreateGateway(ctx context.Context, g payment.Gateway) (payment.Gateway, error)
	UpdateGateway(ctx context.Context, g payment.Gateway) (payment.Gateway, error)
	GetGatewayByCode(ctx context.Context, code string) (payment.Gateway, error)
	ListGateways(ctx context.Context, activeOnly bool) ([]payment.Gateway, error)

	CreateMethod(ctx context.Context, m payment.Method) (payment.Method, error)
	UpdateMethod(ctx context.Context, m payment.Method) (payment.Method, error)
	GetMethod(ctx context.Context, tenantID, gatewayCode string) (payment.Method, error)
	ListMethods(ctx context.Context, tenantID string, enabledOnly bool) ([]payment.Method, error)

	CreateTransaction(ctx context.Context, tx payment.Transaction) (payment.Transaction, error)
	UpdateTransaction(ctx context.Context, tx payment.Transaction) (payment.Transaction, error)
	GetTransaction(ctx context.Context, id string) (payment.Transaction, error)
	ListTransactionsByOrder(ctx context.Context, orderID string) ([]payment.Transaction, error)
	ListPendingTransactions(ctx context.Context) ([]payment.Transaction, error)
	DeleteFailedTransactionsBefore(ctx context.Context, cutoff time.Time) (int, error)
}
