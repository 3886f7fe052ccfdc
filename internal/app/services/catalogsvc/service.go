// Package catalogsvc manages meat categories, products, stock and batch
// traceability.
package catalogsvc

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/maxnate/infinit-butchery/internal/app/cache"
	"github.com/maxnate/infinit-butchery/internal/app/domain/catalog"
	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

// Service provides catalog operations. The stock cache is optional.
type Service struct {
	store   storage.CatalogStore
	tenants storage.TenantStore
	stock   *cache.StockCache
	log     *logger.Logger
}

// New creates the catalog service.
func New(store storage.CatalogStore, tenants storage.TenantStore, stock *cache.StockCache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	return &Service{store: store, tenants: tenants, stock: stock, log: log}
}

var codeCleaner = regexp.MustCompile(`[^A-Z0-9]+`)

// NormalizeCode uppercases a name and collapses runs of other characters into
// single dashes, producing a stable product or category code.
func NormalizeCode(name string) string {
	code := codeCleaner.ReplaceAllString(strings.ToUpper(strings.TrimSpace(name)), "-")
	return strings.Trim(code, "-")
}

// CreateCategory validates and stores a category. A parent category must
// belong to the same tenant, and a storage temperature range must be ordered.
func (s *Service) CreateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return catalog.Category{}, fmt.Errorf("category name is required")
	}
	if c.Code == "" {
		c.Code = NormalizeCode(c.Name)
	}
	if c.ParentID != "" {
		parent, err := s.store.GetCategory(ctx, c.ParentID)
		if err != nil {
			return catalog.Category{}, fmt.Errorf("parent category: %w", err)
		}
		if parent.TenantID != c.TenantID {
			return catalog.Category{}, fmt.Errorf("parent category belongs to another tenant")
		}
	}
	if c.StorageTempMin != nil && c.StorageTempMax != nil && *c.StorageTempMin > *c.StorageTempMax {
		return catalog.Category{}, fmt.Errorf("storage temperature range is inverted")
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return catalog.Category{}, err
	}
	s.log.WithField("tenant_id", c.TenantID).Infof("category %s created", created.Name)
	return created, nil
}

// UpdateCategory applies the same validation as CreateCategory.
func (s *Service) UpdateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	if c.StorageTempMin != nil && c.StorageTempMax != nil && *c.StorageTempMin > *c.StorageTempMax {
		return catalog.Category{}, fmt.Errorf("storage temperature range is inverted")
	}
	return s.store.UpdateCategory(ctx, c)
}

// ListCategories returns the tenant's categories with their visible product
// counts.
func (s *Service) ListCategories(ctx context.Context, tenantID string, activeOnly bool) ([]CategoryWithCount, error) {
	categories, err := s.store.ListCategories(ctx, tenantID, activeOnly)
	if err != nil {
		return nil, err
	}
	result := make([]CategoryWithCount, 0, len(categories))
	for _, c := range categories {
		count, err := s.store.CountProductsByCategory(ctx, tenantID, c.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, CategoryWithCount{Category: c, ProductCount: count})
	}
	return result, nil
}

// CategoryWithCount pairs a category with its visible product count.
type CategoryWithCount struct {
	Category     catalog.Category
	ProductCount int
}

// CreateProduct validates pricing and stores a product. Weight-priced products
// need a price per kilogram, unit-priced products a unit price.
func (s *Service) CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return catalog.Product{}, fmt.Errorf("product name is required")
	}
	if p.Code == "" {
		p.Code = NormalizeCode(p.Name)
	}
	if err := s.validateProduct(ctx, p); err != nil {
		return catalog.Product{}, err
	}
	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return catalog.Product{}, err
	}
	s.log.WithField("tenant_id", p.TenantID).Infof("product %s (%s) created", created.Name, created.Code)
	return created, nil
}

// UpdateProduct validates pricing and stores the product.
func (s *Service) UpdateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	if err := s.validateProduct(ctx, p); err != nil {
		return catalog.Product{}, err
	}
	return s.store.UpdateProduct(ctx, p)
}

func (s *Service) validateProduct(ctx context.Context, p catalog.Product) error {
	if p.SellByWeight && p.PricePerKG <= 0 {
		return fmt.Errorf("weight-priced products need a positive price per kg")
	}
	if !p.SellByWeight && p.UnitPrice <= 0 {
		return fmt.Errorf("unit-priced products need a positive unit price")
	}
	for _, w := range p.WeightOptions {
		if w <= 0 {
			return fmt.Errorf("weight options must be positive")
		}
	}
	if !catalog.ValidCertification(p.Certification) {
		return fmt.Errorf("unknown certification %q", p.Certification)
	}
	if p.CategoryID != "" {
		cat, err := s.store.GetCategory(ctx, p.CategoryID)
		if err != nil {
			return fmt.Errorf("category: %w", err)
		}
		if cat.TenantID != p.TenantID {
			return fmt.Errorf("category belongs to another tenant")
		}
	}
	return nil
}

// GetProduct returns a product by ID, scoped to the tenant.
func (s *Service) GetProduct(ctx context.Context, tenantID, id string) (catalog.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return catalog.Product{}, err
	}
	if p.TenantID != tenantID {
		return catalog.Product{}, fmt.Errorf("product %s not found", id)
	}
	return p, nil
}

// ListProducts returns the tenant's products matching the filter. With
// InStockOnly set, products whose tracked stock is exhausted are dropped;
// products with no stock records at all are kept.
func (s *Service) ListProducts(ctx context.Context, tenantID string, filter storage.ProductFilter) ([]catalog.Product, error) {
	if !filter.InStockOnly {
		return s.store.ListProducts(ctx, tenantID, filter)
	}

	offset, limit := filter.Offset, filter.Limit
	filter.Offset, filter.Limit = 0, 0
	products, err := s.store.ListProducts(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}

	stocked := products[:0]
	for _, p := range products {
		levels, err := s.store.ListStockByProduct(ctx, tenantID, p.ID)
		if err != nil {
			return nil, err
		}
		if len(levels) > 0 {
			var total float64
			for _, level := range levels {
				total += level.Qty
			}
			if total <= 0 {
				continue
			}
		}
		stocked = append(stocked, p)
	}
	if offset > 0 {
		if offset >= len(stocked) {
			return nil, nil
		}
		stocked = stocked[offset:]
	}
	if limit > 0 && len(stocked) > limit {
		stocked = stocked[:limit]
	}
	return stocked, nil
}

// StockOnHand sums a product's quantity across all tenant warehouses, served
// from the cache when warm.
func (s *Service) StockOnHand(ctx context.Context, tenantID, productID string) (float64, error) {
	if qty, ok := s.stock.Get(ctx, tenantID, productID); ok {
		return qty, nil
	}
	levels, err := s.store.ListStockByProduct(ctx, tenantID, productID)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, level := range levels {
		total += level.Qty
	}
	s.stock.Set(ctx, tenantID, productID, total)
	return total, nil
}

// SetStock records a stock count for one warehouse and invalidates the cache.
func (s *Service) SetStock(ctx context.Context, tenantID, warehouseID, productID string, qty float64) error {
	if qty < 0 {
		return fmt.Errorf("stock quantity cannot be negative")
	}
	if err := s.store.SetStock(ctx, warehouseID, productID, qty); err != nil {
		return err
	}
	s.stock.Invalidate(ctx, tenantID, productID)
	return nil
}

// CreateWarehouse stores a warehouse.
func (s *Service) CreateWarehouse(ctx context.Context, w catalog.Warehouse) (catalog.Warehouse, error) {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return catalog.Warehouse{}, fmt.Errorf("warehouse name is required")
	}
	if w.StorageType == "" {
		w.StorageType = catalog.StorageChilled
	}
	return s.store.CreateWarehouse(ctx, w)
}

// ListWarehouses returns the tenant's warehouses.
func (s *Service) ListWarehouses(ctx context.Context, tenantID string) ([]catalog.Warehouse, error) {
	return s.store.ListWarehouses(ctx, tenantID)
}

// LowStockItem is a product at or below its safety stock.
type LowStockItem struct {
	Product catalog.Product
	OnHand  float64
}

// LowStock lists visible products whose total stock is at or below their
// safety stock threshold.
func (s *Service) LowStock(ctx context.Context, tenantID string) ([]LowStockItem, error) {
	products, err := s.store.ListProducts(ctx, tenantID, storage.ProductFilter{VisibleOnly: true})
	if err != nil {
		return nil, err
	}
	var result []LowStockItem
	for _, p := range products {
		if p.SafetyStock <= 0 {
			continue
		}
		onHand, err := s.StockOnHand(ctx, tenantID, p.ID)
		if err != nil {
			return nil, err
		}
		if onHand <= p.SafetyStock {
			result = append(result, LowStockItem{Product: p, OnHand: onHand})
		}
	}
	return result, nil
}

// batchTracingEnabled checks the tenant's feature flag for batch operations.
func (s *Service) batchTracingEnabled(ctx context.Context, tenantID string) error {
	t, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if !t.Features[tenant.FeatureModule] || !t.Features[tenant.FeatureBatchTracing] {
		return fmt.Errorf("batch tracing is not enabled for this tenant")
	}
	return nil
}

// ReceiveBatch records a received meat batch. Requires the batch tracing
// feature.
func (s *Service) ReceiveBatch(ctx context.Context, b catalog.Batch) (catalog.Batch, error) {
	if err := s.batchTracingEnabled(ctx, b.TenantID); err != nil {
		return catalog.Batch{}, err
	}
	b.Code = strings.TrimSpace(b.Code)
	if b.Code == "" {
		return catalog.Batch{}, fmt.Errorf("batch code is required")
	}
	if !b.ExpiryDate.IsZero() && !b.ReceiptDate.IsZero() && b.ExpiryDate.Before(b.ReceiptDate) {
		return catalog.Batch{}, fmt.Errorf("expiry date precedes receipt date")
	}
	if !catalog.ValidCertification(b.Certification) {
		return catalog.Batch{}, fmt.Errorf("unknown certification %q", b.Certification)
	}
	if b.Status == "" {
		b.Status = catalog.BatchActive
	}
	created, err := s.store.CreateBatch(ctx, b)
	if err != nil {
		return catalog.Batch{}, err
	}
	s.log.WithField("tenant_id", b.TenantID).Infof("batch %s received from %s", created.Code, created.Supplier)
	return created, nil
}

// TraceBatch looks a batch up by code. Requires the batch tracing feature.
func (s *Service) TraceBatch(ctx context.Context, tenantID, code string) (catalog.Batch, error) {
	if err := s.batchTracingEnabled(ctx, tenantID); err != nil {
		return catalog.Batch{}, err
	}
	return s.store.GetBatchByCode(ctx, tenantID, code)
}

// UpdateBatchStatus moves a batch to a new lifecycle status.
func (s *Service) UpdateBatchStatus(ctx context.Context, tenantID, code string, status catalog.BatchStatus) (catalog.Batch, error) {
	if err := s.batchTracingEnabled(ctx, tenantID); err != nil {
		return catalog.Batch{}, err
	}
	switch status {
	case catalog.BatchActive, catalog.BatchInStock, catalog.BatchSoldOut, catalog.BatchExpired, catalog.BatchRecalled:
	default:
		return catalog.Batch{}, fmt.Errorf("unknown batch status %q", status)
	}
	b, err := s.store.GetBatchByCode(ctx, tenantID, code)
	if err != nil {
		return catalog.Batch{}, err
	}
	b.Status = status
	updated, err := s.store.UpdateBatch(ctx, b)
	if err != nil {
		return catalog.Batch{}, err
	}
	if status == catalog.BatchRecalled {
		s.log.WithField("tenant_id", tenantID).Warnf("batch %s recalled", code)
	}
	return updated, nil
}

// ListBatches lists the tenant's batches. Requires the batch tracing feature.
func (s *Service) ListBatches(ctx context.Context, tenantID string) ([]catalog.Batch, error) {
	if err := s.batchTracingEnabled(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.store.ListBatches(ctx, tenantID)
}

// ExpiringBatches lists active batches expiring within the horizon.
func (s *Service) ExpiringBatches(ctx context.Context, tenantID string, horizon time.Duration) ([]catalog.Batch, error) {
	return s.store.ListExpiringBatches(ctx, tenantID, time.Now().UTC().Add(horizon))
}
