package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/maxnate/infinit-butchery/internal/app/domain/catalog"
	"github.com/maxnate/infinit-butchery/internal/app/domain/delivery"
	"github.com/maxnate/infinit-butchery/internal/app/domain/order"
	"github.com/maxnate/infinit-butchery/internal/app/domain/payment"
	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	tenants            map[string]tenant.Tenant
	tenantsBySubdomain map[string]string
	staff              map[string]tenant.StaffUser

	categories map[string]catalog.Category
	products   map[string]catalog.Product
	warehouses map[string]catalog.Warehouse
	stock      map[string]catalog.StockLevel // key warehouseID/productID
	batches    map[string]catalog.Batch

	orders map[string]order.Order
	zones  map[string]delivery.Zone

	gateways     map[string]payment.Gateway // key code
	methods      map[string]payment.Method  // key tenantID/gatewayCode
	transactions map[string]payment.Transaction
}

var _ storage.TenantStore = (*Store)(nil)
var _ storage.CatalogStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)
var _ storage.DeliveryStore = (*Store)(nil)
var _ storage.PaymentStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:             1,
		tenants:            make(map[string]tenant.Tenant),
		tenantsBySubdomain: make(map[string]string),
		staff:              make(map[string]tenant.StaffUser),
		categories:         make(map[string]catalog.Category),
		products:           make(map[string]catalog.Product),
		warehouses:         make(map[string]catalog.Warehouse),
		stock:              make(map[string]catalog.StockLevel),
		batches:            make(map[string]catalog.Batch),
		orders:             make(map[string]order.Order),
		zones:              make(map[string]delivery.Zone),
		gateways:           make(map[string]payment.Gateway),
		methods:            make(map[string]payment.Method),
		transactions:       make(map[string]payment.Transaction),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func stockKey(warehouseID, productID string) string {
	return warehouseID + "/" + productID
}

func methodKey(tenantID, gatewayCode string) string {
	return tenantID + "/" + gatewayCode
}

// TenantStore implementation --------------------------------------------------

func (s *Store) CreateTenant(_ context.Context, t tenant.Tenant) (tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = s.nextIDLocked()
	} else if _, exists := s.tenants[t.ID]; exists {
		return tenant.Tenant{}, fmt.Errorf("tenant %s already exists", t.ID)
	}
	if t.Subdomain != "" {
		if _, taken := s.tenantsBySubdomain[t.Subdomain]; taken {
			return tenant.Tenant{}, fmt.Errorf("subdomain %s already in use", t.Subdomain)
		}
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Features = cloneFeatures(t.Features)

	s.tenants[t.ID] = t
	if t.Subdomain != "" {
		s.tenantsBySubdomain[t.Subdomain] = t.ID
	}
	return cloneTenant(t), nil
}

func (s *Store) UpdateTenant(_ context.Context, t tenant.Tenant) (tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.tenants[t.ID]
	if !ok {
		return tenant.Tenant{}, fmt.Errorf("tenant %s not found", t.ID)
	}

	if original.Subdomain != t.Subdomain {
		if t.Subdomain != "" {
			if id, taken := s.tenantsBySubdomain[t.Subdomain]; taken && id != t.ID {
				return tenant.Tenant{}, fmt.Errorf("subdomain %s already in use", t.Subdomain)
			}
		}
		delete(s.tenantsBySubdomain, original.Subdomain)
		if t.Subdomain != "" {
			s.tenantsBySubdomain[t.Subdomain] = t.ID
		}
	}

	t.CreatedAt = original.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	t.Features = cloneFeatures(t.Features)
	s.tenants[t.ID] = t
	return cloneTenant(t), nil
}

func (s *Store) GetTenant(_ context.Context, id string) (tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return tenant.Tenant{}, fmt.Errorf("tenant %s not found", id)
	}
	return cloneTenant(t), nil
}

func (s *Store) GetTenantBySubdomain(_ context.Context, subdomain string) (tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.tenantsBySubdomain[subdomain]
	if !ok {
		return tenant.Tenant{}, fmt.Errorf("tenant with subdomain %s not found", subdomain)
	}
	return cloneTenant(s.tenants[id]), nil
}

func (s *Store) ListTenants(_ context.Context) ([]tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]tenant.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		result = append(result, cloneTenant(t))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) CreateStaffUser(_ context.Context, u tenant.StaffUser) (tenant.StaffUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.staff {
		if existing.TenantID == u.TenantID && strings.EqualFold(existing.Email, u.Email) {
			return tenant.StaffUser{}, fmt.Errorf("staff user %s already exists", u.Email)
		}
	}
	if u.ID == "" {
		u.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.staff[u.ID] = u
	return u, nil
}

func (s *Store) UpdateStaffUser(_ context.Context, u tenant.StaffUser) (tenant.StaffUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.staff[u.ID]
	if !ok {
		return tenant.StaffUser{}, fmt.Errorf("staff user %s not found", u.ID)
	}
	u.TenantID = original.TenantID
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	s.staff[u.ID] = u
	return u, nil
}

func (s *Store) GetStaffUserByEmail(_ context.Context, tenantID, email string) (tenant.StaffUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.staff {
		if u.TenantID == tenantID && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return tenant.StaffUser{}, fmt.Errorf("staff user %s not found", email)
}

func (s *Store) ListStaffUsers(_ context.Context, tenantID string) ([]tenant.StaffUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []tenant.StaffUser
	for _, u := range s.staff {
		if u.TenantID == tenantID {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// CatalogStore implementation -------------------------------------------------

func (s *Store) CreateCategory(_ context.Context, c catalog.Category) (catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	} else if _, exists := s.categories[c.ID]; exists {
		return catalog.Category{}, fmt.Errorf("category %s already exists", c.ID)
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c catalog.Category) (catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.categories[c.ID]
	if !ok {
		return catalog.Category{}, fmt.Errorf("category %s not found", c.ID)
	}
	c.TenantID = original.TenantID
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return catalog.Category{}, fmt.Errorf("category %s not found", id)
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, tenantID string, activeOnly bool) ([]catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []catalog.Category
	for _, c := range s.categories {
		if c.TenantID != tenantID {
			continue
		}
		if activeOnly && !c.Active {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DisplayOrder != result[j].DisplayOrder {
			return result[i].DisplayOrder < result[j].DisplayOrder
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if existing.TenantID == p.TenantID && existing.Code == p.Code {
			return catalog.Product{}, fmt.Errorf("product code %s already exists", p.Code)
		}
	}
	if p.ID == "" {
		p.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.WeightOptions = cloneFloats(p.WeightOptions)
	s.products[p.ID] = p
	return cloneProduct(p), nil
}

func (s *Store) UpdateProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.products[p.ID]
	if !ok {
		return catalog.Product{}, fmt.Errorf("product %s not found", p.ID)
	}
	p.TenantID = original.TenantID
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	p.WeightOptions = cloneFloats(p.WeightOptions)
	s.products[p.ID] = p
	return cloneProduct(p), nil
}

func (s *Store) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, fmt.Errorf("product %s not found", id)
	}
	return cloneProduct(p), nil
}

func (s *Store) GetProductByCode(_ context.Context, tenantID, code string) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.TenantID == tenantID && p.Code == code {
			return cloneProduct(p), nil
		}
	}
	return catalog.Product{}, fmt.Errorf("product %s not found", code)
}

func (s *Store) ListProducts(_ context.Context, tenantID string, filter storage.ProductFilter) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []catalog.Product
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, p := range s.products {
		if p.TenantID != tenantID {
			continue
		}
		if filter.VisibleOnly && !p.Visible {
			continue
		}
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		matched = append(matched, cloneProduct(p))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Premium != matched[j].Premium {
			return matched[i].Premium
		}
		return matched[i].Name < matched[j].Name
	})
	return paginateProducts(matched, filter.Offset, filter.Limit), nil
}

func (s *Store) CountProductsByCategory(_ context.Context, tenantID, categoryID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.products {
		if p.TenantID == tenantID && p.CategoryID == categoryID && p.Visible {
			count++
		}
	}
	return count, nil
}

func (s *Store) CreateWarehouse(_ context.Context, w catalog.Warehouse) (catalog.Warehouse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now
	s.warehouses[w.ID] = w
	return w, nil
}

func (s *Store) ListWarehouses(_ context.Context, tenantID string) ([]catalog.Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []catalog.Warehouse
	for _, w := range s.warehouses {
		if w.TenantID == tenantID {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) SetStock(_ context.Context, warehouseID, productID string, qty float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.warehouses[warehouseID]; !ok {
		return fmt.Errorf("warehouse %s not found", warehouseID)
	}
	s.stock[stockKey(warehouseID, productID)] = catalog.StockLevel{
		WarehouseID: warehouseID,
		ProductID:   productID,
		Qty:         qty,
		UpdatedAt:   time.Now().UTC(),
	}
	return nil
}

func (s *Store) ListStockByProduct(_ context.Context, tenantID, productID string) ([]catalog.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []catalog.StockLevel
	for _, level := range s.stock {
		if level.ProductID != productID {
			continue
		}
		if w, ok := s.warehouses[level.WarehouseID]; !ok || w.TenantID != tenantID {
			continue
		}
		result = append(result, level)
	}
	return result, nil
}

func (s *Store) ListStock(_ context.Context, tenantID string) ([]catalog.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []catalog.StockLevel
	for _, level := range s.stock {
		if w, ok := s.warehouses[level.WarehouseID]; ok && w.TenantID == tenantID {
			result = append(result, level)
		}
	}
	return result, nil
}

func (s *Store) CreateBatch(_ context.Context, b catalog.Batch) (catalog.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.batches {
		if existing.TenantID == b.TenantID && existing.Code == b.Code {
			return catalog.Batch{}, fmt.Errorf("batch %s already exists", b.Code)
		}
	}
	if b.ID == "" {
		b.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	s.batches[b.ID] = b
	return b, nil
}

func (s *Store) UpdateBatch(_ context.Context, b catalog.Batch) (catalog.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.batches[b.ID]
	if !ok {
		return catalog.Batch{}, fmt.Errorf("batch %s not found", b.ID)
	}
	b.TenantID = original.TenantID
	b.CreatedAt = original.CreatedAt
	b.UpdatedAt = time.Now().UTC()
	s.batches[b.ID] = b
	return b, nil
}

func (s *Store) GetBatchByCode(_ context.Context, tenantID, code string) (catalog.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.batches {
		if b.TenantID == tenantID && b.Code == code {
			return b, nil
		}
	}
	return catalog.Batch{}, fmt.Errorf("batch %s not found", code)
}

func (s *Store) ListBatches(_ context.Context, tenantID string) ([]catalog.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []catalog.Batch
	for _, b := range s.batches {
		if b.TenantID == tenantID {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ListExpiringBatches(_ context.Context, tenantID string, before time.Time) ([]catalog.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []catalog.Batch
	for _, b := range s.batches {
		if b.TenantID != tenantID {
			continue
		}
		if b.Status != catalog.BatchActive && b.Status != catalog.BatchInStock {
			continue
		}
		if !b.ExpiryDate.IsZero() && !b.ExpiryDate.After(before) {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiryDate.Before(result[j].ExpiryDate) })
	return result, nil
}

// OrderStore implementation ---------------------------------------------------

func (s *Store) CreateOrder(_ context.Context, o order.Order) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == "" {
		o.ID = s.nextIDLocked()
	} else if _, exists := s.orders[o.ID]; exists {
		return order.Order{}, fmt.Errorf("order %s already exists", o.ID)
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Items = cloneItems(o.Items)
	s.orders[o.ID] = o
	return cloneOrder(o), nil
}

func (s *Store) UpdateOrder(_ context.Context, o order.Order) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.orders[o.ID]
	if !ok {
		return order.Order{}, fmt.Errorf("order %s not found", o.ID)
	}
	o.TenantID = original.TenantID
	o.CreatedAt = original.CreatedAt
	o.UpdatedAt = time.Now().UTC()
	o.Items = cloneItems(o.Items)
	s.orders[o.ID] = o
	return cloneOrder(o), nil
}

func (s *Store) GetOrder(_ context.Context, id string) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, fmt.Errorf("order %s not found", id)
	}
	return cloneOrder(o), nil
}

func (s *Store) ListOrders(_ context.Context, tenantID string, filter storage.OrderFilter) ([]order.Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []order.Order
	for _, o := range s.orders {
		if o.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.Type != "" && o.Type != filter.Type {
			continue
		}
		if filter.PaymentStatus != "" && o.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.Phone != "" && o.CustomerPhone != filter.Phone {
			continue
		}
		if !filter.CreatedBefore.IsZero() && !o.CreatedAt.Before(filter.CreatedBefore) {
			continue
		}
		if !filter.DateFrom.IsZero() && o.CreatedAt.Before(filter.DateFrom) {
			continue
		}
		if !filter.DateTo.IsZero() && !o.CreatedAt.Before(filter.DateTo) {
			continue
		}
		matched = append(matched, cloneOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= total {
			return nil, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

// DeliveryStore implementation ------------------------------------------------

func (s *Store) CreateZone(_ context.Context, z delivery.Zone) (delivery.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if z.ID == "" {
		z.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	z.CreatedAt = now
	z.UpdatedAt = now
	s.zones[z.ID] = z
	return z, nil
}

func (s *Store) UpdateZone(_ context.Context, z delivery.Zone) (delivery.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.zones[z.ID]
	if !ok {
		return delivery.Zone{}, fmt.Errorf("zone %s not found", z.ID)
	}
	z.TenantID = original.TenantID
	z.CreatedAt = original.CreatedAt
	z.UpdatedAt = time.Now().UTC()
	s.zones[z.ID] = z
	return z, nil
}

func (s *Store) GetZone(_ context.Context, id string) (delivery.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	z, ok := s.zones[id]
	if !ok {
		return delivery.Zone{}, fmt.Errorf("zone %s not found", id)
	}
	return z, nil
}

func (s *Store) ListZones(_ context.Context, tenantID string, activeOnly bool) ([]delivery.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []delivery.Zone
	for _, z := range s.zones {
		if z.TenantID != tenantID {
			continue
		}
		if activeOnly && !z.Active {
			continue
		}
		result = append(result, z)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// PaymentStore implementation -------------------------------------------------

func (s *Store) CreateGateway(_ context.Context, g payment.Gateway) (payment.Gateway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.gateways[g.Code]; exists {
		return payment.Gateway{}, fmt.Errorf("gateway %s already exists", g.Code)
	}
	if g.ID == "" {
		g.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	s.gateways[g.Code] = g
	return g, nil
}

func (s *Store) UpdateGateway(_ context.Context, g payment.Gateway) (payment.Gateway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.gateways[g.Code]
	if !ok {
		return payment.Gateway{}, fmt.Errorf("gateway %s not found", g.Code)
	}
	g.ID = original.ID
	g.CreatedAt = original.CreatedAt
	g.UpdatedAt = time.Now().UTC()
	s.gateways[g.Code] = g
	return g, nil
}

func (s *Store) GetGatewayByCode(_ context.Context, code string) (payment.Gateway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.gateways[code]
	if !ok {
		return payment.Gateway{}, fmt.Errorf("gateway %s not found", code)
	}
	return g, nil
}

func (s *Store) ListGateways(_ context.Context, activeOnly bool) ([]payment.Gateway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []payment.Gateway
	for _, g := range s.gateways {
		if activeOnly && !g.Active {
			continue
		}
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (s *Store) CreateMethod(_ context.Context, m payment.Method) (payment.Method, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := methodKey(m.TenantID, m.GatewayCode)
	if _, exists := s.methods[key]; exists {
		return payment.Method{}, fmt.Errorf("payment method %s already configured", m.GatewayCode)
	}
	if m.ID == "" {
		m.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	s.methods[key] = m
	return m, nil
}

func (s *Store) UpdateMethod(_ context.Context, m payment.Method) (payment.Method, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := methodKey(m.TenantID, m.GatewayCode)
	original, ok := s.methods[key]
	if !ok {
		return payment.Method{}, fmt.Errorf("payment method %s not found", m.GatewayCode)
	}
	m.ID = original.ID
	m.CreatedAt = original.CreatedAt
	m.UpdatedAt = time.Now().UTC()
	s.methods[key] = m
	return m, nil
}

func (s *Store) GetMethod(_ context.Context, tenantID, gatewayCode string) (payment.Method, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.methods[methodKey(tenantID, gatewayCode)]
	if !ok {
		return payment.Method{}, fmt.Errorf("payment method %s not found", gatewayCode)
	}
	return m, nil
}

func (s *Store) ListMethods(_ context.Context, tenantID string, enabledOnly bool) ([]payment.Method, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []payment.Method
	for _, m := range s.methods {
		if m.TenantID != tenantID {
			continue
		}
		if enabledOnly && !m.Enabled {
			continue
		}
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DisplayOrder != result[j].DisplayOrder {
			return result[i].DisplayOrder < result[j].DisplayOrder
		}
		return result[i].GatewayCode < result[j].GatewayCode
	})
	return result, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx payment.Transaction) (payment.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx payment.Transaction) (payment.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.transactions[tx.ID]
	if !ok {
		return payment.Transaction{}, fmt.Errorf("transaction %s not found", tx.ID)
	}
	tx.TenantID = original.TenantID
	tx.CreatedAt = original.CreatedAt
	tx.UpdatedAt = time.Now().UTC()
	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (payment.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return payment.Transaction{}, fmt.Errorf("transaction %s not found", id)
	}
	return tx, nil
}

func (s *Store) ListTransactionsByOrder(_ context.Context, orderID string) ([]payment.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []payment.Transaction
	for _, tx := range s.transactions {
		if tx.OrderID == orderID {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ListPendingTransactions(_ context.Context) ([]payment.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []payment.Transaction
	for _, tx := range s.transactions {
		if tx.Status == payment.TxInitiated || tx.Status == payment.TxPending {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) DeleteFailedTransactionsBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, tx := range s.transactions {
		if tx.Status == payment.TxFailed && tx.CreatedAt.Before(cutoff) {
			delete(s.transactions, id)
			deleted++
		}
	}
	return deleted, nil
}

// clone helpers ---------------------------------------------------------------

func cloneFeatures(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneTenant(t tenant.Tenant) tenant.Tenant {
	t.Features = cloneFeatures(t.Features)
	return t
}

func cloneFloats(in []float64) []float64 {
	if in == nil {
		return nil
	}
	out := make([]float64, len(in))
	copy(out, in)
	return out
}

func cloneProduct(p catalog.Product) catalog.Product {
	p.WeightOptions = cloneFloats(p.WeightOptions)
	return p
}

func cloneItems(in []order.Item) []order.Item {
	if in == nil {
		return nil
	}
	out := make([]order.Item, len(in))
	copy(out, in)
	return out
}

func cloneOrder(o order.Order) order.Order {
	o.Items = cloneItems(o.Items)
	return o
}

func paginateProducts(in []catalog.Product, offset, limit int) []catalog.Product {
	if offset > 0 {
		if offset >= len(in) {
			return nil
		}
		in = in[offset:]
	}
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}
