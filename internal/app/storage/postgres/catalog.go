package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maxnate/infinit-butchery/internal/app/domain/catalog"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
)

type categoryRow struct {
	ID             string         `db:"id"`
	TenantID       string         `db:"tenant_id"`
	Name           string         `db:"name"`
	Code           string         `db:"code"`
	ParentID       sql.NullString `db:"parent_id"`
	Description    string         `db:"description"`
	StorageTempMin *float64       `db:"storage_temp_min"`
	StorageTempMax *float64       `db:"storage_temp_max"`
	DisplayOrder   int            `db:"display_order"`
	Active         bool           `db:"active"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r categoryRow) toDomain() catalog.Category {
	return catalog.Category{
		ID:             r.ID,
		TenantID:       r.TenantID,
		Name:           r.Name,
		Code:           r.Code,
		ParentID:       r.ParentID.String,
		Description:    r.Description,
		StorageTempMin: r.StorageTempMin,
		StorageTempMax: r.StorageTempMax,
		DisplayOrder:   r.DisplayOrder,
		Active:         r.Active,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func (s *Store) CreateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, tenant_id, name, code, parent_id, description, storage_temp_min, storage_temp_max, display_order, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.TenantID, c.Name, c.Code, nullString(c.ParentID), c.Description,
		c.StorageTempMin, c.StorageTempMax, c.DisplayOrder, c.Active, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return catalog.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	c.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = $2, code = $3, parent_id = $4, description = $5, storage_temp_min = $6,
		    storage_temp_max = $7, display_order = $8, active = $9, updated_at = $10
		WHERE id = $1`,
		c.ID, c.Name, c.Code, nullString(c.ParentID), c.Description,
		c.StorageTempMin, c.StorageTempMax, c.DisplayOrder, c.Active, c.UpdatedAt)
	if err != nil {
		return catalog.Category{}, fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Category{}, fmt.Errorf("category %s not found", c.ID)
	}
	return s.GetCategory(ctx, c.ID)
}

func (s *Store) GetCategory(ctx context.Context, id string) (catalog.Category, error) {
	var row categoryRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM categories WHERE id = $1`, id)
	if isNoRows(err) {
		return catalog.Category{}, fmt.Errorf("category %s not found", id)
	}
	if err != nil {
		return catalog.Category{}, fmt.Errorf("get category: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListCategories(ctx context.Context, tenantID string, activeOnly bool) ([]catalog.Category, error) {
	query := `SELECT * FROM categories WHERE tenant_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY display_order, name`

	var rows []categoryRow
	if err := s.db.SelectContext(ctx, &rows, query, tenantID); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	result := make([]catalog.Category, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

type productRow struct {
	ID            string    `db:"id"`
	TenantID      string    `db:"tenant_id"`
	Code          string    `db:"code"`
	Name          string    `db:"name"`
	CategoryID    string    `db:"category_id"`
	CutType       string    `db:"cut_type"`
	Description   string    `db:"description"`
	PricePerKG    float64   `db:"price_per_kg"`
	UnitPrice     float64   `db:"unit_price"`
	SellByWeight  bool      `db:"sell_by_weight"`
	WeightOptions []byte    `db:"weight_options"`
	Premium       bool      `db:"premium"`
	Certification string    `db:"certification"`
	Visible       bool      `db:"visible"`
	SafetyStock   float64   `db:"safety_stock"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r productRow) toDomain() (catalog.Product, error) {
	p := catalog.Product{
		ID:            r.ID,
		TenantID:      r.TenantID,
		Code:          r.Code,
		Name:          r.Name,
		CategoryID:    r.CategoryID,
		CutType:       r.CutType,
		Description:   r.Description,
		PricePerKG:    r.PricePerKG,
		UnitPrice:     r.UnitPrice,
		SellByWeight:  r.SellByWeight,
		Premium:       r.Premium,
		Certification: catalog.Certification(r.Certification),
		Visible:       r.Visible,
		SafetyStock:   r.SafetyStock,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if len(r.WeightOptions) > 0 {
		if err := json.Unmarshal(r.WeightOptions, &p.WeightOptions); err != nil {
			return catalog.Product{}, fmt.Errorf("decode weight options: %w", err)
		}
	}
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	weights, err := json.Marshal(p.WeightOptions)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("encode weight options: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (id, tenant_id, code, name, category_id, cut_type, description, price_per_kg, unit_price,
		                      sell_by_weight, weight_options, premium, certification, visible, safety_stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		p.ID, p.TenantID, p.Code, p.Name, p.CategoryID, p.CutType, p.Description, p.PricePerKG, p.UnitPrice,
		p.SellByWeight, weights, p.Premium, string(p.Certification), p.Visible, p.SafetyStock, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	p.UpdatedAt = time.Now().UTC()
	weights, err := json.Marshal(p.WeightOptions)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("encode weight options: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET code = $2, name = $3, category_id = $4, cut_type = $5, description = $6, price_per_kg = $7,
		    unit_price = $8, sell_by_weight = $9, weight_options = $10, premium = $11, certification = $12,
		    visible = $13, safety_stock = $14, updated_at = $15
		WHERE id = $1`,
		p.ID, p.Code, p.Name, p.CategoryID, p.CutType, p.Description, p.PricePerKG,
		p.UnitPrice, p.SellByWeight, weights, p.Premium, string(p.Certification),
		p.Visible, p.SafetyStock, p.UpdatedAt)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Product{}, fmt.Errorf("product %s not found", p.ID)
	}
	return s.GetProduct(ctx, p.ID)
}

func (s *Store) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM products WHERE id = $1`, id)
	if isNoRows(err) {
		return catalog.Product{}, fmt.Errorf("product %s not found", id)
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("get product: %w", err)
	}
	return row.toDomain()
}

func (s *Store) GetProductByCode(ctx context.Context, tenantID, code string) (catalog.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM products WHERE tenant_id = $1 AND code = $2`, tenantID, code)
	if isNoRows(err) {
		return catalog.Product{}, fmt.Errorf("product %s not found", code)
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("get product by code: %w", err)
	}
	return row.toDomain()
}

func (s *Store) ListProducts(ctx context.Context, tenantID string, filter storage.ProductFilter) ([]catalog.Product, error) {
	query := `SELECT * FROM products WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if filter.VisibleOnly {
		query += ` AND visible`
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		query += fmt.Sprintf(` AND category_id = $%d`, len(args))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		query += fmt.Sprintf(` AND lower(name) LIKE $%d`, len(args))
	}
	query += ` ORDER BY premium DESC, name`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	result := make([]catalog.Product, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *Store) CountProductsByCategory(ctx context.Context, tenantID, categoryID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT count(*) FROM products WHERE tenant_id = $1 AND category_id = $2 AND visible`, tenantID, categoryID)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

type warehouseRow struct {
	ID          string    `db:"id"`
	TenantID    string    `db:"tenant_id"`
	Name        string    `db:"name"`
	ColdStorage bool      `db:"cold_storage"`
	StorageType string    `db:"storage_type"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (s *Store) CreateWarehouse(ctx context.Context, w catalog.Warehouse) (catalog.Warehouse, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO warehouses (id, tenant_id, name, cold_storage, storage_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.TenantID, w.Name, w.ColdStorage, string(w.StorageType), w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return catalog.Warehouse{}, fmt.Errorf("insert warehouse: %w", err)
	}
	return w, nil
}

func (s *Store) ListWarehouses(ctx context.Context, tenantID string) ([]catalog.Warehouse, error) {
	var rows []warehouseRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM warehouses WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	result := make([]catalog.Warehouse, 0, len(rows))
	for _, row := range rows {
		result = append(result, catalog.Warehouse{
			ID:          row.ID,
			TenantID:    row.TenantID,
			Name:        row.Name,
			ColdStorage: row.ColdStorage,
			StorageType: catalog.StorageType(row.StorageType),
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return result, nil
}

type stockRow struct {
	WarehouseID string    `db:"warehouse_id"`
	ProductID   string    `db:"product_id"`
	Qty         float64   `db:"qty"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r stockRow) toDomain() catalog.StockLevel {
	return catalog.StockLevel{
		WarehouseID: r.WarehouseID,
		ProductID:   r.ProductID,
		Qty:         r.Qty,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (s *Store) SetStock(ctx context.Context, warehouseID, productID string, qty float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_levels (warehouse_id, product_id, qty, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (warehouse_id, product_id) DO UPDATE SET qty = $3, updated_at = $4`,
		warehouseID, productID, qty, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	return nil
}

func (s *Store) ListStockByProduct(ctx context.Context, tenantID, productID string) ([]catalog.StockLevel, error) {
	var rows []stockRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT sl.warehouse_id, sl.product_id, sl.qty, sl.updated_at
		FROM stock_levels sl
		JOIN warehouses w ON w.id = sl.warehouse_id
		WHERE w.tenant_id = $1 AND sl.product_id = $2`, tenantID, productID)
	if err != nil {
		return nil, fmt.Errorf("list stock by product: %w", err)
	}
	result := make([]catalog.StockLevel, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) ListStock(ctx context.Context, tenantID string) ([]catalog.StockLevel, error) {
	var rows []stockRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT sl.warehouse_id, sl.product_id, sl.qty, sl.updated_at
		FROM stock_levels sl
		JOIN warehouses w ON w.id = sl.warehouse_id
		WHERE w.tenant_id = $1`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	result := make([]catalog.StockLevel, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

type batchRow struct {
	ID            string       `db:"id"`
	TenantID      string       `db:"tenant_id"`
	Code          string       `db:"code"`
	CategoryID    string       `db:"category_id"`
	Supplier      string       `db:"supplier"`
	ReceiptDate   sql.NullTime `db:"receipt_date"`
	SlaughterDate sql.NullTime `db:"slaughter_date"`
	ExpiryDate    sql.NullTime `db:"expiry_date"`
	Certification string       `db:"certification"`
	Status        string       `db:"status"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

func (r batchRow) toDomain() catalog.Batch {
	return catalog.Batch{
		ID:            r.ID,
		TenantID:      r.TenantID,
		Code:          r.Code,
		CategoryID:    r.CategoryID,
		Supplier:      r.Supplier,
		ReceiptDate:   fromNullTime(r.ReceiptDate),
		SlaughterDate: fromNullTime(r.SlaughterDate),
		ExpiryDate:    fromNullTime(r.ExpiryDate),
		Certification: catalog.Certification(r.Certification),
		Status:        catalog.BatchStatus(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (s *Store) CreateBatch(ctx context.Context, b catalog.Batch) (catalog.Batch, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (id, tenant_id, code, category_id, supplier, receipt_date, slaughter_date, expiry_date, certification, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		b.ID, b.TenantID, b.Code, b.CategoryID, b.Supplier,
		nullTime(b.ReceiptDate), nullTime(b.SlaughterDate), nullTime(b.ExpiryDate),
		string(b.Certification), string(b.Status), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return catalog.Batch{}, fmt.Errorf("insert batch: %w", err)
	}
	return b, nil
}

func (s *Store) UpdateBatch(ctx context.Context, b catalog.Batch) (catalog.Batch, error) {
	b.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE batches
		SET code = $2, category_id = $3, supplier = $4, receipt_date = $5, slaughter_date = $6,
		    expiry_date = $7, certification = $8, status = $9, updated_at = $10
		WHERE id = $1`,
		b.ID, b.Code, b.CategoryID, b.Supplier,
		nullTime(b.ReceiptDate), nullTime(b.SlaughterDate), nullTime(b.ExpiryDate),
		string(b.Certification), string(b.Status), b.UpdatedAt)
	if err != nil {
		return catalog.Batch{}, fmt.Errorf("update batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return catalog.Batch{}, fmt.Errorf("batch %s not found", b.ID)
	}
	return b, nil
}

func (s *Store) GetBatchByCode(ctx context.Context, tenantID, code string) (catalog.Batch, error) {
	var row batchRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM batches WHERE tenant_id = $1 AND code = $2`, tenantID, code)
	if isNoRows(err) {
		return catalog.Batch{}, fmt.Errorf("batch %s not found", code)
	}
	if err != nil {
		return catalog.Batch{}, fmt.Errorf("get batch: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListBatches(ctx context.Context, tenantID string) ([]catalog.Batch, error) {
	var rows []batchRow
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM batches WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	result := make([]catalog.Batch, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (s *Store) ListExpiringBatches(ctx context.Context, tenantID string, before time.Time) ([]catalog.Batch, error) {
	var rows []batchRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM batches
		WHERE tenant_id = $1 AND status IN ('Active', 'In Stock') AND expiry_date IS NOT NULL AND expiry_date <= $2
		ORDER BY expiry_date`, tenantID, before)
	if err != nil {
		return nil, fmt.Errorf("list expiring batches: %w", err)
	}
	result := make([]catalog.Batch, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}
