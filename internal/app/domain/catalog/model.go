package catalog

import "time"

// Certification marks how the meat was sourced or prepared.
type Certification string

const (
	CertNone      Certification = ""
	CertHalal     Certification = "Halal"
	CertKosher    Certification = "Kosher"
	CertOrganic   Certification = "Organic"
	CertGrassFed  Certification = "Grass-Fed"
	CertFreeRange Certification = "Free-Range"
)

// ValidCertification reports whether c is a recognised certification.
func ValidCertification(c Certification) bool {
	switch c {
	case CertNone, CertHalal, CertKosher, CertOrganic, CertGrassFed, CertFreeRange:
		return true
	}
	return false
}

// Category groups products, e.g. Beef, Poultry, Game. The storage temperature
// range classifies the category for cold-chain handling.
type Category struct {
	ID             string
	TenantID       string
	Name           string
	Code           string
	ParentID       string
	Description    string
	StorageTempMin *float64
	StorageTempMax *float64
	DisplayOrder   int
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Product is a sellable cut or item. Weight-priced products are quoted per
// kilogram; others use the unit price.
type Product struct {
	ID            string
	TenantID      string
	Code          string
	Name          string
	CategoryID    string
	CutType       string
	Description   string
	PricePerKG    float64
	UnitPrice     float64
	SellByWeight  bool
	WeightOptions []float64
	Premium       bool
	Certification Certification
	Visible       bool
	SafetyStock   float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StorageType classifies cold storage.
type StorageType string

const (
	StorageChilled StorageType = "Chilled"
	StorageFrozen  StorageType = "Frozen"
	StorageDry     StorageType = "Dry"
)

// Warehouse holds stock for a tenant. Outlets and cold rooms are both
// modelled as warehouses.
type Warehouse struct {
	ID          string
	TenantID    string
	Name        string
	ColdStorage bool
	StorageType StorageType
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StockLevel is the quantity of a product held in one warehouse.
type StockLevel struct {
	WarehouseID string
	ProductID   string
	Qty         float64
	UpdatedAt   time.Time
}

// BatchStatus tracks a meat batch through its shelf life.
type BatchStatus string

const (
	BatchActive   BatchStatus = "Active"
	BatchInStock  BatchStatus = "In Stock"
	BatchSoldOut  BatchStatus = "Sold Out"
	BatchExpired  BatchStatus = "Expired"
	BatchRecalled BatchStatus = "Recalled"
)

// Batch records carcass-to-sale traceability for received meat.
type Batch struct {
	ID            string
	TenantID      string
	Code          string
	CategoryID    string
	Supplier      string
	ReceiptDate   time.Time
	SlaughterDate time.Time
	ExpiryDate    time.Time
	Certification Certification
	Status        BatchStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
