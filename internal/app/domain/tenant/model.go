package tenant

import "time"

// BusinessType categorises a tenant's operation and selects default features.
type BusinessType string

const (
	BusinessRetail      BusinessType = "Retail"
	BusinessWholesale   BusinessType = "Wholesale"
	BusinessProcessing  BusinessType = "Processing"
	BusinessOnline      BusinessType = "Online"
	BusinessMultiOutlet BusinessType = "Multi-Outlet"
)

// Feature codes. FeatureModule is the master switch: when it is off every
// other feature reads as disabled.
const (
	FeatureModule        = "enable_butchery_module"
	FeatureWeightPricing = "weight_pricing"
	FeatureBatchTracing  = "batch_tracing"
	FeatureOnlineStore   = "online_store"
)

// Tenant is a butchery business hosted on the platform. All domain records
// are scoped to a tenant.
type Tenant struct {
	ID           string
	Name         string
	Subdomain    string
	Currency     string
	TaxRate      float64
	BusinessType BusinessType
	Features     map[string]bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StaffRole distinguishes tenant administrators from counter staff.
type StaffRole string

const (
	RoleAdmin StaffRole = "admin"
	RoleStaff StaffRole = "staff"
)

// StaffUser is a tenant-scoped operator account.
type StaffUser struct {
	ID           string
	TenantID     string
	Email        string
	Name         string
	Role         StaffRole
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DefaultFeatures returns the feature set enabled for a business type at
// tenant creation. The master switch is always on for new tenants.
func DefaultFeatures(bt BusinessType) map[string]bool {
	features := map[string]bool{
		FeatureModule:        true,
		FeatureWeightPricing: true,
		FeatureBatchTracing:  false,
		FeatureOnlineStore:   false,
	}
	switch bt {
	case BusinessWholesale, BusinessProcessing, BusinessMultiOutlet:
		features[FeatureBatchTracing] = true
	case BusinessOnline:
		features[FeatureOnlineStore] = true
	}
	return features
}

// legacy feature codes kept for older storefront clients.
var legacyFeatureAliases = map[string]string{
	"batch_traceability":   FeatureBatchTracing,
	"weight_based_pricing": FeatureWeightPricing,
	"online_ordering":      FeatureOnlineStore,
	"carcass_tracking":     FeatureBatchTracing,
	"cutting_yield":        FeatureBatchTracing,
}

// CanonicalFeature maps legacy feature codes onto current ones.
func CanonicalFeature(code string) string {
	if canonical, ok := legacyFeatureAliases[code]; ok {
		return canonical
	}
	return code
}

// KnownFeature reports whether code (after alias resolution) is a feature the
// platform understands.
func KnownFeature(code string) bool {
	switch CanonicalFeature(code) {
	case FeatureModule, FeatureWeightPricing, FeatureBatchTracing, FeatureOnlineStore:
		return true
	}
	return false
}

// ValidBusinessType reports whether bt names a supported business type.
func ValidBusinessType(bt BusinessType) bool {
	switch bt {
	case BusinessRetail, BusinessWholesale, BusinessProcessing, BusinessOnline, BusinessMultiOutlet:
		return true
	}
	return false
}
