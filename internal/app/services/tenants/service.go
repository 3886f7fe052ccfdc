// Package tenants manages butchery businesses, their feature flags and staff
// accounts.
package tenants

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

// Service provides tenant provisioning and feature management.
type Service struct {
	store storage.TenantStore
	log   *logger.Logger
}

// New creates the tenant service.
func New(store storage.TenantStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tenants")
	}
	return &Service{store: store, log: log}
}

// CreateInput carries the fields for provisioning a tenant.
type CreateInput struct {
	Name         string
	Subdomain    string
	Currency     string
	TaxRate      float64
	BusinessType tenant.BusinessType
}

// Create provisions a tenant with the default feature set for its business
// type.
func (s *Service) Create(ctx context.Context, in CreateInput) (tenant.Tenant, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return tenant.Tenant{}, fmt.Errorf("tenant name is required")
	}
	bt := in.BusinessType
	if bt == "" {
		bt = tenant.BusinessRetail
	}
	if !tenant.ValidBusinessType(bt) {
		return tenant.Tenant{}, fmt.Errorf("unknown business type %q", bt)
	}
	if in.TaxRate < 0 || in.TaxRate > 100 {
		return tenant.Tenant{}, fmt.Errorf("tax rate must be between 0 and 100")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "ZMW"
	}

	created, err := s.store.CreateTenant(ctx, tenant.Tenant{
		Name:         name,
		Subdomain:    normalizeSubdomain(in.Subdomain),
		Currency:     currency,
		TaxRate:      in.TaxRate,
		BusinessType: bt,
		Features:     tenant.DefaultFeatures(bt),
	})
	if err != nil {
		return tenant.Tenant{}, err
	}
	s.log.WithField("tenant_id", created.ID).Infof("tenant %s provisioned (%s)", created.Name, created.BusinessType)
	return created, nil
}

func normalizeSubdomain(sub string) string {
	return strings.ToLower(strings.TrimSpace(sub))
}

// Get returns a tenant by ID.
func (s *Service) Get(ctx context.Context, id string) (tenant.Tenant, error) {
	return s.store.GetTenant(ctx, id)
}

// Resolve finds the tenant for a request: by explicit ID when given,
// otherwise by the subdomain of the host.
func (s *Service) Resolve(ctx context.Context, tenantID, host string) (tenant.Tenant, error) {
	if tenantID != "" {
		return s.store.GetTenant(ctx, tenantID)
	}
	sub := subdomainOf(host)
	if sub == "" {
		return tenant.Tenant{}, fmt.Errorf("no tenant identifier in request")
	}
	return s.store.GetTenantBySubdomain(ctx, sub)
}

func subdomainOf(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	parts := strings.Split(host, ".")
	if len(parts) < 3 {
		return ""
	}
	sub := strings.ToLower(parts[0])
	if sub == "www" {
		return ""
	}
	return sub
}

// List returns all tenants.
func (s *Service) List(ctx context.Context) ([]tenant.Tenant, error) {
	return s.store.ListTenants(ctx)
}

// UpdateSettings changes a tenant's display and billing settings.
func (s *Service) UpdateSettings(ctx context.Context, id string, name, currency string, taxRate float64) (tenant.Tenant, error) {
	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return tenant.Tenant{}, err
	}
	if name = strings.TrimSpace(name); name != "" {
		t.Name = name
	}
	if currency = strings.ToUpper(strings.TrimSpace(currency)); currency != "" {
		t.Currency = currency
	}
	if taxRate < 0 || taxRate > 100 {
		return tenant.Tenant{}, fmt.Errorf("tax rate must be between 0 and 100")
	}
	t.TaxRate = taxRate
	return s.store.UpdateTenant(ctx, t)
}

// FeatureEnabled reports whether the feature is on for the tenant. The master
// switch gates every other feature, and legacy codes resolve to their current
// names.
func (s *Service) FeatureEnabled(t tenant.Tenant, code string) bool {
	code = tenant.CanonicalFeature(code)
	if !t.Features[tenant.FeatureModule] {
		return false
	}
	return t.Features[code]
}

// SetFeature toggles a feature flag for the tenant.
func (s *Service) SetFeature(ctx context.Context, tenantID, code string, enabled bool) (tenant.Tenant, error) {
	code = tenant.CanonicalFeature(code)
	if !tenant.KnownFeature(code) {
		return tenant.Tenant{}, fmt.Errorf("unknown feature %q", code)
	}
	t, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return tenant.Tenant{}, err
	}
	if t.Features == nil {
		t.Features = make(map[string]bool)
	}
	t.Features[code] = enabled
	updated, err := s.store.UpdateTenant(ctx, t)
	if err != nil {
		return tenant.Tenant{}, err
	}
	s.log.WithField("tenant_id", tenantID).Infof("feature %s set to %t", code, enabled)
	return updated, nil
}

// Features returns the effective feature map for the tenant, with every flag
// forced off when the master switch is disabled.
func (s *Service) Features(t tenant.Tenant) map[string]bool {
	effective := make(map[string]bool, len(t.Features))
	master := t.Features[tenant.FeatureModule]
	for code, on := range t.Features {
		effective[code] = master && on
	}
	effective[tenant.FeatureModule] = master
	return effective
}

// CreateStaff registers a staff account with a bcrypt password hash.
func (s *Service) CreateStaff(ctx context.Context, tenantID, email, name, password string, role tenant.StaffRole) (tenant.StaffUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return tenant.StaffUser{}, fmt.Errorf("valid email is required")
	}
	if len(password) < 8 {
		return tenant.StaffUser{}, fmt.Errorf("password must be at least 8 characters")
	}
	if role != tenant.RoleAdmin && role != tenant.RoleStaff {
		return tenant.StaffUser{}, fmt.Errorf("unknown role %q", role)
	}
	if _, err := s.store.GetTenant(ctx, tenantID); err != nil {
		return tenant.StaffUser{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return tenant.StaffUser{}, fmt.Errorf("hash password: %w", err)
	}
	created, err := s.store.CreateStaffUser(ctx, tenant.StaffUser{
		TenantID:     tenantID,
		Email:        email,
		Name:         strings.TrimSpace(name),
		Role:         role,
		PasswordHash: string(hash),
		Active:       true,
	})
	if err != nil {
		return tenant.StaffUser{}, err
	}
	s.log.WithField("tenant_id", tenantID).Infof("staff user %s created with role %s", email, role)
	return created, nil
}

// Authenticate verifies staff credentials. Inactive accounts cannot sign in.
func (s *Service) Authenticate(ctx context.Context, tenantID, email, password string) (tenant.StaffUser, error) {
	u, err := s.store.GetStaffUserByEmail(ctx, tenantID, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return tenant.StaffUser{}, fmt.Errorf("invalid credentials")
	}
	if !u.Active {
		return tenant.StaffUser{}, fmt.Errorf("account is disabled")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return tenant.StaffUser{}, fmt.Errorf("invalid credentials")
	}
	return u, nil
}
