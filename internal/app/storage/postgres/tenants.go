package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maxnate/infinit-butchery/internal/app/domain/tenant"
)

type tenantRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Subdomain    string    `db:"subdomain"`
	Currency     string    `db:"currency"`
	TaxRate      float64   `db:"tax_rate"`
	BusinessType string    `db:"business_type"`
	Features     []byte    `db:"features"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r tenantRow) toDomain() (tenant.Tenant, error) {
	t := tenant.Tenant{
		ID:           r.ID,
		Name:         r.Name,
		Subdomain:    r.Subdomain,
		Currency:     r.Currency,
		TaxRate:      r.TaxRate,
		BusinessType: tenant.BusinessType(r.BusinessType),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if len(r.Features) > 0 {
		if err := json.Unmarshal(r.Features, &t.Features); err != nil {
			return tenant.Tenant{}, fmt.Errorf("decode tenant features: %w", err)
		}
	}
	return t, nil
}

func (s *Store) CreateTenant(ctx context.Context, t tenant.Tenant) (tenant.Tenant, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	features, err := json.Marshal(t.Features)
	if err != nil {
		return tenant.Tenant{}, fmt.Errorf("encode tenant features: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, subdomain, currency, tax_rate, business_type, features, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Name, t.Subdomain, t.Currency, t.TaxRate, string(t.BusinessType), features, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return tenant.Tenant{}, fmt.Errorf("insert tenant: %w", err)
	}
	return t, nil
}

func (s *Store) UpdateTenant(ctx context.Context, t tenant.Tenant) (tenant.Tenant, error) {
	t.UpdatedAt = time.Now().UTC()
	features, err := json.Marshal(t.Features)
	if err != nil {
		return tenant.Tenant{}, fmt.Errorf("encode tenant features: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenants
		SET name = $2, subdomain = $3, currency = $4, tax_rate = $5, business_type = $6, features = $7, updated_at = $8
		WHERE id = $1`,
		t.ID, t.Name, t.Subdomain, t.Currency, t.TaxRate, string(t.BusinessType), features, t.UpdatedAt)
	if err != nil {
		return tenant.Tenant{}, fmt.Errorf("update tenant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tenant.Tenant{}, fmt.Errorf("tenant %s not found", t.ID)
	}
	return s.GetTenant(ctx, t.ID)
}

func (s *Store) GetTenant(ctx context.Context, id string) (tenant.Tenant, error) {
	var row tenantRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM tenants WHERE id = $1`, id)
	if isNoRows(err) {
		return tenant.Tenant{}, fmt.Errorf("tenant %s not found", id)
	}
	if err != nil {
		return tenant.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return row.toDomain()
}

func (s *Store) GetTenantBySubdomain(ctx context.Context, subdomain string) (tenant.Tenant, error) {
	var row tenantRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM tenants WHERE subdomain = $1`, subdomain)
	if isNoRows(err) {
		return tenant.Tenant{}, fmt.Errorf("tenant with subdomain %s not found", subdomain)
	}
	if err != nil {
		return tenant.Tenant{}, fmt.Errorf("get tenant by subdomain: %w", err)
	}
	return row.toDomain()
}

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	var rows []tenantRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM tenants ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	result := make([]tenant.Tenant, 0, len(rows))
	for _, row := range rows {
		t, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, nil
}

type staffRow struct {
	ID           string    `db:"id"`
	TenantID     string    `db:"tenant_id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	Role         string    `db:"role"`
	PasswordHash string    `db:"password_hash"`
	Active       bool      `db:"active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r staffRow) toDomain() tenant.StaffUser {
	return tenant.StaffUser{
		ID:           r.ID,
		TenantID:     r.TenantID,
		Email:        r.Email,
		Name:         r.Name,
		Role:         tenant.StaffRole(r.Role),
		PasswordHash: r.PasswordHash,
		Active:       r.Active,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (s *Store) CreateStaffUser(ctx context.Context, u tenant.StaffUser) (tenant.StaffUser, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staff_users (id, tenant_id, email, name, role, password_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.TenantID, u.Email, u.Name, string(u.Role), u.PasswordHash, u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return tenant.StaffUser{}, fmt.Errorf("insert staff user: %w", err)
	}
	return u, nil
}

func (s *Store) UpdateStaffUser(ctx context.Context, u tenant.StaffUser) (tenant.StaffUser, error) {
	u.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE staff_users
		SET email = $2, name = $3, role = $4, password_hash = $5, active = $6, updated_at = $7
		WHERE id = $1`,
		u.ID, u.Email, u.Name, string(u.Role), u.PasswordHash, u.Active, u.UpdatedAt)
	if err != nil {
		return tenant.StaffUser{}, fmt.Errorf("update staff user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tenant.StaffUser{}, fmt.Errorf("staff user %s not found", u.ID)
	}
	return u, nil
}

func (s *Store) GetStaffUserByEmail(ctx context.Context, tenantID, email string) (tenant.StaffUser, error) {
	var row staffRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM staff_users WHERE tenant_id = $1 AND lower(email) = lower($2)`, tenantID, email)
	if isNoRows(err) {
		return tenant.StaffUser{}, fmt.Errorf("staff user %s not found", email)
	}
	if err != nil {
		return tenant.StaffUser{}, fmt.Errorf("get staff user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListStaffUsers(ctx context.Context, tenantID string) ([]tenant.StaffUser, error) {
	var rows []staffRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM staff_users WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list staff users: %w", err)
	}
	result := make([]tenant.StaffUser, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}
