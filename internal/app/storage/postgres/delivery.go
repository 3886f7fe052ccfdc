package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maxnate/infinit-butchery/internal/app/domain/delivery"
)

type zoneRow struct {
	ID             string    `db:"id"`
	TenantID       string    `db:"tenant_id"`
	Name           string    `db:"name"`
	Code           string    `db:"code"`
	Fee            float64   `db:"fee"`
	MinOrderAmount float64   `db:"min_order_amount"`
	Days           string    `db:"days"`
	CustomDays     string    `db:"custom_days"`
	CutoffTime     string    `db:"cutoff_time"`
	Areas          string    `db:"areas"`
	PostalCodes    string    `db:"postal_codes"`
	EstimatedHours int       `db:"estimated_hours"`
	Active         bool      `db:"active"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r zoneRow) toDomain() delivery.Zone {
	return delivery.Zone{
		ID:             r.ID,
		TenantID:       r.TenantID,
		Name:           r.Name,
		Code:           r.Code,
		Fee:            r.Fee,
		MinOrderAmount: r.MinOrderAmount,
		Days:           delivery.DaysRule(r.Days),
		CustomDays:     r.CustomDays,
		CutoffTime:     r.CutoffTime,
		Areas:          r.Areas,
		PostalCodes:    r.PostalCodes,
		EstimatedHours: r.EstimatedHours,
		Active:         r.Active,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (s *Store) CreateZone(ctx context.Context, z delivery.Zone) (delivery.Zone, error) {
	if z.ID == "" {
		z.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	z.CreatedAt = now
	z.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivery_zones (id, tenant_id, name, code, fee, min_order_amount, days, custom_days,
		                            cutoff_time, areas, postal_codes, estimated_hours, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		z.ID, z.TenantID, z.Name, z.Code, z.Fee, z.MinOrderAmount, string(z.Days), z.CustomDays,
		z.CutoffTime, z.Areas, z.PostalCodes, z.EstimatedHours, z.Active, z.CreatedAt, z.UpdatedAt)
	if err != nil {
		return delivery.Zone{}, fmt.Errorf("insert delivery zone: %w", err)
	}
	return z, nil
}

func (s *Store) UpdateZone(ctx context.Context, z delivery.Zone) (delivery.Zone, error) {
	z.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE delivery_zones
		SET name = $2, code = $3, fee = $4, min_order_amount = $5, days = $6, custom_days = $7,
		    cutoff_time = $8, areas = $9, postal_codes = $10, estimated_hours = $11, active = $12, updated_at = $13
		WHERE id = $1`,
		z.ID, z.Name, z.Code, z.Fee, z.MinOrderAmount, string(z.Days), z.CustomDays,
		z.CutoffTime, z.Areas, z.PostalCodes, z.EstimatedHours, z.Active, z.UpdatedAt)
	if err != nil {
		return delivery.Zone{}, fmt.Errorf("update delivery zone: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return delivery.Zone{}, fmt.Errorf("zone %s not found", z.ID)
	}
	return z, nil
}

func (s *Store) GetZone(ctx context.Context, id string) (delivery.Zone, error) {
	var row zoneRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM delivery_zones WHERE id = $1`, id)
	if isNoRows(err) {
		return delivery.Zone{}, fmt.Errorf("zone %s not found", id)
	}
	if err != nil {
		return delivery.Zone{}, fmt.Errorf("get delivery zone: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListZones(ctx context.Context, tenantID string, activeOnly bool) ([]delivery.Zone, error) {
	query := `SELECT * FROM delivery_zones WHERE tenant_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY name`

	var rows []zoneRow
	if err := s.db.SelectContext(ctx, &rows, query, tenantID); err != nil {
		return nil, fmt.Errorf("list delivery zones: %w", err)
	}
	result := make([]delivery.Zone, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}
