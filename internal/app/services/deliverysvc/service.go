// Package deliverysvc manages delivery zones and order-time availability.
package deliverysvc

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/maxnate/infinit-butchery/internal/app/domain/delivery"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

// Service provides delivery zone operations.
type Service struct {
	store storage.DeliveryStore
	log   *logger.Logger
	now   func() time.Time
}

// New creates the delivery service.
func New(store storage.DeliveryStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("delivery")
	}
	return &Service{store: store, log: log, now: time.Now}
}

// CreateZone validates and stores a delivery zone.
func (s *Service) CreateZone(ctx context.Context, z delivery.Zone) (delivery.Zone, error) {
	if err := validateZone(&z); err != nil {
		return delivery.Zone{}, err
	}
	created, err := s.store.CreateZone(ctx, z)
	if err != nil {
		return delivery.Zone{}, err
	}
	s.log.WithField("tenant_id", z.TenantID).Infof("delivery zone %s created", created.Name)
	return created, nil
}

// UpdateZone validates and stores the zone.
func (s *Service) UpdateZone(ctx context.Context, z delivery.Zone) (delivery.Zone, error) {
	if err := validateZone(&z); err != nil {
		return delivery.Zone{}, err
	}
	return s.store.UpdateZone(ctx, z)
}

var zoneCodeCleaner = regexp.MustCompile(`[^A-Z0-9]+`)

func validateZone(z *delivery.Zone) error {
	z.Name = strings.TrimSpace(z.Name)
	if z.Name == "" {
		return fmt.Errorf("zone name is required")
	}
	if z.Code == "" {
		z.Code = z.Name
	}
	z.Code = strings.Trim(zoneCodeCleaner.ReplaceAllString(strings.ToUpper(z.Code), "-"), "-")
	if z.Fee < 0 {
		return fmt.Errorf("delivery fee cannot be negative")
	}
	if z.MinOrderAmount < 0 {
		return fmt.Errorf("minimum order amount cannot be negative")
	}
	if z.Days == "" {
		z.Days = delivery.DaysDaily
	}
	switch z.Days {
	case delivery.DaysDaily, delivery.DaysWeekdays, delivery.DaysWeekends:
	case delivery.DaysCustom:
		if err := validateCustomDays(z.CustomDays); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown delivery days rule %q", z.Days)
	}
	if z.CutoffTime != "" {
		if _, err := time.Parse("15:04", z.CutoffTime); err != nil {
			return fmt.Errorf("cutoff time must be HH:MM")
		}
	}
	return nil
}

func validateCustomDays(list string) error {
	days := strings.Split(list, ",")
	if strings.TrimSpace(list) == "" {
		return fmt.Errorf("custom delivery days need at least one day")
	}
	for _, d := range days {
		d = strings.TrimSpace(d)
		valid := false
		for _, name := range delivery.WeekdayNames {
			if d == name {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("unknown weekday %q in custom days", d)
		}
	}
	return nil
}

// GetZone returns a zone scoped to the tenant.
func (s *Service) GetZone(ctx context.Context, tenantID, id string) (delivery.Zone, error) {
	z, err := s.store.GetZone(ctx, id)
	if err != nil {
		return delivery.Zone{}, err
	}
	if z.TenantID != tenantID {
		return delivery.Zone{}, fmt.Errorf("zone %s not found", id)
	}
	return z, nil
}

// ListZones returns the tenant's zones.
func (s *Service) ListZones(ctx context.Context, tenantID string, activeOnly bool) ([]delivery.Zone, error) {
	return s.store.ListZones(ctx, tenantID, activeOnly)
}

// Availability reports each active zone's readiness to take an order of the
// given amount right now.
func (s *Service) Availability(ctx context.Context, tenantID string, orderAmount float64) ([]delivery.Availability, error) {
	zones, err := s.store.ListZones(ctx, tenantID, true)
	if err != nil {
		return nil, err
	}
	now := s.now()
	result := make([]delivery.Availability, 0, len(zones))
	for _, z := range zones {
		result = append(result, availabilityOf(z, orderAmount, now))
	}
	return result, nil
}

func availabilityOf(z delivery.Zone, orderAmount float64, now time.Time) delivery.Availability {
	a := delivery.Availability{Zone: z, Available: true}
	switch {
	case !z.DeliversOn(now):
		a.Available = false
		a.Reason = fmt.Sprintf("no delivery on %s", now.Format("Monday"))
	case !z.WithinCutoff(now):
		a.Available = false
		a.Reason = fmt.Sprintf("orders close at %s", z.CutoffTime)
	case orderAmount > 0 && orderAmount < z.MinOrderAmount:
		a.Available = false
		a.Reason = fmt.Sprintf("minimum order is %.2f", z.MinOrderAmount)
	}
	return a
}

// ZoneForArea finds the first active zone covering the area or postal code.
func (s *Service) ZoneForArea(ctx context.Context, tenantID, area, postalCode string) (delivery.Zone, error) {
	zones, err := s.store.ListZones(ctx, tenantID, true)
	if err != nil {
		return delivery.Zone{}, err
	}
	for _, z := range zones {
		if (area != "" && z.CoversArea(area)) || (postalCode != "" && z.CoversPostalCode(postalCode)) {
			return z, nil
		}
	}
	return delivery.Zone{}, fmt.Errorf("no delivery zone covers the address")
}

// CheckZone verifies a zone can take an order of the given amount now. It
// returns the zone so callers can price the delivery fee.
func (s *Service) CheckZone(ctx context.Context, tenantID, zoneID string, orderAmount float64) (delivery.Zone, error) {
	z, err := s.GetZone(ctx, tenantID, zoneID)
	if err != nil {
		return delivery.Zone{}, err
	}
	if !z.Active {
		return delivery.Zone{}, fmt.Errorf("zone %s is not active", z.Name)
	}
	a := availabilityOf(z, orderAmount, s.now())
	if !a.Available {
		return delivery.Zone{}, fmt.Errorf("zone %s unavailable: %s", z.Name, a.Reason)
	}
	return z, nil
}
