package deliverysvc

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/maxnate/infinit-butchery/internal/app/domain/delivery"
	"github.com/maxnate/infinit-butchery/internal/app/storage/memory"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	log := logger.NewDefault("delivery-test")
	log.SetOutput(io.Discard)
	return New(memory.New(), log)
}

// fixedClock pins the service to a known instant.
// 2026-08-24 is a Monday.
func fixedClock(svc *Service, value string) {
	at, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		panic(err)
	}
	svc.now = func() time.Time { return at }
}

func TestCreateZoneValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateZone(ctx, delivery.Zone{TenantID: "t1", Name: " "}); err == nil {
		t.Fatal("expected empty name to be rejected")
	}
	if _, err := svc.CreateZone(ctx, delivery.Zone{TenantID: "t1", Name: "CBD", Fee: -5}); err == nil {
		t.Fatal("expected negative fee to be rejected")
	}
	if _, err := svc.CreateZone(ctx, delivery.Zone{TenantID: "t1", Name: "CBD", CutoffTime: "25:00"}); err == nil {
		t.Fatal("expected bad cutoff time to be rejected")
	}
	if _, err := svc.CreateZone(ctx, delivery.Zone{
		TenantID: "t1", Name: "CBD", Days: delivery.DaysCustom, CustomDays: "Mon, Funday",
	}); err == nil {
		t.Fatal("expected unknown weekday to be rejected")
	}

	z, err := svc.CreateZone(ctx, delivery.Zone{TenantID: "t1", Name: "CBD", Fee: 5, Active: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if z.Days != delivery.DaysDaily {
		t.Fatalf("days = %q, want Daily default", z.Days)
	}
	if z.Code != "CBD" {
		t.Fatalf("code = %q, want CBD", z.Code)
	}

	z, err = svc.CreateZone(ctx, delivery.Zone{TenantID: "t1", Name: "South Bank / Riverside"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if z.Code != "SOUTH-BANK-RIVERSIDE" {
		t.Fatalf("code = %q, want SOUTH-BANK-RIVERSIDE", z.Code)
	}
}

func TestAvailabilityRules(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	weekdays, err := svc.CreateZone(ctx, delivery.Zone{
		TenantID: "t1", Name: "Weekday Zone", Days: delivery.DaysWeekdays,
		CutoffTime: "14:00", MinOrderAmount: 50, Active: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Monday 10:00, order above minimum: available.
	fixedClock(svc, "2026-08-24 10:00")
	got, err := svc.Availability(ctx, "t1", 80)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(got) != 1 || !got[0].Available {
		t.Fatalf("want available, got %+v", got)
	}

	// Monday 15:00: past cutoff.
	fixedClock(svc, "2026-08-24 15:00")
	got, _ = svc.Availability(ctx, "t1", 80)
	if got[0].Available || got[0].Reason == "" {
		t.Fatalf("want cutoff block, got %+v", got[0])
	}

	// Saturday: weekday-only zone closed.
	fixedClock(svc, "2026-08-29 10:00")
	got, _ = svc.Availability(ctx, "t1", 80)
	if got[0].Available {
		t.Fatal("want weekend block")
	}

	// Monday but below minimum order.
	fixedClock(svc, "2026-08-24 10:00")
	got, _ = svc.Availability(ctx, "t1", 20)
	if got[0].Available {
		t.Fatal("want minimum order block")
	}

	if _, err := svc.CheckZone(ctx, "t1", weekdays.ID, 80); err != nil {
		t.Fatalf("check zone: %v", err)
	}
	if _, err := svc.CheckZone(ctx, "t1", weekdays.ID, 20); err == nil {
		t.Fatal("expected minimum order failure")
	}
}

func TestCustomDays(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateZone(ctx, delivery.Zone{
		TenantID: "t1", Name: "Market Days", Days: delivery.DaysCustom,
		CustomDays: "Wed, Sat", Active: true,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	fixedClock(svc, "2026-08-26 10:00") // Wednesday
	got, _ := svc.Availability(ctx, "t1", 0)
	if !got[0].Available {
		t.Fatal("want Wednesday available")
	}

	fixedClock(svc, "2026-08-27 10:00") // Thursday
	got, _ = svc.Availability(ctx, "t1", 0)
	if got[0].Available {
		t.Fatal("want Thursday blocked")
	}
}

func TestZoneForArea(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cbd, err := svc.CreateZone(ctx, delivery.Zone{
		TenantID: "t1", Name: "CBD", Areas: "Downtown\nHarbourfront", PostalCodes: "1000\n1001", Active: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateZone(ctx, delivery.Zone{
		TenantID: "t1", Name: "Suburbs", Areas: "Hillside", Active: true,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	z, err := svc.ZoneForArea(ctx, "t1", "downtown", "")
	if err != nil {
		t.Fatalf("zone for area: %v", err)
	}
	if z.ID != cbd.ID {
		t.Fatalf("zone = %s, want CBD", z.Name)
	}

	z, err = svc.ZoneForArea(ctx, "t1", "", "1001")
	if err != nil {
		t.Fatalf("zone for postal code: %v", err)
	}
	if z.ID != cbd.ID {
		t.Fatalf("zone = %s, want CBD", z.Name)
	}

	if _, err := svc.ZoneForArea(ctx, "t1", "Nowhere", "9999"); err == nil {
		t.Fatal("expected no zone for uncovered address")
	}
}
