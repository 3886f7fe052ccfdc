// Package tasks runs the scheduled housekeeping jobs: stale order checks, low
// stock and expiry alerts, transaction cleanup and weekly reports.
package tasks

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/maxnate/infinit-butchery/internal/app/domain/catalog"
	"github.com/maxnate/infinit-butchery/internal/app/services/catalogsvc"
	"github.com/maxnate/infinit-butchery/internal/app/services/orders"
	"github.com/maxnate/infinit-butchery/internal/app/services/reports"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
	"github.com/maxnate/infinit-butchery/internal/app/system"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

const (
	stalePendingAge    = 2 * time.Hour
	expiryAlertHorizon = 3 * 24 * time.Hour
	failedTxRetention  = 90 * 24 * time.Hour
	hourlySchedule     = "0 * * * *"
	dailySchedule      = "30 2 * * *"
	weeklySchedule     = "0 6 * * 1"
)

var _ system.Service = (*Scheduler)(nil)

// Scheduler wires the periodic jobs onto a cron runner.
type Scheduler struct {
	tenants  storage.TenantStore
	payments storage.PaymentStore
	orders   *orders.Service
	catalog  *catalogsvc.Service
	reports  *reports.Service
	log      *logger.Logger

	cron *cron.Cron
}

// NewScheduler creates the task scheduler.
func NewScheduler(tenants storage.TenantStore, payments storage.PaymentStore,
	orderSvc *orders.Service, catalogSvc *catalogsvc.Service, reportSvc *reports.Service,
	log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("tasks")
	}
	return &Scheduler{
		tenants:  tenants,
		payments: payments,
		orders:   orderSvc,
		catalog:  catalogSvc,
		reports:  reportSvc,
		log:      log,
	}
}

func (s *Scheduler) Name() string { return "task-scheduler" }

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(_ context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(hourlySchedule, s.Hourly); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(dailySchedule, s.Daily); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(weeklySchedule, s.Weekly); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("task scheduler started")
	return nil
}

// Stop halts the cron loop, waiting for running jobs.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("task scheduler stopped")
	return nil
}

// Hourly flags stale pending orders and low stock for every tenant.
func (s *Scheduler) Hourly() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		s.log.WithError(err).Warn("hourly task: list tenants failed")
		return
	}
	for _, t := range tenants {
		stale, err := s.orders.StalePending(ctx, t.ID, stalePendingAge)
		if err != nil {
			s.log.WithError(err).WithField("tenant_id", t.ID).Warn("stale pending check failed")
		} else {
			for _, o := range stale {
				s.log.WithField("tenant_id", t.ID).
					WithField("order_id", o.ID).
					Warnf("order pending for more than %s", stalePendingAge)
			}
		}

		low, err := s.catalog.LowStock(ctx, t.ID)
		if err != nil {
			s.log.WithError(err).WithField("tenant_id", t.ID).Warn("low stock check failed")
			continue
		}
		for _, item := range low {
			s.log.WithField("tenant_id", t.ID).
				Warnf("low stock: %s at %.2f (safety %.2f)", item.Product.Name, item.OnHand, item.Product.SafetyStock)
		}
	}
}

// Daily expires overdue batches, flags batches nearing expiry and prunes old
// failed transactions.
func (s *Scheduler) Daily() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		s.log.WithError(err).Warn("daily task: list tenants failed")
		return
	}
	now := time.Now().UTC()
	for _, t := range tenants {
		batches, err := s.catalog.ExpiringBatches(ctx, t.ID, expiryAlertHorizon)
		if err != nil {
			// Tenants without batch tracing simply have no batches.
			continue
		}
		for _, b := range batches {
			if b.ExpiryDate.Before(now) {
				if _, err := s.catalog.UpdateBatchStatus(ctx, t.ID, b.Code, catalog.BatchExpired); err != nil {
					s.log.WithError(err).WithField("tenant_id", t.ID).Warnf("expire batch %s failed", b.Code)
				}
				continue
			}
			s.log.WithField("tenant_id", t.ID).
				Warnf("batch %s expires on %s", b.Code, b.ExpiryDate.Format("2006-01-02"))
		}

		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		sum, err := s.reports.Summarize(ctx, t.ID, dayStart.AddDate(0, 0, -1), dayStart)
		if err != nil {
			s.log.WithError(err).WithField("tenant_id", t.ID).Warn("daily stats failed")
			continue
		}
		s.log.WithField("tenant_id", t.ID).
			Infof("yesterday: %d orders, revenue %.2f, %d cancelled", sum.Orders, sum.Revenue, sum.Cancelled)
	}

	deleted, err := s.payments.DeleteFailedTransactionsBefore(ctx, now.Add(-failedTxRetention))
	if err != nil {
		s.log.WithError(err).Warn("failed transaction cleanup failed")
		return
	}
	if deleted > 0 {
		s.log.Infof("pruned %d failed transactions", deleted)
	}
}

// Weekly logs the trailing-week report per tenant.
func (s *Scheduler) Weekly() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		s.log.WithError(err).Warn("weekly task: list tenants failed")
		return
	}
	for _, t := range tenants {
		report, err := s.reports.LastWeek(ctx, t.ID)
		if err != nil {
			s.log.WithError(err).WithField("tenant_id", t.ID).Warn("weekly report failed")
			continue
		}
		s.log.WithField("tenant_id", t.ID).
			Infof("weekly report: %d orders, revenue %.2f, %d cancelled",
				report.Summary.Orders, report.Summary.Revenue, report.Summary.Cancelled)
	}
}
