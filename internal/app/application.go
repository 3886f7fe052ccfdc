package app

import (
	"context"
	"fmt"

	"github.com/maxnate/infinit-butchery/internal/app/cache"
	"github.com/maxnate/infinit-butchery/internal/app/services/catalogsvc"
	"github.com/maxnate/infinit-butchery/internal/app/services/deliverysvc"
	"github.com/maxnate/infinit-butchery/internal/app/services/orders"
	"github.com/maxnate/infinit-butchery/internal/app/services/payments"
	"github.com/maxnate/infinit-butchery/internal/app/services/reports"
	"github.com/maxnate/infinit-butchery/internal/app/services/tenants"
	"github.com/maxnate/infinit-butchery/internal/app/storage"
	"github.com/maxnate/infinit-butchery/internal/app/storage/memory"
	"github.com/maxnate/infinit-butchery/internal/app/system"
	"github.com/maxnate/infinit-butchery/internal/app/tasks"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Tenants  storage.TenantStore
	Catalog  storage.CatalogStore
	Orders   storage.OrderStore
	Delivery storage.DeliveryStore
	Payments storage.PaymentStore
}

// Options carries the optional application dependencies.
type Options struct {
	StockCache *cache.StockCache
	// Events receives order status changes for realtime subscribers.
	Events orders.EventPublisher
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Tenants  *tenants.Service
	Catalog  *catalogsvc.Service
	Delivery *deliverysvc.Service
	Orders   *orders.Service
	Payments *payments.Service
	Reports  *reports.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Tenants == nil {
		stores.Tenants = mem
	}
	if stores.Catalog == nil {
		stores.Catalog = mem
	}
	if stores.Orders == nil {
		stores.Orders = mem
	}
	if stores.Delivery == nil {
		stores.Delivery = mem
	}
	if stores.Payments == nil {
		stores.Payments = mem
	}

	manager := system.NewManager()

	tenantService := tenants.New(stores.Tenants, log)
	catalogService := catalogsvc.New(stores.Catalog, stores.Tenants, opts.StockCache, log)
	deliveryService := deliverysvc.New(stores.Delivery, log)
	orderService := orders.New(stores.Orders, stores.Catalog, stores.Tenants, deliveryService, opts.Events, log)
	paymentService := payments.New(stores.Payments, stores.Tenants, orderService, log)
	reportService := reports.New(stores.Orders, stores.Catalog, log)

	reconciler := payments.NewReconciler(paymentService, log)
	scheduler := tasks.NewScheduler(stores.Tenants, stores.Payments, orderService, catalogService, reportService, log)

	for _, svc := range []system.Service{reconciler, scheduler} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:  manager,
		log:      log,
		Tenants:  tenantService,
		Catalog:  catalogService,
		Delivery: deliveryService,
		Orders:   orderService,
		Payments: paymentService,
		Reports:  reportService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
