package payments

import (
	"context"
	"sync"
	"time"

	"github.com/maxnate/infinit-butchery/internal/app/domain/payment"
	"github.com/maxnate/infinit-butchery/internal/app/system"
	"github.com/maxnate/infinit-butchery/pkg/logger"
)

var _ system.Service = (*Reconciler)(nil)

// Reconciler periodically re-verifies non-terminal transactions so payments
// settle even when a gateway webhook never arrives.
type Reconciler struct {
	service  *Service
	log      *logger.Logger
	interval time.Duration
	// minAge keeps freshly initiated transactions out of a verify storm.
	minAge time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewReconciler creates a lifecycle-managed payment reconciler.
func NewReconciler(service *Service, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.NewDefault("payments-reconciler")
	}
	return &Reconciler{
		service:  service,
		log:      log,
		interval: 2 * time.Minute,
		minAge:   time.Minute,
	}
}

func (r *Reconciler) Name() string { return "payments-reconciler" }

func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("payment reconciler started")
	return nil
}

func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("payment reconciler stopped")
	return nil
}

func (r *Reconciler) tick(ctx context.Context) {
	if r.service == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pending, err := r.service.store.ListPendingTransactions(ctx)
	if err != nil {
		r.log.WithError(err).Warn("payment reconciler tick failed")
		return
	}

	cutoff := time.Now().UTC().Add(-r.minAge)
	for _, tx := range pending {
		if tx.CreatedAt.After(cutoff) {
			continue
		}
		// Cash stays pending until staff confirm; nothing to poll.
		if tx.GatewayCode == (CashHandler{}).Code() {
			continue
		}
		updated, err := r.service.Verify(ctx, tx.ID)
		if err != nil {
			r.log.WithError(err).
				WithField("transaction_id", tx.ID).
				Warn("verify pending transaction failed")
			continue
		}
		if updated.Status != payment.TxPending && updated.Status != payment.TxInitiated {
			r.log.WithField("transaction_id", tx.ID).
				Infof("reconciled transaction to %s", updated.Status)
		}
	}
}
