package session

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// PresenceReconciler periodically re-fetches the authoritative online-user
// list and merges it into the presence set. Fetch failures are logged and
// skipped; the next cycle tries again.
type PresenceReconciler struct {
	presence *PresenceSet
	fetch    func(ctx context.Context) ([]string, error)
	interval time.Duration
	cron     *cron.Cron
}

func NewPresenceReconciler(presence *PresenceSet, fetch func(ctx context.Context) ([]string, error), interval time.Duration) *PresenceReconciler {
	return &PresenceReconciler{
		presence: presence,
		fetch:    fetch,
		interval: interval,
	}
}

// Start schedules the periodic reconciliation. Idempotent.
func (r *PresenceReconciler) Start() {
	if r.cron != nil {
		return
	}

	c := cron.New()
	_, err := c.AddFunc("@every "+r.interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		r.RunOnce(ctx)
	})
	if err != nil {
		log.Printf("[SESSION] Error scheduling presence reconciliation: %v", err)
		return
	}

	c.Start()
	r.cron = c
	log.Printf("[SESSION] Presence reconciliation scheduled every %s", r.interval)
}

// RunOnce performs a single reconciliation fetch-and-merge.
func (r *PresenceReconciler) RunOnce(ctx context.Context) {
	users, err := r.fetch(ctx)
	if err != nil {
		log.Printf("[SESSION] Presence reconciliation failed: %v", err)
		return
	}
	r.presence.Reconcile(users)
}

// Stop cancels the schedule. Idempotent.
func (r *PresenceReconciler) Stop() {
	if r.cron == nil {
		return
	}
	r.cron.Stop()
	r.cron = nil
}
