package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/dns"
	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/metrics"
)

// SyncSession is a logged-in panel session that can be released.
type SyncSession interface {
	dns.Session
	Close() error
}

// UpdateReconciler points the DNS records of its domains at a new public IP.
// Every run uses a fresh session.
type UpdateReconciler struct {
	Log     logr.Logger
	Dial    func(ctx context.Context) (SyncSession, error)
	Domains []string
	Filter  dns.Filter
	Metrics *metrics.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Reconcile runs one update for ip. Failures are logged and swallowed so a
// watcher keeps polling; only cancellation of ctx is returned.
func (r *UpdateReconciler) Reconcile(ctx context.Context, ip string) error {
	_, err := r.Sync(ctx, ip)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	r.Log.Error(err, "updating DNS records failed", "ip", ip)
	return nil
}

// Sync dials a session, updates every matching record to ip and closes the
// session again. The result covers the domains processed before any error.
func (r *UpdateReconciler) Sync(ctx context.Context, ip string) (dns.Result, error) {
	r.Log.Info("updating DNS records", "ip", ip, "domains", r.Domains, "filter", r.Filter.String())

	session, err := r.Dial(ctx)
	if err != nil {
		r.Metrics.SyncFailed()
		return dns.Result{}, fmt.Errorf("opening panel session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.Log.V(1).Info("closing panel session failed", "error", err.Error())
		}
	}()

	res, err := dns.Sync(ctx, r.Log, session, ip, r.Domains, r.Filter)
	for _, d := range res.Domains {
		r.Metrics.RecordsUpdated(d.Domain, d.Updated)
		r.Metrics.VirtualSkipped(d.Domain, d.SkippedVirtual)
	}
	if err != nil {
		r.Metrics.SyncFailed()
		return res, err
	}

	r.Metrics.SyncSucceeded(r.now())
	r.Log.Info("DNS records updated", "ip", ip, "updated", res.Updated(), "skippedVirtual", res.SkippedVirtual())
	return res, nil
}

func (r *UpdateReconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
