package publicip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/metrics"
)

// ChangeFunc is called with the new address whenever it differs from the
// address passed in the previous call.
type ChangeFunc func(ctx context.Context, ip string) error

// Watcher polls its providers and reports address changes.
type Watcher struct {
	log       logr.Logger
	providers []Provider
	interval  time.Duration
	metrics   *metrics.Metrics
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithMetrics records provider failures and address changes in m.
func WithMetrics(m *metrics.Metrics) WatcherOption {
	return func(w *Watcher) {
		w.metrics = m
	}
}

// NewWatcher creates a watcher asking providers in order every interval.
func NewWatcher(log logr.Logger, providers []Provider, interval time.Duration, opts ...WatcherOption) (*Watcher, error) {
	if len(providers) == 0 {
		return nil, errors.New("publicip: at least one provider is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("publicip: interval must be positive, got %s", interval)
	}
	w := &Watcher{
		log:       log,
		providers: providers,
		interval:  interval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch polls until ctx is done. The first observed address is always
// reported. onChange runs on the calling goroutine and the next poll starts
// one interval after it returns. An error from onChange is logged and
// polling continues, unless it is context.Canceled, which stops Watch and is
// returned. Watch returns nil when ctx is done.
func (w *Watcher) Watch(ctx context.Context, onChange ChangeFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		last    string
		stopErr error
	)
	w.log.Info("watching public IP", "providers", len(w.providers), "interval", w.interval)

	wait.UntilWithContext(ctx, func(ctx context.Context) {
		ip, ok := w.observe(ctx)
		if !ok || ip == last {
			return
		}

		w.log.Info("public IP changed", "previous", last, "current", ip)
		w.metrics.IPChanged()
		err := onChange(ctx, ip)
		last = ip

		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			stopErr = err
			cancel()
		default:
			w.log.Error(err, "handling public IP change failed", "ip", ip)
		}
	}, w.interval)

	return stopErr
}

// observe asks the providers in order and returns the first answer.
func (w *Watcher) observe(ctx context.Context) (string, bool) {
	var errs []error
	for _, p := range w.providers {
		ip, err := p.PublicIP(ctx)
		if err == nil {
			w.log.V(1).Info("observed public IP", "provider", p.String(), "ip", ip)
			return ip, true
		}
		if ctx.Err() != nil {
			return "", false
		}
		w.log.Error(err, "public IP provider failed, trying next", "provider", p.String())
		w.metrics.ProviderFailed(p.String())
		errs = append(errs, err)
	}
	w.log.Error(utilerrors.NewAggregate(errs), "no public IP observed this cycle")
	return "", false
}
