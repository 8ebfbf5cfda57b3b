package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/config"
	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/controller"
	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/dns"
	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/metrics"
	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/publicip"
)

func (a *app) dynamicCommand() *cobra.Command {
	var (
		urls, domain, recordType, name string
		intervalMillis                 int64
		metricsAddr, lockFile          string
	)

	cmd := &cobra.Command{
		Use:   "dynamic",
		Short: "Watch the public IP and update matching DNS records whenever it changes",
		Example: `  yk-panel-ddns dynamic --user alice --url https://api.ipify.org,https://ifconfig.me/ip \
    --interval 60000 --domain example.com --type A`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.resolve(cmd, config.ModeDynamic, func(flags *pflag.FlagSet, cfg *config.Config) {
				if flags.Changed("url") {
					cfg.URLs = config.SplitList(urls)
				}
				if flags.Changed("interval") {
					cfg.Interval = time.Duration(intervalMillis) * time.Millisecond
				}
				if flags.Changed("domain") {
					cfg.Domains = config.SplitList(domain)
				}
				if flags.Changed("type") {
					cfg.Types = config.SplitList(recordType)
				}
				if flags.Changed("name") {
					cfg.Names = config.SplitList(name)
				}
				if flags.Changed("metrics-addr") {
					cfg.MetricsAddr = metricsAddr
				}
				if flags.Changed("lock-file") {
					cfg.LockFile = lockFile
				}
			})
			if err != nil {
				return err
			}
			return a.runDynamic(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&urls, "url", "", "public IP sources in order of preference, comma-separated (http(s)://... or iface://NAME)")
	flags.Int64Var(&intervalMillis, "interval", 0, "milliseconds between public IP checks")
	flags.StringVar(&domain, "domain", "", "domains whose records are updated, comma-separated")
	flags.StringVar(&recordType, "type", "", "only update records of this type, e.g. A (default all)")
	flags.StringVar(&name, "name", "", "only update records with this name relative to the domain, @ for the apex (default all)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090 (default disabled)")
	flags.StringVar(&lockFile, "lock-file", "", "hold an exclusive lock on this file while running")
	return cmd
}

func (a *app) runDynamic(ctx context.Context, cfg *config.Config) error {
	log := a.log.WithName("setup")

	providers, err := publicip.NewProviders(cfg.URLs)
	if err != nil {
		return &usageError{err: err}
	}

	if cfg.LockFile != "" {
		lock := flock.New(cfg.LockFile)
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("locking %s: %w", cfg.LockFile, err)
		}
		if !locked {
			return fmt.Errorf("another instance is already running (lock %s is held)", cfg.LockFile)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				log.Error(err, "unable to release lock", "path", cfg.LockFile)
			}
		}()
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
	}

	watcher, err := publicip.NewWatcher(a.log.WithName("watcher"), providers, cfg.Interval, publicip.WithMetrics(m))
	if err != nil {
		return &usageError{err: err}
	}
	reconciler := &controller.UpdateReconciler{
		Log:     a.log.WithName("update"),
		Dial:    a.dialer(cfg),
		Domains: cfg.Domains,
		Filter:  dns.NewFilter(cfg.Types, cfg.Names),
		Metrics: m,
	}

	log.Info("starting yk-panel-ddns", "version", Version, "baseURL", cfg.BaseURL, "domains", cfg.Domains)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	if m != nil {
		g.Go(func() error {
			return metrics.Serve(ctx, a.log.WithName("metrics"), cfg.MetricsAddr, m)
		})
	}
	g.Go(func() error {
		defer cancel()
		err := watcher.Watch(ctx, reconciler.Reconcile)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}
