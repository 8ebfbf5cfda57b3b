package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/config"
	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/controller"
	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/dns"
)

func (a *app) dnsCommand() *cobra.Command {
	var domain, recordType, name, value string

	cmd := &cobra.Command{
		Use:   "dns",
		Short: "Point matching DNS records at a value once",
		Example: `  yk-panel-ddns dns --user alice --domain example.com --type A --name www --value 203.0.113.7
  yk-panel-ddns dns --user alice --domain example.com,example.org --type A,AAAA --value 2001:db8::7`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.resolve(cmd, config.ModeOneShot, func(flags *pflag.FlagSet, cfg *config.Config) {
				if flags.Changed("domain") {
					cfg.Domains = config.SplitList(domain)
				}
				if flags.Changed("type") {
					cfg.Types = config.SplitList(recordType)
				}
				if flags.Changed("name") {
					cfg.Names = config.SplitList(name)
				}
				if flags.Changed("value") {
					cfg.Value = value
				}
			})
			if err != nil {
				return err
			}

			r := &controller.UpdateReconciler{
				Log:     a.log.WithName("update"),
				Dial:    a.dialer(cfg),
				Domains: cfg.Domains,
				Filter:  dns.NewFilter(cfg.Types, cfg.Names),
			}
			res, err := r.Sync(cmd.Context(), cfg.Value)
			fmt.Fprint(a.stdout, dns.FormatResult(res))
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&domain, "domain", "", "domain whose records are updated, comma-separated for several")
	flags.StringVar(&recordType, "type", "", "only update records of this type, e.g. A (default all)")
	flags.StringVar(&name, "name", "", "only update records with this name relative to the domain, @ for the apex (default all)")
	flags.StringVar(&value, "value", "", "new record content")
	return cmd
}
