// Package cli implements the yk-panel-ddns command line.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/config"
	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/controller"
	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/panel"
)

// Version is set at build time.
var Version = "dev"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// usageError marks errors caused by how the command was invoked.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

type app struct {
	stdout io.Writer
	stderr io.Writer
	stdin  *os.File

	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)

	configPath string
	user       string
	password   string
	baseURL    string
	zapOpts    zap.Options

	log logr.Logger
	cfg *config.Config
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:       stdout,
		stderr:       stderr,
		stdin:        os.Stdin,
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
		zapOpts:      zap.Options{Development: true},
		log:          logr.Discard(),
	}
}

// Execute runs the command line in args and returns the process exit status.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return newApp(stdout, stderr).execute(ctx, args)
}

func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCommand()
	root.SetArgs(normalizeArgs(root, args))

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(a.stderr, "error: %v\n", err)

	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprint(a.stderr, cmd.UsageString())
		return exitUsage
	}
	return exitError
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "yk-panel-ddns",
		Short:         "Keep DNS records at a hosting control panel pointed at this host",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.log = zap.New(zap.UseFlagOptions(&a.zapOpts), zap.WriteTo(a.stderr))
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageErrorf("unknown command %q", args[0])
			}
			return usageErrorf("a command is required")
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	flags.StringVar(&a.user, "user", "", "control panel username")
	flags.StringVar(&a.password, "password", "", "control panel password, prompted for when omitted on a terminal")
	flags.StringVar(&a.baseURL, "base-url", "", "control panel base URL (default "+panel.DefaultBaseURL+")")

	zapFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	a.zapOpts.BindFlags(zapFlags)
	flags.AddGoFlagSet(zapFlags)

	root.AddCommand(a.dnsCommand(), a.dynamicCommand())
	return root
}

// resolve merges the global flags into the loaded config, applies defaults
// and validates the result for mode. set applies command specific flags.
func (a *app) resolve(cmd *cobra.Command, mode config.Mode, set func(flags *pflag.FlagSet, cfg *config.Config)) (*config.Config, error) {
	cfg := *a.cfg
	flags := cmd.Flags()
	if flags.Changed("user") {
		cfg.Username = a.user
	}
	if flags.Changed("password") {
		cfg.Password = a.password
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = a.baseURL
	}
	set(flags, &cfg)
	if err := checkFilterFlags(flags); err != nil {
		return nil, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = panel.DefaultBaseURL
	}
	if cfg.Password == "" && cfg.Username != "" {
		if err := a.promptPassword(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(mode); err != nil {
		return nil, &usageError{err: err}
	}
	return &cfg, nil
}

// checkFilterFlags rejects record filters given without a value. An empty
// filter matches every record, so "--name ''" would widen the update.
func checkFilterFlags(flags *pflag.FlagSet) error {
	for _, name := range []string{"type", "name"} {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if len(config.SplitList(f.Value.String())) == 0 {
			if name == "name" {
				return usageErrorf("--name needs a value, use @ for the apex record")
			}
			return usageErrorf("--%s needs a value", name)
		}
	}
	return nil
}

func (a *app) promptPassword(cfg *config.Config) error {
	fd := int(a.stdin.Fd())
	if !a.isTerminal(fd) {
		return nil
	}
	fmt.Fprintf(a.stderr, "Password for %s: ", cfg.Username)
	pw, err := a.readPassword(fd)
	fmt.Fprintln(a.stderr)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	cfg.Password = strings.TrimSpace(string(pw))
	return nil
}

func (a *app) dialer(cfg *config.Config) func(ctx context.Context) (controller.SyncSession, error) {
	log := a.log.WithName("panel")
	return func(ctx context.Context) (controller.SyncSession, error) {
		s, err := panel.Dial(ctx, log, cfg.BaseURL, cfg.Username, cfg.Password,
			panel.WithUserAgent("yk-panel-ddns/"+Version))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &usageError{err: err}
	}
	return nil
}

// normalizeArgs accepts long options written with a single dash, e.g.
// "-user alice", by rewriting them to their double dash form. Only names of
// known long flags are rewritten.
func normalizeArgs(root *cobra.Command, args []string) []string {
	names := map[string]bool{"help": true, "version": true}
	var collect func(c *cobra.Command)
	collect = func(c *cobra.Command) {
		visit := func(f *pflag.Flag) { names[f.Name] = true }
		c.PersistentFlags().VisitAll(visit)
		c.Flags().VisitAll(visit)
		for _, sub := range c.Commands() {
			collect(sub)
		}
	}
	collect(root)

	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			return append(out, args[i:]...)
		}
		if strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--") {
			name, _, _ := strings.Cut(arg[1:], "=")
			if len(name) > 1 && names[name] {
				arg = "-" + arg
			}
		}
		out = append(out, arg)
	}
	return out
}
