package main

import (
	"os"

	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/yuriy-kovalchuk/yk-panel-ddns/internal/cli"
)

var Version = "dev"

func main() {
	cli.Version = Version
	ctx := signals.SetupSignalHandler()
	os.Exit(cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr))
}
