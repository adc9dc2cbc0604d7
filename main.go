package main

import (
	"os"

	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/bayleafwalker/packhost/internal/cli"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(ctrl.SetupSignalHandler()); err != nil {
		os.Exit(1)
	}
}
