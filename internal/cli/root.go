// Package cli implements the packhost command line.
package cli

import (
	"context"
	goflag "flag"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

var version = "dev"

// SetVersion sets the version reported by --version.
func SetVersion(v string) { version = v }

type rootOptions struct {
	cfgFile string
	sets    []string
	zapOpts zap.Options

	v   *viper.Viper
	log logr.Logger
	// base is the starting point for every host the commands build.
	base hostOptions
}

// NewRootCommand builds the packhost command tree. Each call has its own
// viper instance.
func NewRootCommand() *cobra.Command {
	return newRootCommand(hostOptions{})
}

func newRootCommand(base hostOptions) *cobra.Command {
	o := &rootOptions{
		v:       viper.New(),
		zapOpts: zap.Options{Development: true},
		log:     logr.Discard(),
		base:    base,
	}

	cmd := &cobra.Command{
		Use:   "packhost",
		Short: "Discover, validate and start dependency-injected packages",
		Long: `packhost discovers packages from a directory or from PackageManifest
resources, checks their dependencies and version constraints, and initializes
them one at a time in dependency order.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			o.log = zap.New(zap.UseFlagOptions(&o.zapOpts), zap.WriteTo(cmd.ErrOrStderr()))
			ctrl.SetLogger(o.log)
			return readConfig(o.v, o.cfgFile)
		},
	}
	cmd.SetVersionTemplate(`{{printf "packhost version %s\n" .Version}}`)

	pf := cmd.PersistentFlags()
	pf.StringVarP(&o.cfgFile, "config", "c", "", "config file (default: ./packhost.yaml)")
	pf.StringP("packages-dir", "d", "", "directory whose subdirectories are packages")
	pf.String("marker", "", "keyword a manifest must carry to be loaded")
	pf.Duration("init-timeout", 0, "per-package init timeout, 0 waits indefinitely")
	pf.Bool("kube", false, "also discover PackageManifest resources")
	pf.String("namespace", "", "namespace for kube discovery, empty for all")
	pf.String("selector", "", "label selector for kube discovery")
	pf.StringArrayVar(&o.sets, "set", nil, "package config override, e.g. --set greeter.msg=hi")

	zfs := goflag.NewFlagSet("zap", goflag.ContinueOnError)
	o.zapOpts.BindFlags(zfs)
	pf.AddGoFlagSet(zfs)

	for key, flag := range map[string]string{
		"packages_dir":   "packages-dir",
		"marker":         "marker",
		"init_timeout":   "init-timeout",
		"kube.enabled":   "kube",
		"kube.namespace": "namespace",
		"kube.selector":  "selector",
	} {
		_ = o.v.BindPFlag(key, pf.Lookup(flag))
	}

	cmd.AddCommand(newRunCommand(o), newCheckCommand(o), newListCommand(o))
	return cmd
}

// settings resolves Settings after flags and config are read.
func (o *rootOptions) settings() (Settings, map[string]any, error) {
	s, err := loadSettings(o.v)
	if err != nil {
		return s, nil, err
	}
	overrides, err := parseSets(o.sets)
	if err != nil {
		return s, nil, err
	}
	return s, overrides, nil
}

func (o *rootOptions) newHost(cmd *cobra.Command) (*host, error) {
	s, overrides, err := o.settings()
	if err != nil {
		return nil, err
	}
	opts := o.base
	opts.overrides = overrides
	if opts.traceOut == nil {
		opts.traceOut = cmd.ErrOrStderr()
	}
	return newHost(s, o.log, opts)
}

// Execute runs the root command with ctx, which is canceled on shutdown
// signals by the caller.
func Execute(ctx context.Context) error {
	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}
