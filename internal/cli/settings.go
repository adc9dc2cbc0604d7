package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bayleafwalker/packhost/internal/manifest"
	"github.com/bayleafwalker/packhost/internal/tracing"
)

const (
	envPrefix      = "PACKHOST"
	configFileName = "packhost"
)

// Settings is the host configuration. It is read from packhost.yaml, from
// PACKHOST_* environment variables and from flags, in increasing priority.
type Settings struct {
	PackagesDir     string        `mapstructure:"packages_dir"`
	Marker          string        `mapstructure:"marker"`
	InitTimeout     time.Duration `mapstructure:"init_timeout"`
	ScanConcurrency int           `mapstructure:"scan_concurrency"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	HealthAddr      string        `mapstructure:"health_addr"`

	Kube    KubeSettings   `mapstructure:"kube"`
	Tracing tracing.Config `mapstructure:"tracing"`

	// Config is handed to the injector as the root of every package scope.
	Config map[string]any `mapstructure:"config"`
}

type KubeSettings struct {
	Enabled bool `mapstructure:"enabled"`
	// Namespace limits discovery; empty means all namespaces.
	Namespace    string `mapstructure:"namespace"`
	Selector     string `mapstructure:"selector"`
	ReportStatus bool   `mapstructure:"report_status"`
	// Host is written to PackageManifest status so several hosts can share
	// a namespace.
	Host string `mapstructure:"host"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("packages_dir", "packages")
	v.SetDefault("marker", manifest.MarkerKeyword)
	v.SetDefault("init_timeout", "0s")
	v.SetDefault("scan_concurrency", 8)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("health_addr", "")
	v.SetDefault("kube.enabled", false)
	v.SetDefault("kube.report_status", true)

	t := tracing.DefaultConfig()
	v.SetDefault("tracing.enabled", t.Enabled)
	v.SetDefault("tracing.exporter", t.Exporter)
	v.SetDefault("tracing.sample_rate", t.SampleRate)
	v.SetDefault("tracing.service_name", t.ServiceName)
}

// readConfig loads cfgFile, or packhost.yaml from the working directory when
// cfgFile is empty. A missing default file is not an error.
func readConfig(v *viper.Viper, cfgFile string) error {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func loadSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("decode settings: %w", err)
	}
	if s.InitTimeout < 0 {
		return s, fmt.Errorf("init_timeout must not be negative, got %s", s.InitTimeout)
	}
	if s.ScanConcurrency < 1 {
		return s, fmt.Errorf("scan_concurrency must be at least 1, got %d", s.ScanConcurrency)
	}
	if s.PackagesDir == "" && !s.Kube.Enabled {
		return s, errors.New("no package source: set packages_dir or enable kube discovery")
	}
	return s, nil
}

// parseSets turns --set key=value pairs into a nested package config map.
func parseSets(pairs []string) (map[string]any, error) {
	out := make(map[string]any)
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", pair)
		}
		parts := strings.Split(key, ".")
		if slices.ContainsFunc(parts, func(p string) bool { return strings.TrimSpace(p) == "" }) {
			return nil, fmt.Errorf("invalid --set %q: key has an empty segment", pair)
		}
		m := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := m[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				m[p] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = value
	}
	return out, nil
}
