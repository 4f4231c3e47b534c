// Package config loads the recorder/CLI's runtime configuration (§6
// "Configuration"): the annotation store's base URL, an HTTP timeout for
// that store, and an optional metrics listen address. Grounded on the
// teacher's YAML-first config style (`gopkg.in/yaml.v3` tags throughout
// `analyzer/linage`) with an env-var overlay in the style of the pack's
// `driftlessaf` module (`github.com/sethvargo/go-envconfig`), so the same
// struct loads from a checked-in `config.yaml` in local runs and from
// `FLOWGRAPH_*` environment variables in CI.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the Recorder/CLI's full runtime configuration.
type Config struct {
	// AnnotationStoreURL is the base URL of a remote annotation.Store
	// (`annotation/remote`). Empty means "use the in-memory store" (§6
	// "absent configuration falls back to an empty in-memory store").
	AnnotationStoreURL string `yaml:"annotationStoreUrl" env:"FLOWGRAPH_ANNOTATION_STORE_URL"`

	// AnnotationTimeout bounds each remote annotation-store request.
	AnnotationTimeout time.Duration `yaml:"annotationTimeout" env:"FLOWGRAPH_ANNOTATION_TIMEOUT,default=5s"`

	// MetricsAddr, if non-empty, is the address the CLI exposes Prometheus
	// metrics on (`flowgraph/metrics.go`). Empty disables the listener.
	MetricsAddr string `yaml:"metricsAddr" env:"FLOWGRAPH_METRICS_ADDR"`

	// CaptureSlots toggles the builder's optional slot-capture pass (§4.8
	// step 5) by default for every recording this config drives.
	CaptureSlots bool `yaml:"captureSlots" env:"FLOWGRAPH_CAPTURE_SLOTS"`
}

// Default returns the zero-configuration Config: in-memory annotation
// store, no metrics listener, slot capture off.
func Default() Config {
	return Config{AnnotationTimeout: 5 * time.Second}
}

// Load reads path as YAML into Config, then overlays any set FLOWGRAPH_*
// environment variables (§6). A missing path is not an error: Load starts
// from Default() and applies only the environment overlay, letting the CLI
// run with zero configuration files present.
func Load(ctx context.Context, path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to the env overlay over Default()
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: env overlay: %w", err)
	}
	return cfg, nil
}
