package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearFlowgraphEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FLOWGRAPH_ANNOTATION_STORE_URL",
		"FLOWGRAPH_ANNOTATION_TIMEOUT",
		"FLOWGRAPH_METRICS_ADDR",
		"FLOWGRAPH_CAPTURE_SLOTS",
	} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestDefaultSetsFiveSecondAnnotationTimeout(t *testing.T) {
	assert.Equal(t, 5*time.Second, Default().AnnotationTimeout)
}

func TestLoadWithMissingPathFallsBackToDefault(t *testing.T) {
	clearFlowgraphEnv(t)
	cfg, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEmptyPathSkipsFileRead(t *testing.T) {
	clearFlowgraphEnv(t)
	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadParsesYAMLFile(t *testing.T) {
	clearFlowgraphEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "annotationStoreUrl: http://store.example\nannotationTimeout: 10s\nmetricsAddr: :9090\ncaptureSlots: true\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://store.example", cfg.AnnotationStoreURL)
	assert.Equal(t, 10*time.Second, cfg.AnnotationTimeout)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.True(t, cfg.CaptureSlots)
}

func TestLoadAppliesEnvOverlayOverUnsetFields(t *testing.T) {
	clearFlowgraphEnv(t)
	t.Setenv("FLOWGRAPH_METRICS_ADDR", ":9999")
	t.Setenv("FLOWGRAPH_CAPTURE_SLOTS", "true")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.MetricsAddr)
	assert.True(t, cfg.CaptureSlots)
}

func TestLoadReturnsErrorForMalformedYAML(t *testing.T) {
	clearFlowgraphEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o644))

	_, err := Load(context.Background(), path)
	assert.Error(t, err)
}
