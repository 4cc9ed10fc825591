package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/ncmat/catalog"
	"github.com/jonwraymond/ncmat/config"
	"github.com/jonwraymond/ncmat/factory"
)

const aluminium = `name: Al_sg225
atoms: {Al: 4}
density: 2.699
scatter: {model: elastic, xsect: 1.503}
`

// materialDir writes a small material library and returns its directory.
func materialDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Al.yaml"), []byte(aluminium), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "void.yaml"), []byte("atoms: {He: 1}\n"), 0o600))
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

// TestFormula verifies the composition command.
func TestFormula(t *testing.T) {
	out, _, err := execute(t, "formula", "O:2", "H:4", "C:2")
	require.NoError(t, err)
	assert.Equal(t, "CH2O\n", out)

	_, _, err = execute(t, "formula", "Xx:1")
	assert.Error(t, err)

	_, _, err = execute(t, "formula")
	assert.Error(t, err)
}

// TestMaterial verifies builds, base sharing and cache hits.
func TestMaterial(t *testing.T) {
	dir := materialDir(t)

	out, stderr, err := execute(t, "--path", dir, "material", "Al.yaml", "Al.yaml;temp=20K", "Al.yaml")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "CACHED")
	assert.Contains(t, lines[1], factory.DerivedPrefix+"Al.yaml")
	assert.Contains(t, lines[1], factory.BasePrefix+"Al")
	assert.True(t, strings.HasSuffix(lines[1], "false"))
	assert.Contains(t, lines[2], "20.00 K")
	assert.True(t, strings.HasSuffix(lines[3], "true"), "repeat build should hit: %q", lines[3])

	assert.Contains(t, stderr, `"msg":"material built"`)
}

// TestMaterial_Errors verifies configuration failures surface.
func TestMaterial_Errors(t *testing.T) {
	dir := materialDir(t)

	_, _, err := execute(t, "--path", dir, "--log-level", "off", "material", "missing.yaml")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, _, err = execute(t, "--path", dir, "--log-level", "off", "material", "Al.yaml;packfact=2")
	assert.ErrorIs(t, err, factory.ErrBadInput)

	_, _, err = execute(t, "--path", dir, "--log-level", "off", "material", "void.yaml")
	assert.ErrorIs(t, err, factory.ErrMissingInfo)

	_, _, err = execute(t, "--log-level", "loud", "material", "Al.yaml")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

// TestSample verifies event sampling output.
func TestSample(t *testing.T) {
	dir := materialDir(t)

	out, _, err := execute(t, "--path", dir, "--log-level", "off", "sample", "Al.yaml", "-n", "3", "--seed", "7")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Al_sg225: 1.503 barn at 0.025 eV", lines[0])

	again, _, err := execute(t, "--path", dir, "--log-level", "off", "sample", "Al.yaml", "-n", "3", "--seed", "7")
	require.NoError(t, err)
	assert.Equal(t, out, again, "same seed should reproduce events")

	_, _, err = execute(t, "--path", dir, "--log-level", "off", "sample", "Al.yaml", "--energy", "-1")
	assert.Error(t, err)
}

// TestHealth verifies the JSON health report.
func TestHealth(t *testing.T) {
	dir := materialDir(t)

	out, _, err := execute(t, "--path", dir, "--log-level", "off", "health", "Al.yaml")
	require.NoError(t, err)

	var report struct {
		Status string `json:"status"`
		Checks map[string]struct {
			Status  string         `json:"status"`
			Details map[string]any `json:"details"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "healthy", report.Status)
	assert.Contains(t, report.Checks, "builds")
	assert.Equal(t, float64(1), report.Checks["cache.derived"].Details["entries"])
	assert.Equal(t, float64(1), report.Checks["cache.base"].Details["entries"])
	assert.Equal(t, float64(1), report.Checks["cache.files"].Details["entries"])
}

// TestConfigFile verifies --config is honoured.
func TestConfigFile(t *testing.T) {
	dir := materialDir(t)
	t.Setenv("NCMAT_TEST_LIBRARY", dir)
	cfgPath := filepath.Join(t.TempDir(), "ncmat.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
catalog:
  paths: ["${NCMAT_TEST_LIBRARY}"]
factory:
  default_temperature: 77
  max_concurrent_builds: 0
telemetry:
  logging: {enabled: false}
`), 0o600))

	out, _, err := execute(t, "--config", cfgPath, "material", "void.yaml;density=0.1786")
	require.NoError(t, err)
	assert.Contains(t, out, "77.00 K")

	out, _, err = execute(t, "--config", cfgPath, "health")
	require.NoError(t, err)
	assert.NotContains(t, out, `"builds"`)
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := config.Default()
	cfg.Catalog.Paths = []string{materialDir(t)}
	a, err := newApp(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

// TestHandleMaterial verifies the materials endpoint.
func TestHandleMaterial(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t).handler())
	defer srv.Close()

	get := func(query string) (*http.Response, map[string]any) {
		resp, err := http.Get(srv.URL + "/v1/materials?" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp, body
	}

	resp, body := get("cfg=" + url.QueryEscape("Al.yaml;packfact=0.5") + "&energy=0.1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, factory.DerivedPrefix+"Al.yaml;packfact=0.5", body["name"])
	assert.Equal(t, factory.BasePrefix+"Al", body["base"])
	assert.InDelta(t, 2.699*0.5, body["density_gcm3"], 1e-12)
	assert.Equal(t, 1.503, body["xsect_barn"])
	assert.Equal(t, false, body["cached"])

	_, body = get("cfg=" + url.QueryEscape("Al.yaml;packfact=0.5"))
	assert.Equal(t, true, body["cached"])

	tests := []struct {
		query string
		code  int
	}{
		{"", http.StatusBadRequest},
		{"cfg=missing.yaml", http.StatusNotFound},
		{"cfg=" + url.QueryEscape("Al.yaml;bogus=1"), http.StatusBadRequest},
		{"cfg=void.yaml", http.StatusUnprocessableEntity},
		{"cfg=Al.yaml&energy=fast", http.StatusBadRequest},
		{"cfg=Al.yaml&energy=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, body := get(tt.query)
		assert.Equal(t, tt.code, resp.StatusCode, tt.query)
		assert.NotEmpty(t, body["error"], tt.query)
	}
}

// TestHandler_Health verifies health and metrics are mounted.
func TestHandler_Health(t *testing.T) {
	h := newTestApp(t).handler()

	for path, code := range map[string]int{
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusOK,
		"/health":  http.StatusOK,
		"/metrics": http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, code, rec.Code, path)
	}
}

// TestServe verifies the server stops when its context ends.
func TestServe(t *testing.T) {
	a := newTestApp(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
