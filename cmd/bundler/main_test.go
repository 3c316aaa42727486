package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gophersatwork/bundler/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupProject writes a public root with sources and a config file, and
// returns the config path.
func setupProject(t *testing.T, extra string) (string, string) {
	t.Helper()
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvEnvironment, "")

	dir := t.TempDir()
	public := filepath.Join(dir, "public")
	files := map[string]string{
		"js/app.js":    "app();",
		"js/menu.js":   "menu();",
		"css/site.css": "body{background:url(img/bg.png)}",
	}
	for name, content := range files {
		path := filepath.Join(public, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	configPath := filepath.Join(dir, "bundler.yaml")
	yaml := `
public_root: ` + public + `
ignore_environments: [local]
bundles:
  - name: app
    kind: js
    files: [js/app.js, js/menu.js]
    attributes:
      - name: defer
  - name: site
    kind: css
    dir: css
` + extra
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o644))
	return configPath, public
}

func TestRun_Build(t *testing.T) {
	configPath, public := setupProject(t, "")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--config", configPath, "--tags"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	assert.Equal(t, 2, strings.Count(stdout.String(), "\n"))
	assert.Contains(t, stdout.String(), `<script src="/build/js/`)
	assert.Contains(t, stdout.String(), `" defer></script>`)
	assert.Contains(t, stdout.String(), `<link href="/build/css/`)

	data, err := os.ReadFile(filepath.Join(public, "build", "manifest.json"))
	require.NoError(t, err)

	var manifest struct {
		Bundles map[string]struct {
			Filename string   `json:"filename"`
			Inputs   []string `json:"inputs"`
		} `json:"bundles"`
	}
	require.NoError(t, json.Unmarshal(data, &manifest))
	require.Contains(t, manifest.Bundles, "app")
	assert.Equal(t, []string{"js/app.js", "js/menu.js"}, manifest.Bundles["app"].Inputs)
	assert.FileExists(t, filepath.Join(public, "build", "js", manifest.Bundles["app"].Filename))
	assert.FileExists(t, filepath.Join(public, "build", "css", manifest.Bundles["site"].Filename))

	// A second run reuses the artifacts.
	stdout.Reset()
	code = run(context.Background(), []string{"--config", configPath, "--log-level", "debug"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stderr.String(), "bundle already built")
}

func TestRun_ConfigFromEnvironment(t *testing.T) {
	configPath, public := setupProject(t, "")
	t.Setenv(config.EnvConfig, configPath)
	t.Setenv(config.EnvEnvironment, "local")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--tags"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	assert.Contains(t, stdout.String(), `<script src="/js/app.js" defer></script>`)
	assert.Contains(t, stdout.String(), `<script src="/js/menu.js" defer></script>`)
	assert.NoDirExists(t, filepath.Join(public, "build"))
	assert.Contains(t, stderr.String(), "building disabled")
	assert.Contains(t, stderr.String(), "environment=local")
}

func TestRun_ManifestFlag(t *testing.T) {
	configPath, _ := setupProject(t, "")
	manifestPath := filepath.Join(t.TempDir(), "out", "manifest.json")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"--config", configPath, "--manifest", manifestPath}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.FileExists(t, manifestPath)
}

func TestRun_Errors(t *testing.T) {
	t.Run("Missing config", func(t *testing.T) {
		t.Setenv(config.EnvConfig, "")
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), nil, &stdout, &stderr)
		assert.Equal(t, exitUsage, code)
		assert.Contains(t, stderr.String(), config.EnvConfig)
	})

	t.Run("Unknown flag", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"--nope"}, &stdout, &stderr)
		assert.Equal(t, exitUsage, code)
	})

	t.Run("Unexpected argument", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"extra"}, &stdout, &stderr)
		assert.Equal(t, exitUsage, code)
	})

	t.Run("Invalid log level", func(t *testing.T) {
		configPath, _ := setupProject(t, "")
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"--config", configPath, "--log-level", "loud"}, &stdout, &stderr)
		assert.Equal(t, exitUsage, code)
	})

	t.Run("Publish without bucket", func(t *testing.T) {
		configPath, _ := setupProject(t, "")
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"--config", configPath, "--publish"}, &stdout, &stderr)
		assert.Equal(t, exitUsage, code)
	})

	t.Run("Missing source file", func(t *testing.T) {
		configPath, _ := setupProject(t, `
  - name: broken
    kind: js
    files: [js/missing.js]
`)
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"--config", configPath}, &stdout, &stderr)
		assert.Equal(t, exitBuild, code)
		assert.Contains(t, stderr.String(), "bundle broken")
	})
}

func TestArtifactPaths(t *testing.T) {
	got := artifactPaths("/b/abc.js", config.PrecompressConfig{Gzip: true, Zstd: true})
	assert.Equal(t, []string{"/b/abc.js", "/b/abc.js.gz", "/b/abc.js.zst"}, got)
	assert.Equal(t, []string{"/b/abc.js"}, artifactPaths("/b/abc.js", config.PrecompressConfig{}))
}
