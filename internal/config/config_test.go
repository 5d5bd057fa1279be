package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9753, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "Home Dashboard", cfg.Dashboard.Title)
	assert.Equal(t, "dark", cfg.Dashboard.Theme)
	assert.Equal(t, 30, cfg.Dashboard.RefreshInterval)
	assert.Equal(t, 3, cfg.Layout.Columns)
	assert.Empty(t, cfg.Layout.Widgets)
}

func TestLoadOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
server:
  port: 8080
dashboard:
  title: Lab Dashboard
  theme: matrix
layout:
  columns: 2
  widgets:
    - integration: sysmetrics
      position: 1
    - integration: todoist
      position: 2
      enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host) // default survives partial override
	assert.Equal(t, "Lab Dashboard", cfg.Dashboard.Title)
	assert.Equal(t, "matrix", cfg.Dashboard.Theme)
	assert.Equal(t, 2, cfg.Layout.Columns)
	require.Len(t, cfg.Layout.Widgets, 2)
	assert.True(t, cfg.Layout.Widgets[0].IsEnabled())
	assert.False(t, cfg.Layout.Widgets[1].IsEnabled())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnabledWidgets(t *testing.T) {
	off := false
	cfg := &Config{
		Layout: LayoutConfig{
			Widgets: []WidgetConfig{
				{Integration: "sysmetrics", Position: 1},
				{Integration: "todoist", Position: 2, Enabled: &off},
				{Integration: "", Position: 3},
				{Integration: "cameras", Position: 4},
			},
		},
	}

	widgets := cfg.EnabledWidgets()
	require.Len(t, widgets, 2)
	assert.Equal(t, "sysmetrics", widgets[0].Integration)
	assert.Equal(t, "cameras", widgets[1].Integration)
}

func TestCredentialsDecode(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.yaml", "")
	writeFile(t, dir, "credentials.yaml", `
todoist:
  api_token: secret-token
  max_tasks: 5
`)

	creds, err := LoadCredentials(configPath)
	require.NoError(t, err)

	assert.True(t, creds.Has("todoist"))
	assert.False(t, creds.Has("cameras"))

	var got struct {
		APIToken string `yaml:"api_token"`
		MaxTasks int    `yaml:"max_tasks"`
	}
	require.NoError(t, creds.Decode("todoist", &got))
	assert.Equal(t, "secret-token", got.APIToken)
	assert.Equal(t, 5, got.MaxTasks)
}

func TestCredentialsMissingFile(t *testing.T) {
	configPath := writeFile(t, t.TempDir(), "config.yaml", "")

	creds, err := LoadCredentials(configPath)
	require.NoError(t, err)

	// Missing block decodes as a no-op, leaving defaults alone.
	got := struct {
		Message string `yaml:"message"`
	}{Message: "default"}
	require.NoError(t, creds.Decode("example", &got))
	assert.Equal(t, "default", got.Message)
}

func TestCredentialsBadYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.yaml", "")
	writeFile(t, dir, "credentials.yaml", "todoist: [unclosed")

	_, err := LoadCredentials(configPath)
	assert.Error(t, err)
}
