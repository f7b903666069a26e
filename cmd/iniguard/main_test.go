package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loykin/iniguard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	root := buildRoot(&command{out: out})
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHelpListsCommands(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"search", "backup", "restore", "preset", "patch", "watch", "serve", "template"} {
		assert.Contains(t, out, name)
	}
}

func TestArgValidation(t *testing.T) {
	_, err := run(t, "select")
	assert.Error(t, err)
	_, err = run(t, "delay", "soon")
	assert.Error(t, err)
}

func TestTemplateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "iniguard.toml")

	out, err := run(t, "template", "--type", "full", "--output", path, "--app-dir", filepath.ToSlash(dir))
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = run(t, "template", "--output", path)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "already exists"))

	_, err = run(t, "template", "--type", "minimal", "--output", path, "--force")
	require.NoError(t, err)
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.History.Enabled)

	_, err = run(t, "template", "--type", "cron", "--output", filepath.Join(dir, "x.toml"))
	assert.Error(t, err)
}

func TestDelayThroughRoot(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "iniguard.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(""), 0o644))

	out, err := run(t, "--config", cfgPath, "delay", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "Restore delay: 30s")
	assert.FileExists(t, filepath.Join(dir, "settings.json"))
}
