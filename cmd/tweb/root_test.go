package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/prior-it/tweb/config"
	"github.com/prior-it/tweb/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := tests.Site(t, map[string]string{
		"README.md":   "# Readme",
		"config.toml": "[app]\nport = 8000\n\n[pages]\nlive = true\n",
	})
	root := filepath.Join(dir, "README.md")

	t.Run("ok: config file values", func(t *testing.T) {
		flags := &rootFlags{}
		cmd := newCommand(flags)
		require.NoError(t, cmd.ParseFlags([]string{"--config", dir}))

		cfg, err := loadConfig(cmd, flags, root)
		require.NoError(t, err)
		assert.Equal(t, uint32(8000), cfg.App.Port)
		assert.True(t, cfg.Pages.Live)
		assert.Equal(t, root, cfg.Pages.Root)
	})

	t.Run("ok: flags override the config file", func(t *testing.T) {
		flags := &rootFlags{}
		cmd := newCommand(flags)
		require.NoError(t, cmd.ParseFlags([]string{
			"--config", dir, "--port", "9001", "--live=false", "--mode", "http", "--no-audit", "-w",
		}))

		cfg, err := loadConfig(cmd, flags, root)
		require.NoError(t, err)
		assert.Equal(t, uint32(9001), cfg.App.Port)
		assert.False(t, cfg.Pages.Live)
		assert.True(t, cfg.Pages.Watch)
		assert.Equal(t, config.ServeModeHTTP, cfg.App.Mode)
		assert.False(t, cfg.Audit.Enabled)
	})

	t.Run("err: invalid mode flag", func(t *testing.T) {
		flags := &rootFlags{}
		cmd := newCommand(flags)
		require.NoError(t, cmd.ParseFlags([]string{"--config", dir, "--mode", "gopher"}))

		_, err := loadConfig(cmd, flags, root)
		assert.ErrorContains(t, err, "unknown app mode")
	})

	t.Run("err: root document is not a file", func(t *testing.T) {
		flags := &rootFlags{}
		cmd := newCommand(flags)
		_, err := loadConfig(cmd, flags, dir)
		assert.ErrorContains(t, err, "please specify a valid markdown file")
	})
}

func TestRootCommand(t *testing.T) {
	t.Run("err: root document is required", func(t *testing.T) {
		cmd := newRootCommand()
		var stderr bytes.Buffer
		cmd.SetErr(&stderr)
		cmd.SetOut(&stderr)
		cmd.SetArgs([]string{})

		assert.Error(t, cmd.Execute())
	})

	t.Run("err: missing root document", func(t *testing.T) {
		cmd := newRootCommand()
		var stderr bytes.Buffer
		cmd.SetErr(&stderr)
		cmd.SetOut(&stderr)
		cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.md")})

		assert.Error(t, cmd.Execute())
		assert.Contains(t, stderr.String(), "please specify a valid markdown file")
	})
}
