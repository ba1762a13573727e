package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps a developer's own config file out of the test.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	SetConfigFile("")
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolate(t)
		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "structured", cfg.Logging.Profile)

		assert.Equal(t, 1000, cfg.Browse.PageSize)
		assert.Equal(t, 30*time.Second, cfg.Browse.CacheTTL)
		assert.Equal(t, 20, cfg.Browse.UploadParallel)
		assert.Zero(t, cfg.Browse.DeleteRate)

		assert.True(t, cfg.MinIO.UseSSL)
		assert.Equal(t, ".", cfg.File.Root)
		assert.False(t, cfg.ReadOnly)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolate(t)
		cfg, err := Load(ctx, map[string]any{
			"server":  map[string]any{"port": 9000, "host": "0.0.0.0"},
			"logging": map[string]any{"level": "debug"},
		})
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "structured", cfg.Logging.Profile)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		isolate(t)
		t.Setenv("BUCKETNAV_PORT", "3000")
		t.Setenv("BUCKETNAV_LOG_LEVEL", "warn")
		t.Setenv("BUCKETNAV_READONLY", "true")
		t.Setenv("BUCKETNAV_CACHE_TTL", "2m")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.True(t, cfg.ReadOnly)
		assert.Equal(t, 2*time.Minute, cfg.Browse.CacheTTL)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		isolate(t)
		t.Setenv("BUCKETNAV_PORT", "4000")

		cfg, err := Load(ctx, map[string]any{"server": map[string]any{"port": 5000}})
		require.NoError(t, err)
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		isolate(t)
		path := filepath.Join(t.TempDir(), "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
browse:
  page_size: 250
  delete_rate: 5
s3:
  region: eu-west-1
  force_path_style: true
`), 0o600))
		SetConfigFile(path)
		defer SetConfigFile("")
		t.Setenv("BUCKETNAV_S3_REGION", "us-east-2")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 250, cfg.Browse.PageSize)
		assert.Equal(t, 5.0, cfg.Browse.DeleteRate)
		assert.True(t, cfg.S3.ForcePathStyle)
		assert.Equal(t, "us-east-2", cfg.S3.Region)
	})

	t.Run("DiscoveredFile", func(t *testing.T) {
		isolate(t)
		require.NoError(t, os.WriteFile("bucketnav.yaml", []byte("server:\n  port: 7070\n"), 0o600))

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		isolate(t)
		SetConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		defer SetConfigFile("")

		_, err := Load(ctx)
		assert.Error(t, err)
	})
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name     string
		override map[string]any
	}{
		{"page size too large", map[string]any{"browse": map[string]any{"page_size": 5000}}},
		{"upload parallel zero", map[string]any{"browse": map[string]any{"upload_parallel": 0}}},
		{"negative delete rate", map[string]any{"browse": map[string]any{"delete_rate": -1.0}}},
		{"bad log level", map[string]any{"logging": map[string]any{"level": "loud"}}},
		{"bad port", map[string]any{"server": map[string]any{"port": 70000}}},
		{"bad s3 endpoint", map[string]any{"s3": map[string]any{"endpoint": "not a url"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := Load(context.Background(), tt.override)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestGetConfig(t *testing.T) {
	isolate(t)
	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg, GetConfig())

	cfg2, err := Load(context.Background(), map[string]any{"server": map[string]any{"port": cfg.Server.Port + 1000}})
	require.NoError(t, err)
	assert.Equal(t, cfg2.Server.Port, GetConfig().Server.Port)
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnvSpecs(t *testing.T) {
	specs := getEnvSpecs()
	require.NotEmpty(t, specs)

	names := map[string]string{}
	for _, spec := range specs {
		assert.Contains(t, spec.Name, "BUCKETNAV_")
		assert.NotEmpty(t, spec.Path)
		names[spec.Name] = spec.Path
	}
	assert.Equal(t, "logging.level", names["BUCKETNAV_LOG_LEVEL"])
	assert.Equal(t, "server.port", names["BUCKETNAV_PORT"])
	assert.Equal(t, "readonly", names["BUCKETNAV_READONLY"])

	// Every env path must have a default, or viper will not decode it.
	v := viper.New()
	SetDefaults(v)
	for _, spec := range specs {
		assert.True(t, v.IsSet(spec.Path), spec.Path)
	}
}

func TestFlatten(t *testing.T) {
	got := flatten("", map[string]any{
		"a": 1,
		"b": map[string]any{"c": "x", "d": map[string]any{"e": true}},
	})
	assert.Equal(t, map[string]any{"a": 1, "b.c": "x", "b.d.e": true}, got)
}
