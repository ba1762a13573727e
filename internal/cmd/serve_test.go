package cmd

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/bucketnav/internal/config"
	apperrors "github.com/3leaps/bucketnav/internal/errors"
	"github.com/3leaps/bucketnav/pkg/browse"
)

func TestIdentityHealthChecker(t *testing.T) {
	tests := []struct {
		name       string
		checker    identityHealthChecker
		errContain string
	}{
		{
			name:    "complete identity",
			checker: identityHealthChecker{binaryName: "bucketnav", envPrefix: "BUCKETNAV", configName: "bucketnav"},
		},
		{
			name:       "missing binary name",
			checker:    identityHealthChecker{envPrefix: "BUCKETNAV", configName: "bucketnav"},
			errContain: "missing binary name",
		},
		{
			name:       "missing env prefix",
			checker:    identityHealthChecker{binaryName: "bucketnav", configName: "bucketnav"},
			errContain: "missing env prefix",
		},
		{
			name:       "missing config name",
			checker:    identityHealthChecker{binaryName: "bucketnav", envPrefix: "BUCKETNAV"},
			errContain: "missing config name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.checker.CheckHealth(context.Background())
			if tt.errContain == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContain)
		})
	}
}

func TestConfigHealthChecker(t *testing.T) {
	fileBucket(t, "bkt", nil)
	_, err := config.Load(context.Background())
	require.NoError(t, err)

	assert.NoError(t, configHealthChecker{}.CheckHealth(context.Background()))
}

func TestSessionOpener(t *testing.T) {
	fileBucket(t, "bkt", map[string]string{"logs/a.log": "a"})
	cfg, err := config.Load(context.Background())
	require.NoError(t, err)
	open := sessionOpener(cfg)

	t.Run("opens at the uri folder", func(t *testing.T) {
		sess, err := open(context.Background(), "file://bkt/logs/")
		require.NoError(t, err)
		defer func() { _ = sess.Close() }()

		assert.Equal(t, browse.Prefix("logs/"), sess.Current())
		l, err := sess.Listing(context.Background())
		require.NoError(t, err)
		require.Len(t, l.Objects, 1)
		assert.Equal(t, "a.log", l.Objects[0].RelativeKey)
	})

	t.Run("invalid uri is a bad request", func(t *testing.T) {
		_, err := open(context.Background(), "ftp://bkt/")
		require.Error(t, err)

		var he *apperrors.HTTPError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, http.StatusBadRequest, he.Status)
		assert.ErrorIs(t, err, ErrUnsupportedProvider)
	})
}
