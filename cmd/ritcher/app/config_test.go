// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadWithArgs(t *testing.T, args ...string) (*ServerConfig, error) {
	t.Helper()
	return LoadConfig(append([]string{"ritcher"}, args...))
}

func TestDevModeUsesDefaults(t *testing.T) {
	cfg, err := loadWithArgs(t, "--devmode")
	require.NoError(t, err)

	assert.True(t, cfg.DevMode)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "http://localhost:3000", cfg.BaseURL)
	assert.Equal(t, "https://example.com", cfg.OriginURL)
	assert.Equal(t, ModeSSAI, cfg.StitchingMode)
	assert.Equal(t, ProviderStatic, cfg.AdProviderType)
	assert.Equal(t, StoreMemory, cfg.SessionStore)
	assert.Equal(t, defaultSessionTTLS, cfg.SessionTTLSecs)
	assert.Equal(t, 1.0, cfg.AdSegmentDuration)
}

func TestProdModeRequiresBaseURL(t *testing.T) {
	_, err := loadWithArgs(t, "--originurl", "https://cdn.example.com/live.m3u8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BASE_URL")
}

func TestProdModeRequiresOriginURL(t *testing.T) {
	_, err := loadWithArgs(t, "--baseurl", "https://stitch.example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORIGIN_URL")
}

func TestProdModeComplete(t *testing.T) {
	cfg, err := loadWithArgs(t,
		"--baseurl", "https://stitch.example.com/",
		"--originurl", "https://cdn.example.com/live.m3u8",
		"--port", "8080")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "https://stitch.example.com", cfg.BaseURL,
		"trailing slash is trimmed")
}

func TestVASTAutoDetectFromEndpoint(t *testing.T) {
	cfg, err := loadWithArgs(t, "--devmode",
		"--vastendpoint", "https://ads.example.com/vast")
	require.NoError(t, err)
	assert.Equal(t, ProviderVAST, cfg.AdProviderType)
}

func TestExplicitStaticOverridesVASTEndpoint(t *testing.T) {
	cfg, err := loadWithArgs(t, "--devmode",
		"--vastendpoint", "https://ads.example.com/vast",
		"--adprovidertype", "static")
	require.NoError(t, err)
	assert.Equal(t, ProviderStatic, cfg.AdProviderType)
}

func TestVASTWithoutEndpointRejected(t *testing.T) {
	_, err := loadWithArgs(t, "--devmode", "--adprovidertype", "vast")
	assert.Error(t, err)
}

func TestStitchingModeSGAI(t *testing.T) {
	cfg, err := loadWithArgs(t, "--devmode", "--stitchingmode", "sgai")
	require.NoError(t, err)
	assert.Equal(t, ModeSGAI, cfg.StitchingMode)
}

func TestStitchingModeUnknownRejected(t *testing.T) {
	_, err := loadWithArgs(t, "--devmode", "--stitchingmode", "csai")
	assert.Error(t, err)
}

func TestSessionStoreRedisAlias(t *testing.T) {
	cfg, err := loadWithArgs(t, "--devmode",
		"--sessionstore", "redis",
		"--valkeyurl", "redis://localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, StoreValkey, cfg.SessionStore)
}

func TestSessionStoreValkeyRequiresURL(t *testing.T) {
	_, err := loadWithArgs(t, "--devmode", "--sessionstore", "valkey")
	assert.Error(t, err)
}

func TestDemoProviderAutoDetected(t *testing.T) {
	cfg, err := loadWithArgs(t, "--devmode",
		"--demoadbaseurl", "http://localhost:3333/ads")
	require.NoError(t, err)
	assert.Equal(t, ProviderDemo, cfg.AdProviderType)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STITCHING_MODE", "sgai")
	t.Setenv("SESSION_TTL_SECS", "600")
	t.Setenv("RATE_LIMIT_RPM", "120")

	cfg, err := loadWithArgs(t, "--devmode")
	require.NoError(t, err)
	assert.Equal(t, ModeSGAI, cfg.StitchingMode)
	assert.Equal(t, 600, cfg.SessionTTLSecs)
	assert.Equal(t, 120, cfg.RateLimitRPM)
}
