package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", s.Port)
	assert.Equal(t, "/admin", s.AdminPath)
	assert.Equal(t, 5, s.RateBurst)
	assert.Equal(t, 10*time.Second, s.RateEvery)
	assert.Empty(t, s.TrustedProxies)
	assert.False(t, s.S3.Enabled)
	assert.Equal(t, "us-east-1", s.S3.Region)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NIGHTBOARD_PORT", "9000")
	t.Setenv("NIGHTBOARD_ADMIN_PATH", "hidden-admin")
	t.Setenv("NIGHTBOARD_S3_ENABLED", "true")
	t.Setenv("NIGHTBOARD_S3_BUCKET", "files")
	t.Setenv("NIGHTBOARD_ADMIN_USERNAME", "root")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", s.Port)
	assert.Equal(t, "/hidden-admin", s.AdminPath)
	assert.True(t, s.S3.Enabled)
	assert.Equal(t, "files", s.S3.Bucket)
	assert.Equal(t, "root", s.Admin.Username)
}

func TestLoadRejectsBadTypes(t *testing.T) {
	t.Setenv("NIGHTBOARD_RATE_BURST", "many")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDurations(t *testing.T) {
	t.Setenv("NIGHTBOARD_RATE_EVERY", "30s")
	t.Setenv("NIGHTBOARD_RATE_EXPIRE", "2h")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, s.RateEvery)
	assert.Equal(t, time.Hour, s.RatePrune)
	assert.Equal(t, 2*time.Hour, s.RateExpire)

	t.Setenv("NIGHTBOARD_RATE_EVERY", "soon")
	_, err = Load()
	assert.Error(t, err, "a malformed duration is an error, not a silent default")
}

func TestLoadRejectsNonPositiveBurst(t *testing.T) {
	for _, v := range []string{"0", "-3"} {
		t.Setenv("NIGHTBOARD_RATE_BURST", v)
		_, err := Load()
		assert.ErrorContains(t, err, "NIGHTBOARD_RATE_BURST", "burst %s", v)
	}
}

func TestLoadTrustedProxies(t *testing.T) {
	t.Setenv("NIGHTBOARD_TRUSTED_PROXIES", "10.0.0.1,172.16.0.0/12")
	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "172.16.0.0/12"}, s.TrustedProxies)

	t.Setenv("NIGHTBOARD_TRUSTED_PROXIES", "10.0.0.1,not-an-address")
	_, err = Load()
	assert.ErrorContains(t, err, "not-an-address")
}
