package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxnate/infinit-butchery/internal/app/storage/memory"
)

func TestLoadGatewaysOrDefaultFallsBack(t *testing.T) {
	cfg := LoadGatewaysOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NotEmpty(t, cfg.Gateways)
	assert.Equal(t, "cash", cfg.Gateways[0].Code)
}

func TestLoadGateways(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateways.yaml")
	content := "gateways:\n  - code: mpesa\n    name: M-Pesa\n    type: mobile_money\n    active: true\n    supports_refund: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadGateways(path)
	require.NoError(t, err)
	require.Len(t, cfg.Gateways, 1)
	assert.Equal(t, "mpesa", cfg.Gateways[0].Code)
	assert.True(t, cfg.Gateways[0].SupportsRefund)
}

func TestLoadGatewaysRejectsUnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateways.yaml")
	content := "gateways:\n  - code: crypto\n    name: Crypto\n    type: blockchain\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadGateways(path)
	assert.Error(t, err)
}

func TestSeedGatewaysIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	cfg := DefaultGateways()

	require.NoError(t, SeedGateways(ctx, store, cfg))
	first, err := store.GetGatewayByCode(ctx, "mpesa")
	require.NoError(t, err)

	// Seeding again leaves existing gateways untouched.
	require.NoError(t, SeedGateways(ctx, store, cfg))
	second, err := store.GetGatewayByCode(ctx, "mpesa")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestLoadConfigRequiresAuthSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("AUTH_SECRET", "unit-secret")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "unit-secret", cfg.AuthSecret)
}
