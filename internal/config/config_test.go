package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, int32(6), cfg.TokenDecimals)
	assert.Equal(t, "@daily", cfg.DigestSchedule)
	assert.Empty(t, cfg.SeedBalances)
	assert.False(t, cfg.DigestEnabled())
}

func TestNewConfig_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("SERVICE_ACCOUNT", " 0xAbC ")
	t.Setenv("TOKEN_DECIMALS", "2")
	t.Setenv("SEED_BALANCES", "0xAA:1000, 0xbb:5")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("DIGEST_RECIPIENT", "ops@example.com")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "0xabc", cfg.ServiceAccount)
	assert.Equal(t, int32(2), cfg.TokenDecimals)
	assert.Equal(t, map[string]uint64{"0xaa": 1000, "0xbb": 5}, cfg.SeedBalances)
	assert.True(t, cfg.DigestEnabled())
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"missing db conn", map[string]string{"STORE_DRIVER": "postgres", "DB_CONN": ""}},
		{"empty jwt secret", map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET": ""}},
		{"empty service account", map[string]string{"STORE_DRIVER": "memory", "SERVICE_ACCOUNT": "  "}},
		{"bad decimals", map[string]string{"STORE_DRIVER": "memory", "TOKEN_DECIMALS": "30"}},
		{"bad seed", map[string]string{"STORE_DRIVER": "memory", "SEED_BALANCES": "0xaa=10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewConfig()
			assert.Error(t, err)
		})
	}
}
