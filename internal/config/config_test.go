package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	vars := map[string]string{
		"WS_URLS_PARA":             "ws://localhost:9944",
		"WS_URLS_RELAY":            "wss://relay.example.com/ws",
		"TYPE_REGISTRY_PRESET":     "polkadot",
		"CONTRACT_ADDRESS":         "0x0000000000000000000000000000000000000001",
		"ERA_DURATION_IN_BLOCKS":   "14400",
		"ERA_DURATION_IN_SECONDS":  "86400",
		"DEBUG_MODE":               "false",
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoad_DebugModeIsEnabledByAnyNonFalseValue(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DEBUG_MODE", "true")
	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.DebugMode)

	t.Setenv("DEBUG_MODE", "yes-please")
	cfg, err = Load()
	require.NoError(t, err)
	require.True(t, cfg.DebugMode, "any value other than the literal string \"false\" enables debug mode")

	t.Setenv("DEBUG_MODE", "false")
	cfg, err = Load()
	require.NoError(t, err)
	require.False(t, cfg.DebugMode)
}

func TestLoad_RequiredFieldsMissingProducesAggregateError(t *testing.T) {
	for _, key := range []string{
		"WS_URLS_PARA", "WS_URLS_RELAY", "TYPE_REGISTRY_PRESET",
		"CONTRACT_ADDRESS", "ERA_DURATION_IN_BLOCKS", "ERA_DURATION_IN_SECONDS", "DEBUG_MODE",
	} {
		os.Unsetenv(key)
	}
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_DebugModeWithoutKeyIsValid(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DEBUG_MODE", "true")
	os.Unsetenv("ORACLE_PRIVATE_KEY_PATH")
	os.Unsetenv("ORACLE_PRIVATE_KEY")
	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.DebugMode)
}

func TestLoad_NonDebugModeRequiresAKey(t *testing.T) {
	setBaseEnv(t)
	os.Unsetenv("ORACLE_PRIVATE_KEY_PATH")
	os.Unsetenv("ORACLE_PRIVATE_KEY")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsNonWebsocketURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("WS_URLS_RELAY", "http://relay.example.com")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_DefaultsAreApplied(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ORACLE_PRIVATE_KEY", "deadbeef")
	cfg, err := Load()
	require.NoError(t, err)
	require.EqualValues(t, 600, cfg.EraDelayTime)
	require.EqualValues(t, 360, cfg.EraUpdateDelay)
	require.EqualValues(t, 42, cfg.SS58Format)
	require.EqualValues(t, 8000, cfg.PrometheusPort)
}
