// Package config loads and validates the process configuration from environment
// variables per SPEC_FULL.md §6.1. This is treated as an external collaborator to
// the core (spec.md §1): it owns env parsing only, nothing about chain semantics.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is built once at process start and never mutated afterwards (§3
// "Lifecycles": ServiceParameters are immutable for the process lifetime).
type Config struct {
	LogLevel string

	WSURLsPara  []string
	WSURLsRelay []string

	OracleMasterABIPath string

	DebugMode bool // true means dry-run only; see the DEBUG_MODE note below.

	EraDelayTime          uint64
	EraDurationInBlocks   uint64
	EraDurationInSeconds  uint64
	EraUpdateDelay        uint64
	FrequencyOfRequests   uint64
	GasLimit              uint64
	MaxPriorityFeePerGas  uint64
	PrometheusPort        uint64
	SS58Format            uint16
	Timeout               uint64
	TypeRegistryPreset    string
	WaitBeforeShutdown    uint64
	ContractAddress       string
	OraclePrivateKeyPath  string
	OraclePrivateKey      string
	PrometheusMetricsPrefix string
}

// Load reads and validates every variable of §6.1. Invalid or missing required
// values are reported as a single wrapped error (the "Config/fatal" class of §7);
// the caller (cmd/stakeoracle) prints it to stderr and exits nonzero.
func Load() (*Config, error) {
	c := &Config{
		LogLevel:                getEnv("LOG_LEVEL", "INFO"),
		OracleMasterABIPath:     getEnv("ORACLE_MASTER_CONTRACT_ABI_PATH", "./assets/OracleMaster.json"),
		TypeRegistryPreset:      os.Getenv("TYPE_REGISTRY_PRESET"),
		ContractAddress:         os.Getenv("CONTRACT_ADDRESS"),
		OraclePrivateKeyPath:    os.Getenv("ORACLE_PRIVATE_KEY_PATH"),
		OraclePrivateKey:        os.Getenv("ORACLE_PRIVATE_KEY"),
		PrometheusMetricsPrefix: os.Getenv("PROMETHEUS_METRICS_PREFIX"),
	}

	var errs []string
	req := func(name string) string {
		v := os.Getenv(name)
		if v == "" {
			errs = append(errs, fmt.Sprintf("%s is required", name))
		}
		return v
	}
	optUint := func(name string, def uint64) uint64 {
		v := os.Getenv(name)
		if v == "" {
			return def
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid unsigned integer %q", name, v))
			return def
		}
		return n
	}
	reqUint := func(name string) uint64 {
		v := req(name)
		if v == "" {
			return 0
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid unsigned integer %q", name, v))
			return 0
		}
		return n
	}

	wsParaRaw := req("WS_URLS_PARA")
	wsRelayRaw := req("WS_URLS_RELAY")
	c.WSURLsPara = splitURLs(wsParaRaw)
	c.WSURLsRelay = splitURLs(wsRelayRaw)
	if wsParaRaw != "" {
		if err := validateWSURLs(c.WSURLsPara); err != nil {
			errs = append(errs, fmt.Sprintf("WS_URLS_PARA: %v", err))
		}
	}
	if wsRelayRaw != "" {
		if err := validateWSURLs(c.WSURLsRelay); err != nil {
			errs = append(errs, fmt.Sprintf("WS_URLS_RELAY: %v", err))
		}
	}

	// DEBUG_MODE semantics are intentionally odd (§9 open question #2): the
	// variable is required, but ANY value other than the literal string "false"
	// enables debug (dry-run only) mode. This is preserved verbatim, not "fixed".
	debugRaw := req("DEBUG_MODE")
	c.DebugMode = debugRaw != "false"

	c.EraDelayTime = optUint("ERA_DELAY_TIME", 600)
	c.EraDurationInBlocks = reqUint("ERA_DURATION_IN_BLOCKS")
	c.EraDurationInSeconds = reqUint("ERA_DURATION_IN_SECONDS")
	c.EraUpdateDelay = optUint("ERA_UPDATE_DELAY", 360)
	c.FrequencyOfRequests = optUint("FREQUENCY_OF_REQUESTS", 180)
	c.GasLimit = optUint("GAS_LIMIT", 10_000_000)
	c.MaxPriorityFeePerGas = optUint("MAX_PRIORITY_FEE_PER_GAS", 0)
	c.PrometheusPort = optUint("PROMETHEUS_METRICS_PORT", 8000)
	c.Timeout = optUint("TIMEOUT", 60)
	c.WaitBeforeShutdown = optUint("WAITING_TIME_BEFORE_SHUTDOWN", 600)

	ss58 := optUint("SS58_FORMAT", 42)
	c.SS58Format = uint16(ss58)

	if c.TypeRegistryPreset == "" {
		errs = append(errs, "TYPE_REGISTRY_PRESET is required")
	}
	if c.ContractAddress == "" {
		errs = append(errs, "CONTRACT_ADDRESS is required")
	}
	if c.EraDurationInBlocks == 0 {
		errs = append(errs, "ERA_DURATION_IN_BLOCKS must be positive")
	}
	if c.EraDurationInSeconds == 0 {
		errs = append(errs, "ERA_DURATION_IN_SECONDS must be positive")
	}
	if c.EraUpdateDelay == 0 {
		errs = append(errs, "ERA_UPDATE_DELAY must be positive")
	}
	if c.FrequencyOfRequests == 0 {
		errs = append(errs, "FREQUENCY_OF_REQUESTS must be positive")
	}
	if c.GasLimit == 0 {
		errs = append(errs, "GAS_LIMIT must be positive")
	}
	if c.PrometheusPort == 0 {
		errs = append(errs, "PROMETHEUS_METRICS_PORT must be positive")
	}
	if c.OraclePrivateKeyPath == "" && c.OraclePrivateKey == "" && !c.DebugMode {
		errs = append(errs, "one of ORACLE_PRIVATE_KEY_PATH or ORACLE_PRIVATE_KEY is required outside debug mode")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return c, nil
}

func getEnv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func splitURLs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateWSURLs(urls []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("at least one URL is required")
	}
	for _, u := range urls {
		if err := validateWSURL(u); err != nil {
			return fmt.Errorf("%q: %w", u, err)
		}
	}
	return nil
}
