// Package config implements the process-wide configuration façade (§4.O):
// an immutable value built once at container construction from environment
// overrides layered on programmatic defaults. No process-wide singleton —
// the container holds the one instance and threads it to the transaction
// driver.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cuemby/objstore/pkg/obs/log"
	"github.com/cuemby/objstore/pkg/txn"
)

// Environment variable names recognized at startup, per §6.
const (
	EnvRetryLimit    = "DATABASE_TRANSACTION_RETRY_LIMIT"
	EnvInitialDelay  = "DATABASE_TRANSACTION_INITIAL_DELAY_MS"
	EnvMaxRetryDelay = "DATABASE_TRANSACTION_MAX_RETRY_DELAY_MS"
	EnvDefaultTimeout = "DATABASE_TRANSACTION_DEFAULT_TIMEOUT_MS"
)

// FromEnv builds a txn.Config starting from defaults, overriding each field
// with its environment variable when present and parseable. A malformed
// value is logged and the default for that field is kept; startup never
// fails because of a bad environment variable.
func FromEnv(defaults txn.Config) txn.Config {
	cfg := defaults

	if v, ok := lookupInt(EnvRetryLimit); ok {
		cfg.RetryLimit = v
	}
	if v, ok := lookupDuration(EnvInitialDelay); ok {
		cfg.InitialDelay = v
	}
	if v, ok := lookupDuration(EnvMaxRetryDelay); ok {
		cfg.MaxRetryDelay = v
	}
	if v, ok := lookupDuration(EnvDefaultTimeout); ok {
		cfg.DefaultTimeout = v
	}
	return cfg
}

func lookupInt(name string) (int, bool) {
	raw, present := os.LookupEnv(name)
	if !present {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Logger.Warn().Str("var", name).Str("value", raw).Msg("ignoring malformed config override, keeping default")
		return 0, false
	}
	return v, true
}

func lookupDuration(name string) (time.Duration, bool) {
	raw, present := os.LookupEnv(name)
	if !present {
		return 0, false
	}
	ms, err := strconv.Atoi(raw)
	if err != nil {
		log.Logger.Warn().Str("var", name).Str("value", raw).Msg("ignoring malformed config override, keeping default")
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}
