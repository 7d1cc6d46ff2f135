package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// ValidationResult splits configuration problems into Fatals (startup must
// abort) and Warnings (the value was clamped to a safe default and startup
// continues).
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

// HasFatals reports whether any fatal validation error was recorded.
func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// ValidateTiered checks the config for invalid values. Dangerous zero or
// negative values that would break the protocol's soft caps (§6) are
// clamped to safe defaults and recorded as warnings; structurally invalid
// values (no listener configured, mismatched TLS material) are fatal.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	if c.ListenRaw == "" && c.ListenRawTLS == "" && c.ListenHTTP == "" && c.ListenHTTPS == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("no listener configured: set at least one of listen_raw, listen_raw_tls, listen_http, listen_https"))
	}

	if (c.ListenRawTLS != "" || c.ListenHTTPS != "") && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		r.Fatals = append(r.Fatals, fmt.Errorf("tls_cert_file and tls_key_file are required when a TLS listener is configured"))
	}

	if c.AuthRequired && c.IdentityStorePath == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("identity_store_path is required when auth_required is true"))
	}

	r.clampInt(&c.MaxTrianglesPerGeometry, 1, 1_000_000, "max_triangles_per_geometry")
	r.clampInt(&c.MaxObjects, 1, 1_000_000, "max_objects")
	r.clampInt(&c.MaxNestingDepth, 1, 64, "max_nesting_depth")
	r.clampInt(&c.MaxCommandsPerSecond, 1, 100_000, "max_commands_per_second")
	r.clampInt(&c.SelectorExpansionCap, 1, 100_000, "selector_expansion_cap")
	r.clampInt(&c.NonceTTLSeconds, 1, 3600, "nonce_ttl_seconds")
	r.clampInt(&c.SessionTokenTTLSeconds, 60, 31_536_000, "session_token_ttl_seconds")

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error), defaulting to info", c.LogLevel))
		c.LogLevel = "info"
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json), defaulting to text", c.LogFormat))
		c.LogFormat = "text"
	}

	for _, err := range r.Warnings {
		slog.Warn("config validation", "error", err)
	}
	for _, err := range r.Fatals {
		slog.Error("config validation fatal", "error", err)
	}

	return r
}

// clampInt clamps *v into [lo, hi], recording a warning when a clamp occurs.
func (r *ValidationResult) clampInt(v *int, lo, hi int, field string) {
	if *v < lo {
		r.Warnings = append(r.Warnings, fmt.Errorf("%s %d is below minimum %d, clamping", field, *v, lo))
		*v = lo
	} else if *v > hi {
		r.Warnings = append(r.Warnings, fmt.Errorf("%s %d exceeds maximum %d, clamping", field, *v, hi))
		*v = hi
	}
}
