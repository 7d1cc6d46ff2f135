// Package config loads and validates the HackVR server's configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds every tunable of a HackVR server process: transport
// listeners, the implementation limits from §6/§7 of the protocol, and the
// ambient logging setup.
type Config struct {
	// Transport listeners. Any subset may be empty; runServer
	// (cmd/hackvr-server) skips disabled listeners. See §4.5/§6 for the four URL schemes.
	ListenRaw    string `mapstructure:"listen_raw"`     // hackvr://
	ListenRawTLS string `mapstructure:"listen_raw_tls"` // hackvrs://
	ListenHTTP   string `mapstructure:"listen_http"`    // http+hackvr://
	ListenHTTPS  string `mapstructure:"listen_https"`   // https+hackvr://
	TLSCertFile  string `mapstructure:"tls_cert_file"`
	TLSKeyFile   string `mapstructure:"tls_key_file"`

	// Implementation limits (§6, soft defaults).
	MaxTrianglesPerGeometry int `mapstructure:"max_triangles_per_geometry"`
	MaxObjects              int `mapstructure:"max_objects"`
	MaxNestingDepth         int `mapstructure:"max_nesting_depth"`
	MaxCommandsPerSecond    int `mapstructure:"max_commands_per_second"`
	SelectorExpansionCap    int `mapstructure:"selector_expansion_cap"`

	// Auth (§4.6).
	AuthRequired      bool   `mapstructure:"auth_required"`
	IdentityStorePath string `mapstructure:"identity_store_path"`
	NonceTTLSeconds   int    `mapstructure:"nonce_ttl_seconds"`

	// Session tokens (§4.7).
	SessionTokenTTLSeconds int `mapstructure:"session_token_ttl_seconds"`

	// Logging.
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

// Default returns a Config populated with the spec's soft defaults.
func Default() *Config {
	return &Config{
		ListenRaw:               "0.0.0.0:7600",
		MaxTrianglesPerGeometry: 100_000,
		MaxObjects:              10_000,
		MaxNestingDepth:         16,
		MaxCommandsPerSecond:    1_000,
		SelectorExpansionCap:    1_000,
		NonceTTLSeconds:         60,
		SessionTokenTTLSeconds:  86_400,
		LogLevel:                "info",
		LogFormat:               "text",
		LogMaxSizeMB:            50,
		LogMaxBackups:           3,
	}
}

// Load reads configuration from cfgFile (or the default search path when
// empty), applies environment overrides, and validates the result.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("hackvrd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("HACKVR")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	if result.HasFatals() {
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

// configDir returns the platform's default configuration directory.
func configDir() string {
	if dir := os.Getenv("HACKVR_CONFIG_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(string(filepath.Separator), "etc", "hackvr")
}
