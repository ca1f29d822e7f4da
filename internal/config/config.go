package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config is the full apkfleet configuration.
type Config struct {
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Install InstallConfig `mapstructure:"install"`
	Workers WorkersConfig `mapstructure:"workers"`
	Log     LogConfig     `mapstructure:"log"`
}

// BridgeConfig configures the device bridge executable.
type BridgeConfig struct {
	Path          string `mapstructure:"path"`
	DefaultDevice string `mapstructure:"default_device"`
}

// ToolsConfig configures external toolchain paths.
type ToolsConfig struct {
	AAPTPath string `mapstructure:"aapt_path"`
}

// InstallConfig holds default install options.
type InstallConfig struct {
	Reinstall        bool   `mapstructure:"reinstall"`
	AllowDowngrade   bool   `mapstructure:"allow_downgrade"`
	GrantPermissions bool   `mapstructure:"grant_permissions"`
	UserID           int    `mapstructure:"user_id"`
	SplitMatch       string `mapstructure:"split_match"`
	Strategy         string `mapstructure:"strategy"`
	VerifyVersion    bool   `mapstructure:"verify_version"`
	VerifySignature  bool   `mapstructure:"verify_signature"`
	MaxRetries       int    `mapstructure:"max_retries"`
	ChunkKB          int    `mapstructure:"chunk_kb"`
	MaxRateKBps      int64  `mapstructure:"max_rate_kbps"`
}

// WorkersConfig bounds concurrency for external tool invocations.
type WorkersConfig struct {
	Extract int `mapstructure:"extract"`
	Enrich  int `mapstructure:"enrich"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("bridge.path", "adb")
	viper.SetDefault("bridge.default_device", "")
	viper.SetDefault("tools.aapt_path", "aapt2")
	viper.SetDefault("install.reinstall", true)
	viper.SetDefault("install.allow_downgrade", false)
	viper.SetDefault("install.grant_permissions", false)
	viper.SetDefault("install.user_id", -1)
	viper.SetDefault("install.split_match", "relaxed")
	viper.SetDefault("install.strategy", "auto")
	viper.SetDefault("install.verify_version", true)
	viper.SetDefault("install.verify_signature", false)
	viper.SetDefault("install.max_retries", 2)
	viper.SetDefault("install.chunk_kb", 128)
	viper.SetDefault("install.max_rate_kbps", 0)
	viper.SetDefault("workers.extract", 4)
	viper.SetDefault("workers.enrich", 4)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.file", "")

	// Try to load config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and the user config directory
		viper.SetConfigName("apkfleet")
		viper.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "apkfleet"))
		}
	}

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is not an error, we'll use defaults
	}

	// Bind environment variables
	viper.SetEnvPrefix("APKFLEET")
	viper.AutomaticEnv()

	// Unmarshal configuration
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// SaveTemplate saves a configuration template
func SaveTemplate(path string) error {
	templateContent := `# ApkFleet Configuration File

bridge:
  # Path to the adb executable
  path: "adb"

  # Default target device serial (empty = prompt / all)
  default_device: ""

tools:
  # Path to aapt2 (falls back to aapt, then in-process parsing)
  aapt_path: "aapt2"

install:
  # Replace already installed packages (-r)
  reinstall: true

  # Allow version downgrade (-d)
  allow_downgrade: false

  # Grant all runtime permissions on install (-g)
  grant_permissions: false

  # Target user id (-1 = default user)
  user_id: -1

  # Split matching policy: strict, relaxed, base-only
  split_match: "relaxed"

  # Install strategy: auto, multi, session
  strategy: "auto"

  # Require all files in a group to share the base version code
  verify_version: true

  # Compare content-hash signer proxy across same package+version files.
  # This is NOT certificate verification.
  verify_signature: false

  # Device/protocol failures are retried up to this many times
  max_retries: 2

  # Session write chunk size in KB
  chunk_kb: 128

  # Transfer rate cap in KB/s (0 = unlimited)
  max_rate_kbps: 0

workers:
  # Concurrent manifest extraction workers
  extract: 4

  # Concurrent device property enrichment workers
  enrich: 4

log:
  # debug, info, warn, error
  level: "info"

  # text, compact, json
  format: "text"

  # Optional log file path
  file: ""
`

	return os.WriteFile(path, []byte(templateContent), 0644)
}
