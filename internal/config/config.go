package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kinecosystem/localnet/pkg/admin"
	"github.com/kinecosystem/localnet/pkg/builder"
	"github.com/kinecosystem/localnet/pkg/seed"
	"github.com/kinecosystem/localnet/pkg/tools"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Compose project
	ImagesDir     string `mapstructure:"images-dir"`
	ComposeFile   string `mapstructure:"compose-file"`
	ComposeBinary string `mapstructure:"compose-binary"`
	Sudo          bool   `mapstructure:"sudo"`
	DockerHost    string `mapstructure:"docker-host"`
	CoreVolume    string `mapstructure:"core-volume"`

	// Core image
	CoreRepo     string `mapstructure:"core-repo"`
	CoreBranch   string `mapstructure:"core-branch"`
	CoreCheckout string `mapstructure:"core-checkout"`
	// CoreImage pins the presence-check name; empty derives it from compose.
	CoreImage    string `mapstructure:"core-image"`

	// API image
	APIRepo        string `mapstructure:"api-repo"`
	APIBranch      string `mapstructure:"api-branch"`
	APICheckout    string `mapstructure:"api-checkout"`
	APIImage       string `mapstructure:"api-image"`
	APIVersion     string `mapstructure:"api-version"`
	LDFlagsPackage string `mapstructure:"ldflags-package"`

	// Dependency tool
	GlideVersion string `mapstructure:"glide-version"`
	GlideArch    string `mapstructure:"glide-arch"`
	GlideOS      string `mapstructure:"glide-os"`

	// Bring-up
	SettleDelay      time.Duration `mapstructure:"settle-delay"`
	ReadinessProbe   bool          `mapstructure:"readiness-probe"`
	ReadinessTimeout time.Duration `mapstructure:"readiness-timeout"`
	CoreInitFlags    string        `mapstructure:"core-init-flags"`
	CoreHistoryFlags string        `mapstructure:"core-history-flags"`
	APIInitCommand   string        `mapstructure:"api-init-command"`
	SeedMarker       string        `mapstructure:"seed-marker"`
	SeedIndex        int           `mapstructure:"seed-index"`

	// Ledger upgrades
	AdminURL        string `mapstructure:"admin-url"`
	BaseReserve     int    `mapstructure:"base-reserve"`
	ProtocolVersion int    `mapstructure:"protocol-version"`
	UpgradeAttempts int    `mapstructure:"upgrade-attempts"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("images-dir", "images")
	v.SetDefault("compose-file", "")
	v.SetDefault("compose-binary", "docker-compose")
	v.SetDefault("sudo", true)
	v.SetDefault("docker-host", "")
	v.SetDefault("core-volume", "volumes/stellar-core")

	v.SetDefault("core-repo", builder.DefaultCoreRepo)
	v.SetDefault("core-branch", builder.DefaultCoreBranch)
	v.SetDefault("core-checkout", builder.DefaultCoreCheckout)
	v.SetDefault("core-image", "")

	v.SetDefault("api-repo", builder.DefaultAPIRepo)
	v.SetDefault("api-branch", builder.DefaultAPIBranch)
	v.SetDefault("api-checkout", builder.DefaultAPICheckout)
	v.SetDefault("api-image", "")
	v.SetDefault("api-version", builder.DefaultAPIBranch)
	v.SetDefault("ldflags-package", builder.DefaultLDFlagsPackage)

	v.SetDefault("glide-version", tools.DefaultGlideVersion)
	v.SetDefault("glide-arch", "amd64")
	v.SetDefault("glide-os", "")

	v.SetDefault("settle-delay", 2*time.Second)
	v.SetDefault("readiness-probe", false)
	v.SetDefault("readiness-timeout", time.Minute)
	v.SetDefault("core-init-flags", "--newdb --forcescp")
	v.SetDefault("core-history-flags", "--newhist cache")
	v.SetDefault("api-init-command", "db init")
	v.SetDefault("seed-marker", seed.DefaultMarker)
	v.SetDefault("seed-index", seed.DefaultPattern().Index)

	v.SetDefault("admin-url", admin.DefaultURL)
	v.SetDefault("base-reserve", 0)
	v.SetDefault("protocol-version", 9)
	v.SetDefault("upgrade-attempts", 2)
}

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against an explicit viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// Environment variables (LOCALNET_IMAGES_DIR, etc.)
	v.SetEnvPrefix("LOCALNET")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	v.SetConfigName("localnet")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.localnet")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.ImagesDir == "" {
		return fmt.Errorf("images-dir cannot be empty")
	}
	if strings.TrimSpace(c.ComposeBinary) == "" {
		return fmt.Errorf("compose-binary cannot be empty")
	}
	if c.CoreRepo == "" || c.APIRepo == "" {
		return fmt.Errorf("core-repo and api-repo cannot be empty")
	}
	if c.CoreVolume == "" {
		return fmt.Errorf("core-volume cannot be empty")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle-delay must be non-negative")
	}
	if c.ReadinessProbe && c.ReadinessTimeout <= 0 {
		return fmt.Errorf("readiness-timeout must be positive when readiness-probe is set")
	}
	if c.SeedMarker == "" {
		return fmt.Errorf("seed-marker cannot be empty")
	}
	if c.SeedIndex < 0 {
		return fmt.Errorf("seed-index must be non-negative")
	}
	if c.AdminURL == "" {
		return fmt.Errorf("admin-url cannot be empty")
	}
	if c.UpgradeAttempts < 1 {
		return fmt.Errorf("upgrade-attempts must be at least 1")
	}
	return nil
}
