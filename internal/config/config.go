package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents application configuration
type Config struct {
	Portal      PortalConfig      `mapstructure:"portal"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Search      SearchConfig      `mapstructure:"search"`
	Snapshot    SnapshotConfig    `mapstructure:"snapshot"`
	Daemon      DaemonConfig      `mapstructure:"daemon"`
}

// PortalConfig represents the portal origins and timezone
type PortalConfig struct {
	LoginURL string `mapstructure:"login_url"` // empty = production portal
	APIURL   string `mapstructure:"api_url"`   // empty = production API
	Timezone string `mapstructure:"timezone"`  // IANA name, default Asia/Seoul
}

// CredentialsConfig represents the portal account.
// Values support ${ENV_VAR} expansion so the password can stay out of the file.
type CredentialsConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// SearchConfig represents the default calendar search filters
type SearchConfig struct {
	OrgCode       string `mapstructure:"org_code"`
	OrgSearchType string `mapstructure:"org_search_type"` // default "N"
	PosCode       string `mapstructure:"pos_code"`
	ResCode       string `mapstructure:"res_code"`
	TeammateOnly  bool   `mapstructure:"teammate_only"`
}

// SnapshotConfig represents the local snapshot file used for exports and
// offline fallback
type SnapshotConfig struct {
	File     string `mapstructure:"file"`
	CacheTTL string `mapstructure:"cache_ttl"`
}

// DaemonConfig represents watch mode configuration
type DaemonConfig struct {
	DailyTime   string `mapstructure:"daily_time"`   // HH:MM in portal timezone
	StartJitter string `mapstructure:"start_jitter"` // max random delay before the daily fetch
	LookAhead   int    `mapstructure:"look_ahead"`   // days to fetch ahead, default 7
	LogFile     string `mapstructure:"log_file"`
	LogLevel    string `mapstructure:"log_level"`
	SystemTray  bool   `mapstructure:"system_tray"` // Show system tray icon (Windows only)
}

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.gotigris")
		v.AddConfigPath("/etc/gotigris")
	}

	// Read environment variables
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Credentials.Email == "" {
		return fmt.Errorf("credentials.email is required")
	}
	if c.Credentials.Password == "" {
		return fmt.Errorf("credentials.password is required")
	}

	if c.Portal.Timezone != "" {
		if _, err := time.LoadLocation(c.Portal.Timezone); err != nil {
			return fmt.Errorf("portal.timezone is not a valid IANA name: %w", err)
		}
	}

	if c.Snapshot.CacheTTL != "" {
		if _, err := time.ParseDuration(c.Snapshot.CacheTTL); err != nil {
			return fmt.Errorf("snapshot.cache_ttl is not a valid duration: %w", err)
		}
	}

	if c.Daemon.LookAhead < 0 {
		return fmt.Errorf("daemon.look_ahead must not be negative")
	}

	return nil
}

// GetLocation returns the configured portal timezone. Default: Asia/Seoul
func (c *PortalConfig) GetLocation() (*time.Location, error) {
	name := c.Timezone
	if name == "" {
		name = "Asia/Seoul"
	}
	return time.LoadLocation(name)
}

// GetCacheTTL returns snapshot cache TTL duration
func (c *SnapshotConfig) GetCacheTTL() time.Duration {
	if c.CacheTTL == "" {
		return 1 * time.Hour
	}
	duration, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 1 * time.Hour
	}
	return duration
}

// GetDailyTime returns the configured daily fetch time in the portal timezone.
// Returns hour and minute (0-23, 0-59). Default: 08:30
func (c *DaemonConfig) GetDailyTime() (hour, minute int) {
	if c.DailyTime == "" {
		return 8, 30
	}

	var h, m int
	_, err := fmt.Sscanf(c.DailyTime, "%d:%d", &h, &m)
	if err != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 8, 30 // Fallback to default
	}
	return h, m
}

// GetStartJitter returns the max random delay applied before the daily fetch
func (c *DaemonConfig) GetStartJitter() time.Duration {
	if c.StartJitter == "" {
		return 5 * time.Minute
	}
	duration, err := time.ParseDuration(c.StartJitter)
	if err != nil {
		return 5 * time.Minute
	}
	return duration
}

// GetLookAhead returns how many days ahead the daemon fetches. Default: 7
func (c *DaemonConfig) GetLookAhead() int {
	if c.LookAhead == 0 {
		return 7
	}
	return c.LookAhead
}

// ExpandEnvVars expands environment variables in config strings
func (c *Config) ExpandEnvVars() {
	c.Credentials.Email = os.ExpandEnv(c.Credentials.Email)
	c.Credentials.Password = os.ExpandEnv(c.Credentials.Password)
}
