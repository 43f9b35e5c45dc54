package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Persistence
	StoreDriver string // postgres, memory
	Database    DatabaseConfig
	Redis       RedisConfig

	// Operator / scheduler secrets
	Auth AuthConfig

	// Daily pick lifecycle
	Schedule    ScheduleConfig
	Picks       PickConfig
	Recommender RecommenderConfig

	// External APIs
	OddsAPI  OddsAPIConfig
	Weather  WeatherConfig
	Injuries InjuryConfig

	PublicCacheTTL time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool

	location *time.Location
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string // redis://[:password@]host:port/db, wins over the parts below
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// AuthConfig holds the shared bearer secrets and the operator rate limit
type AuthConfig struct {
	CronSecret      string
	AdminSecret     string
	AdminRateLimit  int
	AdminRateWindow time.Duration
	// TrustedProxies are the IPs or CIDRs whose X-Forwarded-For is believed.
	// Empty means the socket address is the client.
	TrustedProxies []string
}

// ScheduleConfig controls when the daily pick runs
type ScheduleConfig struct {
	Timezone           string // IANA name, e.g. America/Denver
	DailyPick          string // cron expression with seconds field
	PerformanceRefresh string
}

// PickConfig holds the default recommender constraints
type PickConfig struct {
	MinConfidence float64
	MinOdds       int
	MaxOdds       int
	MaxRisk       string // low, medium, high
	MaxFutureDays int    // how far ahead an operator recompute may target
}

// RecommenderConfig selects and tunes the recommender adapter
type RecommenderConfig struct {
	Mode             string // heuristic, remote
	URL              string
	Timeout          time.Duration // operator path
	ScheduledTimeout time.Duration // scheduler path
}

// OddsAPIConfig holds odds provider configuration
type OddsAPIConfig struct {
	APIKey  string
	BaseURL string
	Regions string
	Leagues []string
}

// WeatherConfig holds weather provider configuration
type WeatherConfig struct {
	APIKey  string
	BaseURL string
}

// InjuryConfig holds the injury report source
type InjuryConfig struct {
	ReportURL string
}

// Load reads configuration from an optional config file and environment variables.
// Environment always wins over the file.
// ⭐ SSOT: 이 함수만 환경변수를 읽음
func Load(configPath string) (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Port: v.GetString("port"),
		Env:  v.GetString("env"),

		StoreDriver: strings.ToLower(v.GetString("store_driver")),
		Database: DatabaseConfig{
			URL:             v.GetString("database_url"),
			MaxConns:        v.GetInt("db_max_conns"),
			MinConns:        v.GetInt("db_min_conns"),
			MaxConnLifetime: v.GetDuration("db_max_conn_lifetime"),
			MaxConnIdleTime: v.GetDuration("db_max_conn_idle_time"),
		},
		Redis: RedisConfig{
			URL:      v.GetString("redis_url"),
			Host:     v.GetString("redis_host"),
			Port:     v.GetString("redis_port"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
			Enabled:  v.GetBool("redis_enabled"),
		},

		Auth: AuthConfig{
			CronSecret:      v.GetString("cron_secret"),
			AdminSecret:     v.GetString("admin_secret"),
			AdminRateLimit:  v.GetInt("admin_rate_limit"),
			AdminRateWindow: v.GetDuration("admin_rate_window"),
			TrustedProxies:  splitFields(v.GetString("trusted_proxies")),
		},

		Schedule: ScheduleConfig{
			Timezone:           v.GetString("operating_timezone"),
			DailyPick:          v.GetString("daily_pick_schedule"),
			PerformanceRefresh: v.GetString("performance_refresh_schedule"),
		},
		Picks: PickConfig{
			MinConfidence: v.GetFloat64("min_confidence"),
			MinOdds:       v.GetInt("min_odds"),
			MaxOdds:       v.GetInt("max_odds"),
			MaxRisk:       strings.ToLower(v.GetString("max_risk")),
			MaxFutureDays: v.GetInt("max_future_days"),
		},
		Recommender: RecommenderConfig{
			Mode:             strings.ToLower(v.GetString("recommender_mode")),
			URL:              v.GetString("recommender_url"),
			Timeout:          v.GetDuration("recommender_timeout"),
			ScheduledTimeout: v.GetDuration("recommender_scheduled_timeout"),
		},

		OddsAPI: OddsAPIConfig{
			APIKey:  v.GetString("odds_api_key"),
			BaseURL: strings.TrimRight(v.GetString("odds_api_base_url"), "/"),
			Regions: v.GetString("odds_api_regions"),
			Leagues: splitList(v.GetString("odds_api_leagues")),
		},
		Weather: WeatherConfig{
			APIKey:  v.GetString("weather_api_key"),
			BaseURL: strings.TrimRight(v.GetString("weather_api_base_url"), "/"),
		},
		Injuries: InjuryConfig{
			ReportURL: v.GetString("injury_report_url"),
		},

		PublicCacheTTL: v.GetDuration("public_cache_ttl"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),

		MetricsEnabled: v.GetBool("metrics_enabled"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("env", "development")

	v.SetDefault("store_driver", "postgres")
	v.SetDefault("database_url", "")
	v.SetDefault("db_max_conns", 10)
	v.SetDefault("db_min_conns", 2)
	v.SetDefault("db_max_conn_lifetime", time.Hour)
	v.SetDefault("db_max_conn_idle_time", 30*time.Minute)

	v.SetDefault("redis_url", "")
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", "6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_enabled", false)

	v.SetDefault("cron_secret", "")
	v.SetDefault("admin_secret", "")
	v.SetDefault("admin_rate_limit", 100)
	v.SetDefault("admin_rate_window", 60*time.Second)
	v.SetDefault("trusted_proxies", "")

	v.SetDefault("operating_timezone", "America/Denver")
	v.SetDefault("daily_pick_schedule", "0 0 9 * * *")
	v.SetDefault("performance_refresh_schedule", "0 */15 * * * *")

	v.SetDefault("min_confidence", 60.0)
	v.SetDefault("min_odds", -200)
	v.SetDefault("max_odds", 300)
	v.SetDefault("max_risk", "medium")
	v.SetDefault("max_future_days", 7)

	v.SetDefault("recommender_mode", "heuristic")
	v.SetDefault("recommender_url", "")
	v.SetDefault("recommender_timeout", 28*time.Second)
	v.SetDefault("recommender_scheduled_timeout", 20*time.Second)

	v.SetDefault("odds_api_key", "")
	v.SetDefault("odds_api_base_url", "https://api.the-odds-api.com/v4")
	v.SetDefault("odds_api_regions", "us")
	v.SetDefault("odds_api_leagues", "NFL,NBA,MLB,NHL")
	v.SetDefault("weather_api_key", "")
	v.SetDefault("weather_api_base_url", "https://api.openweathermap.org/data/2.5")
	v.SetDefault("injury_report_url", "")

	v.SetDefault("public_cache_ttl", 5*time.Minute)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("metrics_enabled", true)
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.StoreDriver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be one of: postgres, memory")
	}

	if c.Env != "development" {
		if c.Auth.CronSecret == "" {
			return fmt.Errorf("CRON_SECRET is required outside development")
		}
		if c.Auth.AdminSecret == "" {
			return fmt.Errorf("ADMIN_SECRET is required outside development")
		}
	}

	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("OPERATING_TIMEZONE %q: %w", c.Schedule.Timezone, err)
	}
	c.location = loc

	if c.Picks.MinOdds >= c.Picks.MaxOdds {
		return fmt.Errorf("MIN_ODDS (%d) must be below MAX_ODDS (%d)", c.Picks.MinOdds, c.Picks.MaxOdds)
	}
	if c.Picks.MinConfidence < 0 || c.Picks.MinConfidence > 100 {
		return fmt.Errorf("MIN_CONFIDENCE must be within [0,100]")
	}
	switch c.Picks.MaxRisk {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("MAX_RISK must be one of: low, medium, high")
	}

	switch c.Recommender.Mode {
	case "heuristic":
	case "remote":
		if c.Recommender.URL == "" {
			return fmt.Errorf("RECOMMENDER_URL is required when RECOMMENDER_MODE=remote")
		}
	default:
		return fmt.Errorf("RECOMMENDER_MODE must be one of: heuristic, remote")
	}

	if c.Auth.AdminRateLimit <= 0 || c.Auth.AdminRateWindow <= 0 {
		return fmt.Errorf("ADMIN_RATE_LIMIT and ADMIN_RATE_WINDOW must be positive")
	}

	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}

	return nil
}

// Location returns the operating timezone. Falls back to UTC on a
// hand-built Config that never went through Load.
func (c *Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	if loc, err := time.LoadLocation(c.Schedule.Timezone); err == nil && c.Schedule.Timezone != "" {
		return loc
	}
	return time.UTC
}

// TrustedProxyPrefixes parses TRUSTED_PROXIES; a bare IP becomes a
// single-address prefix
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.Auth.TrustedProxies))
	for _, raw := range c.Auth.TrustedProxies {
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid CIDR %q: %w", raw, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address %q: %w", raw, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Secrets lists configured credentials that must never reach logs or responses.
func (c *Config) Secrets() []string {
	candidates := []string{
		c.Auth.CronSecret,
		c.Auth.AdminSecret,
		c.OddsAPI.APIKey,
		c.Weather.APIKey,
		c.Redis.Password,
	}

	if u, err := url.Parse(c.Redis.URL); err == nil && u.User != nil {
		if pw, ok := u.User.Password(); ok {
			candidates = append(candidates, pw)
		}
	}
	// pgconn reads both the URL and the key=value form
	if c.Database.URL != "" {
		if pc, err := pgconn.ParseConfig(c.Database.URL); err == nil {
			candidates = append(candidates, pc.Password)
		}
	}

	secrets := make([]string, 0, len(candidates))
	for _, s := range candidates {
		if len(s) >= 4 {
			secrets = append(secrets, s)
		}
	}
	return secrets
}

// IsDevelopment reports whether the process runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func splitFields(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
