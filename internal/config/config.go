package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	AI         AIConfig         `mapstructure:"ai"`
	Scan       ScanConfig       `mapstructure:"scan"`
	State      StateConfig      `mapstructure:"state"`
	PostMortem PostMortemConfig `mapstructure:"postmortem"`
	Automation AutomationConfig `mapstructure:"automation"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type AIConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	Temperature   float64       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay time.Duration `mapstructure:"max_retry_delay"`
}

type ScanConfig struct {
	Timezone string  `mapstructure:"timezone"`
	MinEdge  float64 `mapstructure:"min_edge"`
	MaxEdge  float64 `mapstructure:"max_edge"`
	MinStake int     `mapstructure:"min_stake"`
	MaxStake int     `mapstructure:"max_stake"`
}

type StateConfig struct {
	SnapshotPath   string        `mapstructure:"snapshot_path"`
	MaxHistory     int           `mapstructure:"max_history"`
	MaxActivityLog int           `mapstructure:"max_activity_log"`
	SyncInterval   time.Duration `mapstructure:"sync_interval"`
	FetchLimit     int           `mapstructure:"fetch_limit"`
}

type PostMortemConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
}

type AutomationConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Spec    string   `mapstructure:"spec"`
	Modules []string `mapstructure:"modules"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VIRTUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.temperature", 0.1)
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("ai.timeout", "90s")
	v.SetDefault("ai.retry_attempts", 5)
	v.SetDefault("ai.retry_delay", "10s")
	v.SetDefault("ai.max_retry_delay", "60s")
	v.SetDefault("scan.timezone", "America/Mexico_City")
	v.SetDefault("scan.min_edge", -50)
	v.SetDefault("scan.max_edge", 50)
	v.SetDefault("scan.min_stake", 1)
	v.SetDefault("scan.max_stake", 5)
	v.SetDefault("state.snapshot_path", "./data/virtus-state.json")
	v.SetDefault("state.max_history", 300)
	v.SetDefault("state.max_activity_log", 200)
	v.SetDefault("state.sync_interval", "2m")
	v.SetDefault("state.fetch_limit", 100)
	v.SetDefault("postmortem.enabled", true)
	v.SetDefault("postmortem.spec", "0 0 5 * * *")
	v.SetDefault("automation.enabled", false)
	v.SetDefault("automation.spec", "@every 6h")
	v.SetDefault("automation.modules", []string{"NBA", "MLB", "SOCCER_EUROPE"})

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
