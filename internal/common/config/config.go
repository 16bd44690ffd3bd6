package config

import "fmt"

type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Sequence      SequenceConfig          `mapstructure:"sequence"`
	CRM           CRMConfig               `mapstructure:"crm"`
	Retry         RetryConfig             `mapstructure:"retry"`
	Conversion    ConversionConfig        `mapstructure:"conversion"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Auth          AuthConfig              `mapstructure:"auth"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Local    LocalConfig    `mapstructure:"local"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LocalConfig is the on-disk cache that backs immediate reads.
type LocalConfig struct {
	Path string `mapstructure:"path"`
}

type SequenceConfig struct {
	Backend      string `mapstructure:"backend"` // postgres | redis
	Prefix       string `mapstructure:"prefix"`
	RedisKey     string `mapstructure:"redis_key"`
	ScanFallback bool   `mapstructure:"scan_fallback"`
}

type CRMConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	APIToken string `mapstructure:"api_token"`
	CaseType string `mapstructure:"case_type"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
}

// RetryConfig is the CRM client's fixed-delay policy. The remote mirror
// shares the delay but always makes store.MirrorAttempts attempts.
type RetryConfig struct {
	Attempts int `mapstructure:"attempts"`
	Delay    int `mapstructure:"delay"` // milliseconds
}

type ConversionConfig struct {
	ClaimEnabled bool `mapstructure:"claim_enabled"`
	ClaimTTL     int  `mapstructure:"claim_ttl"` // milliseconds
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type NotificationConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
	AWS     AWSConfig     `mapstructure:"aws"`
}

type WebhookConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Envelope bool   `mapstructure:"envelope"` // wrap as {"text": ...}
	Timeout  int    `mapstructure:"timeout"`  // milliseconds
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
	SES    struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		To        []string `mapstructure:"to"`
	} `mapstructure:"ses"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}
