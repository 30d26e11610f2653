package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cuongbtq/text-stream/shared/logger"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// MaxPollInterval is the longest the scheduler may sleep between admission passes
	MaxPollInterval = 100 * time.Millisecond
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	App           AppConfig           `yaml:"app"`
	Worker        WorkerConfig        `yaml:"worker"`
	Retention     RetentionConfig     `yaml:"retention"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Database      DatabaseConfig      `yaml:"database"`
}

// ServerConfig holds HTTP server configuration.
// WriteTimeout stays zero by default so SSE streams are not cut off.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds scheduler configuration.
// A zero Concurrency means one slot per CPU.
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	UnitDelayMin    time.Duration `yaml:"unit_delay_min"`
	UnitDelayMax    time.Duration `yaml:"unit_delay_max"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RetentionConfig controls the sweep of finished jobs
type RetentionConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	MaxAge   time.Duration `yaml:"max_age"`
	Archive  bool          `yaml:"archive"`
}

// NotificationsConfig holds push channel and broker settings
type NotificationsConfig struct {
	BufferSize int            `yaml:"buffer_size"`
	RabbitMQ   RabbitMQConfig `yaml:"rabbitmq"`
	Redis      RedisConfig    `yaml:"redis"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration
type RabbitMQConfig struct {
	Enabled          bool             `yaml:"enabled"`
	Host             string           `yaml:"host"`
	Port             int              `yaml:"port"`
	User             string           `yaml:"user"`
	Password         string           `yaml:"password"`
	VHost            string           `yaml:"vhost"`
	Exchange         ExchangeConfig   `yaml:"exchange"`
	RoutingKeyPrefix string           `yaml:"routing_key_prefix"`
	PublishTimeout   time.Duration    `yaml:"publish_timeout"`
	Connection       ConnectionConfig `yaml:"connection"`
	Publish          PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// RedisConfig holds Redis pub/sub settings
type RedisConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	ChannelPrefix  string        `yaml:"channel_prefix"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration for the job archive
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// Load reads and parses the configuration file. ${VAR} references are
// expanded from the environment before parsing and defaults are applied.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills every unset field that has a sensible default
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.App.Name == "" {
		c.App.Name = "text-stream"
	}
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}

	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = MaxPollInterval
	}
	if c.Worker.RetryBackoff == 0 {
		c.Worker.RetryBackoff = 500 * time.Millisecond
	}
	if c.Worker.UnitDelayMin == 0 && c.Worker.UnitDelayMax == 0 {
		c.Worker.UnitDelayMin = time.Second
		c.Worker.UnitDelayMax = 5 * time.Second
	}
	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}

	if c.Retention.Interval == 0 {
		c.Retention.Interval = 10 * time.Minute
	}
	if c.Retention.MaxAge == 0 {
		c.Retention.MaxAge = 24 * time.Hour
	}

	if c.Notifications.BufferSize == 0 {
		c.Notifications.BufferSize = 256
	}

	rmq := &c.Notifications.RabbitMQ
	if rmq.Port == 0 {
		rmq.Port = 5672
	}
	if rmq.VHost == "" {
		rmq.VHost = "/"
	}
	if rmq.Exchange.Type == "" {
		rmq.Exchange.Type = "topic"
	}
	if rmq.RoutingKeyPrefix == "" {
		rmq.RoutingKeyPrefix = "job"
	}
	if rmq.PublishTimeout == 0 {
		rmq.PublishTimeout = 5 * time.Second
	}
	if rmq.Connection.RetryAttempts == 0 {
		rmq.Connection.RetryAttempts = 5
	}
	if rmq.Connection.RetryInterval == 0 {
		rmq.Connection.RetryInterval = 2 * time.Second
	}
	if rmq.Connection.Heartbeat == 0 {
		rmq.Connection.Heartbeat = 10 * time.Second
	}
	if rmq.Publish.RetryAttempts == 0 {
		rmq.Publish.RetryAttempts = 3
	}
	if rmq.Publish.RetryInterval == 0 {
		rmq.Publish.RetryInterval = 100 * time.Millisecond
	}
	if rmq.Publish.BackoffMultiplier == 0 {
		rmq.Publish.BackoffMultiplier = 2
	}

	rds := &c.Notifications.Redis
	if rds.ChannelPrefix == "" {
		rds.ChannelPrefix = "jobs"
	}
	if rds.PublishTimeout == 0 {
		rds.PublishTimeout = 2 * time.Second
	}

	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 5
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 2
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid logging format: %q (must be json or console)", c.Logging.Format)
	}

	if err := c.Worker.validate(); err != nil {
		return err
	}

	if c.Retention.Enabled {
		if c.Retention.Interval <= 0 {
			return errors.New("retention interval must be greater than 0")
		}
		if c.Retention.MaxAge <= 0 {
			return errors.New("retention max_age must be greater than 0")
		}
	}

	if c.Retention.Archive && !c.Database.Enabled {
		return errors.New("retention archive requires the database to be enabled")
	}

	if c.Notifications.BufferSize <= 0 {
		return errors.New("notifications buffer_size must be greater than 0")
	}

	if rmq := c.Notifications.RabbitMQ; rmq.Enabled {
		if rmq.Host == "" {
			return errors.New("rabbitmq host is required")
		}
		if rmq.Port < MinPort || rmq.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", rmq.Port, MinPort, MaxPort)
		}
		if rmq.Exchange.Name == "" {
			return errors.New("rabbitmq exchange name is required")
		}
	}

	if rds := c.Notifications.Redis; rds.Enabled && rds.URL == "" {
		return errors.New("redis url is required")
	}

	if db := c.Database; db.Enabled {
		if db.Host == "" {
			return errors.New("database host is required")
		}
		if db.Port < MinPort || db.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", db.Port, MinPort, MaxPort)
		}
		if db.Database == "" {
			return errors.New("database name is required")
		}
	}

	return nil
}

func (w WorkerConfig) validate() error {
	if w.Concurrency < 0 {
		return errors.New("worker concurrency must not be negative")
	}

	if w.PollInterval <= 0 || w.PollInterval > MaxPollInterval {
		return fmt.Errorf("worker poll_interval must be greater than 0 and at most %s", MaxPollInterval)
	}

	if w.RetryBackoff <= 0 {
		return errors.New("worker retry_backoff must be greater than 0")
	}

	if w.UnitDelayMin < 0 || w.UnitDelayMax < 0 {
		return errors.New("worker unit delays must not be negative")
	}

	if w.UnitDelayMin > w.UnitDelayMax {
		return errors.New("worker unit_delay_min must not exceed unit_delay_max")
	}

	if w.ShutdownTimeout <= 0 {
		return errors.New("worker shutdown_timeout must be greater than 0")
	}

	return nil
}
