package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEXT_STREAM_RABBITMQ_PASSWORD", "s3cret")

			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Zero(t, cfg.Server.WriteTimeout)
				assert.Equal(t, "text-stream-api", cfg.App.Name)
				assert.Equal(t, 4, cfg.Worker.Concurrency)
				assert.Equal(t, 50*time.Millisecond, cfg.Worker.PollInterval)
				assert.Equal(t, 5*time.Second, cfg.Worker.UnitDelayMax)
				assert.Equal(t, time.Hour, cfg.Retention.MaxAge)
				assert.Equal(t, 128, cfg.Notifications.BufferSize)
				assert.Equal(t, "job_events", cfg.Notifications.RabbitMQ.Exchange.Name)
				assert.Equal(t, "s3cret", cfg.Notifications.RabbitMQ.Password)
				assert.Equal(t, "redis://localhost:6379/0", cfg.Notifications.Redis.URL)
				assert.Equal(t, "jobs_archive", cfg.Database.Database)
			}
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load("testdata/minimal.yaml")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.Equal(t, MaxPollInterval, cfg.Worker.PollInterval)
	assert.Equal(t, time.Second, cfg.Worker.UnitDelayMin)
	assert.Equal(t, 5*time.Second, cfg.Worker.UnitDelayMax)
	assert.Equal(t, 24*time.Hour, cfg.Retention.MaxAge)
	assert.Equal(t, 256, cfg.Notifications.BufferSize)
	assert.Equal(t, "job", cfg.Notifications.RabbitMQ.RoutingKeyPrefix)
	assert.Equal(t, "jobs", cfg.Notifications.Redis.ChannelPrefix)
	assert.False(t, cfg.Notifications.RabbitMQ.Enabled)
	assert.False(t, cfg.Database.Enabled)

	require.NoError(t, cfg.Validate())
}

func validConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero unit delay is allowed",
			mutate:  func(c *Config) { c.Worker.UnitDelayMin, c.Worker.UnitDelayMax = 0, 0 },
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "unknown log level",
			mutate:    func(c *Config) { c.Logging.Level = "trace" },
			wantErr:   true,
			errString: "unknown log level",
		},
		{
			name:      "unknown log format",
			mutate:    func(c *Config) { c.Logging.Format = "xml" },
			wantErr:   true,
			errString: "invalid logging format",
		},
		{
			name:      "negative concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = -1 },
			wantErr:   true,
			errString: "worker concurrency must not be negative",
		},
		{
			name:      "poll interval too long",
			mutate:    func(c *Config) { c.Worker.PollInterval = time.Second },
			wantErr:   true,
			errString: "worker poll_interval",
		},
		{
			name: "unit delay range inverted",
			mutate: func(c *Config) {
				c.Worker.UnitDelayMin = 3 * time.Second
				c.Worker.UnitDelayMax = time.Second
			},
			wantErr:   true,
			errString: "unit_delay_min must not exceed unit_delay_max",
		},
		{
			name: "retention without interval",
			mutate: func(c *Config) {
				c.Retention.Enabled = true
				c.Retention.Interval = -time.Second
			},
			wantErr:   true,
			errString: "retention interval",
		},
		{
			name:      "archive without database",
			mutate:    func(c *Config) { c.Retention.Archive = true },
			wantErr:   true,
			errString: "retention archive requires the database",
		},
		{
			name:      "non-positive buffer size",
			mutate:    func(c *Config) { c.Notifications.BufferSize = -1 },
			wantErr:   true,
			errString: "notifications buffer_size",
		},
		{
			name: "empty rabbitmq host",
			mutate: func(c *Config) {
				c.Notifications.RabbitMQ.Enabled = true
				c.Notifications.RabbitMQ.Exchange.Name = "job_events"
			},
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name: "empty exchange name",
			mutate: func(c *Config) {
				c.Notifications.RabbitMQ.Enabled = true
				c.Notifications.RabbitMQ.Host = "localhost"
			},
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty redis url",
			mutate:    func(c *Config) { c.Notifications.Redis.Enabled = true },
			wantErr:   true,
			errString: "redis url is required",
		},
		{
			name: "empty database host",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Database = "jobs_archive"
			},
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name: "disabled database is not checked",
			mutate: func(c *Config) {
				c.Database.Host = ""
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.NoError(t, err)
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestPortConstants(t *testing.T) {
	assert.Equal(t, 1, MinPort)
	assert.Equal(t, 65535, MaxPort)
}
