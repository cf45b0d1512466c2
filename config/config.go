package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config contains application configuration parameters
type Config struct {
	// Server configuration
	Port         string        `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`

	// Telegram Bot configuration
	Token      string `json:"token"`
	AdminToken string `json:"admin_token"`

	// Dispatch configuration
	DriversGroupID  int64         `json:"drivers_group_id"`
	AdminTelegramID int64         `json:"admin_telegram_id"`
	MaxQueueDepth   int           `json:"max_queue_depth"`
	NotifyTimeout   time.Duration `json:"notify_timeout"`
	SweepInterval   time.Duration `json:"sweep_interval"`

	// Database configuration
	DBName          string        `json:"db_name"`
	DBPath          string        `json:"db_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`

	// Redis configuration (conversation state)
	RedisAddr     string        `json:"redis_addr"`
	RedisPassword string        `json:"redis_password"`
	RedisDB       int           `json:"redis_db"`
	StateTTL      time.Duration `json:"state_ttl"`

	// App configuration
	Environment string `json:"environment"` // development, production
	LogLevel    string `json:"log_level"`   // debug, info, warn, error
}

// NewConfig creates and returns a new configuration instance
func NewConfig() (*Config, error) {
	cfg := &Config{
		// Server defaults
		Port:         ":8082",
		Host:         "0.0.0.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,

		// Telegram defaults
		AdminToken: "admin-secret-token-change-in-production",

		// Dispatch defaults
		MaxQueueDepth: 3,
		NotifyTimeout: 5 * time.Minute,
		SweepInterval: 30 * time.Second,

		// Database defaults
		DBName:          "yolda.db",
		DBPath:          "./data/",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,

		// Redis defaults
		RedisAddr: "localhost:6379",
		StateTTL:  time.Hour,

		// App defaults
		Environment: "development",
		LogLevel:    "info",
	}

	// Override with environment variables if set
	if port := os.Getenv("PORT"); port != "" {
		if port[0] != ':' {
			cfg.Port = ":" + port
		} else {
			cfg.Port = port
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}

	if token := os.Getenv("BOT_TOKEN"); token != "" {
		cfg.Token = token
	}

	if adminToken := os.Getenv("ADMIN_TOKEN"); adminToken != "" {
		cfg.AdminToken = adminToken
	}

	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.DBName = dbName
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.RedisAddr = redisAddr
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Parse numeric environment variables
	if groupID := os.Getenv("DRIVERS_GROUP_ID"); groupID != "" {
		if id, err := strconv.ParseInt(groupID, 10, 64); err == nil {
			cfg.DriversGroupID = id
		}
	}

	if adminID := os.Getenv("ADMIN_TELEGRAM_ID"); adminID != "" {
		if id, err := strconv.ParseInt(adminID, 10, 64); err == nil {
			cfg.AdminTelegramID = id
		}
	}

	if depth := os.Getenv("MAX_QUEUE_DEPTH"); depth != "" {
		if d, err := strconv.Atoi(depth); err == nil {
			cfg.MaxQueueDepth = d
		}
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			cfg.RedisDB = db
		}
	}

	if maxOpenConns := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenConns != "" {
		if conns, err := strconv.Atoi(maxOpenConns); err == nil {
			cfg.MaxOpenConns = conns
		}
	}

	if maxIdleConns := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleConns != "" {
		if conns, err := strconv.Atoi(maxIdleConns); err == nil {
			cfg.MaxIdleConns = conns
		}
	}

	// Parse duration environment variables
	if notifyTimeout := os.Getenv("NOTIFY_TIMEOUT"); notifyTimeout != "" {
		if timeout, err := time.ParseDuration(notifyTimeout); err == nil {
			cfg.NotifyTimeout = timeout
		}
	}

	if sweepInterval := os.Getenv("SWEEP_INTERVAL"); sweepInterval != "" {
		if interval, err := time.ParseDuration(sweepInterval); err == nil {
			cfg.SweepInterval = interval
		}
	}

	if stateTTL := os.Getenv("STATE_TTL"); stateTTL != "" {
		if ttl, err := time.ParseDuration(stateTTL); err == nil {
			cfg.StateTTL = ttl
		}
	}

	if readTimeout := os.Getenv("READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			cfg.ReadTimeout = timeout
		}
	}

	if writeTimeout := os.Getenv("WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			cfg.WriteTimeout = timeout
		}
	}

	if idleTimeout := os.Getenv("IDLE_TIMEOUT"); idleTimeout != "" {
		if timeout, err := time.ParseDuration(idleTimeout); err == nil {
			cfg.IdleTimeout = timeout
		}
	}

	if connMaxLifetime := os.Getenv("DB_CONN_MAX_LIFETIME"); connMaxLifetime != "" {
		if lifetime, err := time.ParseDuration(connMaxLifetime); err == nil {
			cfg.ConnMaxLifetime = lifetime
		}
	}

	return cfg, nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GetDatabasePath returns the full path to the database file
func (c *Config) GetDatabasePath() string {
	return c.DBPath + c.DBName
}

// GetServerAddress returns the server address
func (c *Config) GetServerAddress() string {
	return c.Host + c.Port
}

// ValidateConfig validates the configuration
func (c *Config) ValidateConfig() error {
	if c.Token == "" {
		return fmt.Errorf("telegram bot token is required")
	}

	if c.DriversGroupID == 0 {
		return fmt.Errorf("drivers group id is required")
	}

	if c.DBName == "" {
		return fmt.Errorf("database name is required")
	}

	if c.MaxQueueDepth <= 0 {
		return fmt.Errorf("max queue depth must be positive")
	}

	if c.NotifyTimeout < 0 {
		return fmt.Errorf("notify timeout cannot be negative")
	}

	return nil
}
