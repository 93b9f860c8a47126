package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Supported storage drivers.
const (
	DriverBolt     = "bolt"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// EnvPrefix is the prefix of every environment variable read by the App.
const EnvPrefix = "BOOKS"

// Config defines the structure of the configuration file.
type Config struct {
	GitCommit          string          `yaml:"git_commit" json:"git_commit" envconfig:"BOOKS_GIT_COMMIT"`
	GitTag             string          `yaml:"git_tag" json:"git_tag" envconfig:"BOOKS_GIT_TAG"`
	BuildTime          string          `yaml:"build_time" json:"build_time" envconfig:"BOOKS_BUILD_TIME"`
	IsProduction       bool            `yaml:"is_production" json:"is_production" envconfig:"BOOKS_IS_PRODUCTION"`
	LogLevel           zapcore.Level   `yaml:"log_level" json:"log_level" envconfig:"BOOKS_LOG_LEVEL"`
	LogFolder          string          `yaml:"log_folder" json:"log_folder" envconfig:"BOOKS_LOG_FOLDER"`
	LogMaxSize         int             `yaml:"log_max_size" json:"log_max_size" envconfig:"BOOKS_LOG_MAX_SIZE"`
	ProfilerEnable     bool            `yaml:"profiler_enable" json:"profiler_enable" envconfig:"BOOKS_PROFILER_ENABLE"`
	OpsEndpointsEnable bool            `yaml:"ops_endpoints_enable" json:"ops_endpoints_enable" envconfig:"BOOKS_OPS_ENDPOINTS_ENABLE"`
	Server             ServerConfig    `yaml:"server" json:"server"`
	Storage            StorageConfig   `yaml:"storage" json:"storage"`
	BoltDB             BoltDBConfig    `yaml:"boltdb" json:"boltdb"`
	SQLite             SQLiteConfig    `yaml:"sqlite" json:"sqlite"`
	Postgres           PostgresConfig  `yaml:"postgres" json:"postgres"`
	Redis              RedisConfig     `yaml:"redis" json:"redis"`
	Journal            JournalConfig   `yaml:"journal" json:"journal"`
	RateLimit          RateLimitConfig `yaml:"ratelimit" json:"ratelimit"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" json:"host" envconfig:"BOOKS_SERVER_HOST"`
	Port            string        `yaml:"port" json:"port" envconfig:"BOOKS_SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" envconfig:"BOOKS_SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" envconfig:"BOOKS_SERVER_WRITE_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout" envconfig:"BOOKS_SERVER_REQUEST_TIMEOUT"` // Time to wait for a request to finish
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" envconfig:"BOOKS_SERVER_SHUTDOWN_TIMEOUT"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" json:"driver" envconfig:"BOOKS_STORAGE_DRIVER"`
}

type BoltDBConfig struct {
	FilePath   string        `yaml:"filepath" json:"filepath" envconfig:"BOOKS_BOLTDB_FILE_PATH"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout" envconfig:"BOOKS_BOLTDB_TIMEOUT"`
	BucketName string        `yaml:"bucket_name" json:"bucket_name" envconfig:"BOOKS_BOLTDB_BUCKET_NAME"`
}

type SQLiteConfig struct {
	FilePath    string        `yaml:"filepath" json:"filepath" envconfig:"BOOKS_SQLITE_FILE_PATH"`
	BusyTimeout time.Duration `yaml:"busy_timeout" json:"busy_timeout" envconfig:"BOOKS_SQLITE_BUSY_TIMEOUT"`
}

type PostgresConfig struct {
	Host     string `yaml:"host" json:"host" envconfig:"BOOKS_POSTGRES_HOST"`
	Port     string `yaml:"port" json:"port" envconfig:"BOOKS_POSTGRES_PORT"`
	User     string `yaml:"user" json:"user" envconfig:"BOOKS_POSTGRES_USER"`
	Password string `yaml:"password" json:"-" envconfig:"BOOKS_POSTGRES_PASSWORD"`
	Database string `yaml:"database" json:"database" envconfig:"BOOKS_POSTGRES_DATABASE"`
	SSLMode  string `yaml:"sslmode" json:"sslmode" envconfig:"BOOKS_POSTGRES_SSLMODE"`
}

// DSN builds the lib/pq connection string.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.Database, pc.SSLMode)
}

type RedisConfig struct {
	Host          string        `yaml:"host" json:"host" envconfig:"BOOKS_REDIS_HOST"`
	Port          string        `yaml:"port" json:"port" envconfig:"BOOKS_REDIS_PORT"`
	DialTimeout   time.Duration `yaml:"dial_timeout" json:"dial_timeout" envconfig:"BOOKS_REDIS_DIAL_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" json:"read_timeout" envconfig:"BOOKS_REDIS_READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" json:"write_timeout" envconfig:"BOOKS_REDIS_WRITE_TIMEOUT"`
	PoolSize      int           `yaml:"pool_size" json:"pool_size" envconfig:"BOOKS_REDIS_POOL_SIZE"`
	PoolTimeout   time.Duration `yaml:"pool_timeout" json:"pool_timeout" envconfig:"BOOKS_REDIS_POOL_TIMEOUT"`
	Username      string        `yaml:"username" json:"username" envconfig:"BOOKS_REDIS_USERNAME"`
	Password      string        `yaml:"password" json:"-" envconfig:"BOOKS_REDIS_PASSWORD"`
	DatabaseIndex int           `yaml:"db_index" json:"db_index" envconfig:"BOOKS_REDIS_DATABASE_INDEX"`
}

// JournalConfig drives the change history of books. Events travel
// through redis queues and land in a dedicated bolt file.
type JournalConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled" envconfig:"BOOKS_JOURNAL_ENABLED"`
	FilePath    string        `yaml:"filepath" json:"filepath" envconfig:"BOOKS_JOURNAL_FILE_PATH"`
	BucketName  string        `yaml:"bucket_name" json:"bucket_name" envconfig:"BOOKS_JOURNAL_BUCKET_NAME"`
	PollTimeout time.Duration `yaml:"poll_timeout" json:"poll_timeout" envconfig:"BOOKS_JOURNAL_POLL_TIMEOUT"`
}

type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" json:"enabled" envconfig:"BOOKS_RATELIMIT_ENABLED"`
	Rate    float64 `yaml:"rate" json:"rate" envconfig:"BOOKS_RATELIMIT_RATE"`
	Burst   int     `yaml:"burst" json:"burst" envconfig:"BOOKS_RATELIMIT_BURST"`
	// TrustProxy keys clients on X-REAL-IP/X-FORWARDED-FOR. Only set it
	// when every request comes through a proxy which overwrites them.
	TrustProxy bool `yaml:"trust_proxy" json:"trust_proxy" envconfig:"BOOKS_RATELIMIT_TRUST_PROXY"`
}

// LoadConfigFile provides an instance of config structure for the all application.
func LoadConfigFile(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := &Config{}
	yd := yaml.NewDecoder(file)
	err = yd.Decode(cfg)

	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigEnvs reads the environments variables and provides an instance of the App config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig setup defaults values for non provided parameters
// and configures build tags values to be used if provided.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	if len(config.Server.Host) == 0 || len(config.Server.Port) == 0 {
		return errors.New("make sure to set valid server address and port in configuration file")
	}

	if config.Server.ShutdownTimeout <= 0 {
		config.Server.ShutdownTimeout = 10 * time.Second
	}

	// bolt files are used by the journal as well.
	if config.BoltDB.Timeout <= 0 {
		config.BoltDB.Timeout = 5 * time.Second
	}

	if config.LogFolder == "" {
		config.LogFolder = "./logs"
	}
	if config.LogMaxSize <= 0 {
		config.LogMaxSize = 10
	}

	if config.Storage.Driver == "" {
		config.Storage.Driver = DriverBolt
	}
	switch config.Storage.Driver {
	case DriverBolt:
		if config.BoltDB.FilePath == "" {
			config.BoltDB.FilePath = "./data/books.db"
		}
		if config.BoltDB.BucketName == "" {
			config.BoltDB.BucketName = "books"
		}
	case DriverSQLite:
		if config.SQLite.FilePath == "" {
			config.SQLite.FilePath = "./data/books.sqlite"
		}
		if config.SQLite.BusyTimeout == 0 {
			config.SQLite.BusyTimeout = 5 * time.Second
		}
	case DriverPostgres:
		if len(config.Postgres.Host) == 0 || len(config.Postgres.Port) == 0 {
			return errors.New("make sure to set valid postgres address and port in configuration file")
		}
		if config.Postgres.SSLMode == "" {
			config.Postgres.SSLMode = "disable"
		}
	case DriverRedis:
	default:
		return fmt.Errorf("unsupported storage driver %q", config.Storage.Driver)
	}

	if config.Storage.Driver == DriverRedis || config.Journal.Enabled {
		if len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0 {
			return errors.New("make sure to set valid redis address and port in configuration file")
		}
	}

	if config.Journal.Enabled {
		if config.Journal.FilePath == "" {
			config.Journal.FilePath = "./data/journal.db"
		}
		if config.Journal.BucketName == "" {
			config.Journal.BucketName = "journal"
		}
		if config.Journal.PollTimeout <= 0 {
			config.Journal.PollTimeout = time.Second
		}
	}

	if config.RateLimit.Enabled {
		if config.RateLimit.Rate <= 0 {
			config.RateLimit.Rate = 2
		}
		if config.RateLimit.Burst <= 0 {
			config.RateLimit.Burst = 4
		}
	}

	return nil
}

// LoadAndInitConfigs loads in order the configs from various predefined sources
// then build the App configuration data. The env file is optional.
func LoadAndInitConfigs(configFile, envFile, gitCommit, gitTag, buildTime string) (*Config, error) {
	// Setup the yaml configuration from file.
	config, err := LoadConfigFile(configFile)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from file: %s", err)
	}

	// Set the environment configuration.
	err = godotenv.Load(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config, fmt.Errorf("failed to set environment configurations: %s", err)
	}

	// Use environment variables with prefix `BOOKS`.
	err = LoadConfigEnvs(EnvPrefix, config)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %s", err)
	}

	err = InitConfig(config, gitCommit, gitTag, buildTime)
	if err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %s", err)
	}
	return config, nil
}
