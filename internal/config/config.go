package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local" env-description:"Environment" env-choices:"local,dev,prod"`
	ApiPort  int    `yaml:"api_port" env:"API_PORT" env-default:"8080"`
	ApiHost  string `yaml:"api_host" env:"API_HOST" env-default:"localhost"`
	Currency string `yaml:"currency" env:"CURRENCY" env-default:"INR"`
	Storage  `yaml:"storage"`
	SQLite   `yaml:"sqlite"`
	Postgres `yaml:"postgres"`
	JWT      `yaml:"jwt"`
	Kafka    `yaml:"kafka"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite" env-choices:"sqlite,postgres,memory"`
}

type SQLite struct {
	Path    string `yaml:"path" env:"SQLITE_PATH" env-default:"family_finances_management.db"`
	LogMode bool   `yaml:"log_mode" env:"SQLITE_LOG_MODE"`
}

type Postgres struct {
	Host string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"POSTGRES_PORT" env-default:"5433"`
	User string `yaml:"user" env:"POSTGRES_USER" env-default:"test"`
	Pass string `yaml:"pass" env:"POSTGRES_PASS" env-default:"12345"`
	Db   string `yaml:"db" env:"POSTGRES_DB" env-default:"test_db"`
}

type JWT struct {
	Secret string        `yaml:"secret" env:"JWT_SECRET" env-default:"secret42212"`
	TTL    time.Duration `yaml:"ttl" env:"JWT_TTL" env-default:"24h"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"family_finance.ledger"`
}

// URL builds the lib/pq connection string.
func (p Postgres) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", p.User, p.Pass, p.Host, p.Port, p.Db)
}

// MustLoad reads the file named by the -config flag or CONFIG_PATH.
func MustLoad() *Config {
	path := fetchConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file does not exist: " + path)
	}

	cfg, err := Load(path)
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

// Load reads the YAML file at path, or only the environment when path is empty.
// A .env file in the working directory is applied first, when present.
func Load(path string) (*Config, error) {
	if err := loadDotenv(".env"); err != nil {
		return nil, err
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotenv applies the given .env files; missing files are skipped.
func loadDotenv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Env {
	case "local", "dev", "prod":
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}

	switch c.Storage.Driver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	return nil
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
