package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv         string        `yaml:"app_env"`
	HTTPAddr       string        `yaml:"http_addr"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	MySQLDSN       string        `yaml:"mysql_dsn"`
	RedisAddr      string        `yaml:"redis_addr"`
	RedisDB        int           `yaml:"redis_db"`
	RedisPass      string        `yaml:"redis_password"`
	MappingBackend string        `yaml:"mapping_backend"` // redis|mysql
	ChannexBase    string        `yaml:"channex_base_url"`
	ChannexKey     string        `yaml:"channex_api_key"`
	ChannexRPS     int           `yaml:"channex_rps"`
	Workers        int           `yaml:"sync_workers"`
	HorizonDays    int           `yaml:"availability_horizon_days"`
	CacheTTL       time.Duration `yaml:"-"`
	ResolveTTL     time.Duration `yaml:"-"`
}

// fileConfig is the YAML shape; durations are given in seconds like the env vars.
type fileConfig struct {
	Config            `yaml:",inline"`
	CacheTTLSeconds   int `yaml:"cache_ttl_seconds"`
	ResolveTTLSeconds int `yaml:"resolve_stale_ttl_seconds"`
}

func defaults() Config {
	return Config{
		AppEnv:         "prod",
		HTTPAddr:       ":8080",
		MetricsAddr:    ":9100",
		MySQLDSN:       "root:root@tcp(localhost:3306)/channex?parseTime=true&charset=utf8mb4,utf8&loc=UTC",
		RedisAddr:      "localhost:6379",
		MappingBackend: "redis",
		ChannexBase:    "https://staging.channex.io/api/v1",
		ChannexRPS:     5,
		Workers:        4,
		HorizonDays:    365,
		CacheTTL:       5 * time.Minute,
		ResolveTTL:     2 * time.Minute,
	}
}

// Load builds the config from defaults, an optional YAML file (CONFIG_FILE),
// and environment variables, in that order. A .env file is read first if present.
func Load() Config {
	_ = godotenv.Load()

	c := defaults()
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		if err := loadFile(p, &c); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("config file ignored")
		}
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c.AppEnv = env("APP_ENV", c.AppEnv)
	c.HTTPAddr = env("HTTP_ADDR", c.HTTPAddr)
	c.MetricsAddr = env("METRICS_ADDR", c.MetricsAddr)
	c.MySQLDSN = env("MYSQL_DSN", c.MySQLDSN)
	c.RedisAddr = env("REDIS_ADDR", c.RedisAddr)
	c.RedisPass = env("REDIS_PASSWORD", c.RedisPass)
	c.RedisDB = atoi("REDIS_DB", c.RedisDB)
	c.MappingBackend = env("MAPPING_BACKEND", c.MappingBackend)
	c.ChannexBase = env("CHANNEX_BASE_URL", c.ChannexBase)
	c.ChannexKey = env("CHANNEX_API_KEY", c.ChannexKey)
	c.ChannexRPS = atoi("CHANNEX_RPS", c.ChannexRPS)
	c.Workers = atoi("SYNC_WORKERS", c.Workers)
	c.HorizonDays = atoi("AVAILABILITY_HORIZON_DAYS", c.HorizonDays)
	c.CacheTTL = time.Duration(atoi("CACHE_TTL_SECONDS", int(c.CacheTTL.Seconds()))) * time.Second
	c.ResolveTTL = time.Duration(atoi("RESOLVE_STALE_TTL_SECONDS", int(c.ResolveTTL.Seconds()))) * time.Second

	if c.ChannexKey == "" {
		log.Warn().Msg("CHANNEX_API_KEY is empty")
	}
	if c.MappingBackend != "redis" && c.MappingBackend != "mysql" {
		log.Warn().Str("backend", c.MappingBackend).Msg("unknown MAPPING_BACKEND, using redis")
		c.MappingBackend = "redis"
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}

func loadFile(path string, c *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fc := fileConfig{Config: *c}
	if err := yaml.NewDecoder(f).Decode(&fc); err != nil {
		return err
	}
	if fc.CacheTTLSeconds > 0 {
		fc.Config.CacheTTL = time.Duration(fc.CacheTTLSeconds) * time.Second
	}
	if fc.ResolveTTLSeconds > 0 {
		fc.Config.ResolveTTL = time.Duration(fc.ResolveTTLSeconds) * time.Second
	}
	*c = fc.Config
	return nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
