// Package config loads service settings: code defaults, then an optional YAML
// file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tourroute/internal/model"
	"tourroute/internal/opt"
)

// DefaultPath is read when CONFIG_PATH is unset.
const DefaultPath = "config/optimizer.yaml"

type Config struct {
	Port         string        `yaml:"port"`
	DatabaseURL  string        `yaml:"databaseUrl"`
	DBDriver     string        `yaml:"dbDriver"` // pgx or sqlite; memory store when DatabaseURL is empty
	RedisURL     string        `yaml:"redisUrl"`
	CacheBackend string        `yaml:"cacheBackend"` // memory or redis
	CacheEntries int           `yaml:"cacheEntries"`
	CacheTTL     time.Duration `yaml:"cacheTTL"`
	RateRPS      float64       `yaml:"rateRps"` // 0 disables limiting
	RateBurst    int           `yaml:"rateBurst"`
	LogLevel     string        `yaml:"logLevel"` // debug, info, warn, error

	Optimizer Optimizer     `yaml:"optimizer"`
	Context   StaticContext `yaml:"context"`
}

type Optimizer struct {
	Seed           int64         `yaml:"seed"`
	Timeout        time.Duration `yaml:"timeout"`
	ContextTimeout time.Duration `yaml:"contextTimeout"`
	DPMaxWaypoints int           `yaml:"dpMaxWaypoints"`
	Genetic        Genetic       `yaml:"genetic"`
	Annealing      Annealing     `yaml:"annealing"`
	Weights        opt.Weights   `yaml:"weights"`
}

type Genetic struct {
	Population   int     `yaml:"population" json:"population"`
	Generations  int     `yaml:"generations" json:"generations"`
	MutationRate float64 `yaml:"mutationRate" json:"mutationRate"`
	GoodEnough   float64 `yaml:"goodEnough" json:"goodEnough"`
	Elite        int     `yaml:"elite" json:"elite"`
}

type Annealing struct {
	Iterations  int     `yaml:"iterations" json:"iterations"`
	InitialTemp float64 `yaml:"initialTemp" json:"initialTemp"`
	Cooling     float64 `yaml:"cooling" json:"cooling"`
}

// StaticContext seeds the in-memory context provider used without Redis.
type StaticContext struct {
	Crowd   map[string]model.CrowdLevel `yaml:"crowd"`
	Weather *Weather                    `yaml:"weather"`
}

type Weather struct {
	Condition    string  `yaml:"condition"`
	TemperatureC float64 `yaml:"temperatureC"`
}

// Reading converts to the engine's weather type; nil stays nil.
func (w *Weather) Reading() *model.WeatherReading {
	if w == nil {
		return nil
	}
	return &model.WeatherReading{Condition: w.Condition, TemperatureC: w.TemperatureC}
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port:         "8080",
		DBDriver:     "pgx",
		CacheBackend: "redis",
		CacheEntries: 1024,
		CacheTTL:     30 * time.Minute,
		LogLevel:     "info",
		Optimizer: Optimizer{
			Timeout:        4 * time.Second,
			ContextTimeout: 500 * time.Millisecond,
			DPMaxWaypoints: opt.DefaultDPLimit,
			Genetic:        Genetic{Population: 50, Generations: 100, MutationRate: 0.1, GoodEnough: 0.95, Elite: 2},
			Annealing:      Annealing{Iterations: 1000, InitialTemp: 100, Cooling: 0.95},
			Weights:        opt.DefaultWeights,
		},
	}
}

// Load reads path (a missing file is fine) and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// PathFromEnv returns CONFIG_PATH or DefaultPath.
func PathFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("CONFIG_PATH")); v != "" {
		return v
	}
	return DefaultPath
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("DB_DRIVER", &c.DBDriver)
	str("REDIS_URL", &c.RedisURL)
	str("CACHE_BACKEND", &c.CacheBackend)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("RATE_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: RATE_RPS: %w", err)
		}
		c.RateRPS = f
	}
	if v, ok := lookup("RATE_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: RATE_BURST: %w", err)
		}
		c.RateBurst = n
	}
	if v, ok := lookup("OPT_SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: OPT_SEED: %w", err)
		}
		c.Optimizer.Seed = n
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.DatabaseURL != "" && c.DBDriver != "pgx" && c.DBDriver != "sqlite" {
		return fmt.Errorf("config: dbDriver must be pgx or sqlite, got %q", c.DBDriver)
	}
	if c.CacheBackend != "memory" && c.CacheBackend != "redis" {
		return fmt.Errorf("config: cacheBackend must be memory or redis, got %q", c.CacheBackend)
	}
	if c.RateRPS < 0 || c.RateBurst < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if c.Optimizer.DPMaxWaypoints < 0 || c.Optimizer.DPMaxWaypoints > opt.DefaultDPLimit {
		return fmt.Errorf("config: dpMaxWaypoints must be in [0,%d], got %d", opt.DefaultDPLimit, c.Optimizer.DPMaxWaypoints)
	}
	if c.Optimizer.Annealing.Cooling < 0 || c.Optimizer.Annealing.Cooling >= 1 {
		return errors.New("config: annealing cooling must be in [0,1)")
	}
	if c.Optimizer.Genetic.MutationRate < 0 || c.Optimizer.Genetic.MutationRate > 1 {
		return errors.New("config: genetic mutationRate must be in [0,1]")
	}
	return nil
}

// Strategies builds the algorithm pool from the optimizer section.
func (o Optimizer) Strategies() []opt.Strategy {
	return []opt.Strategy{
		opt.Greedy{},
		&opt.Genetic{
			Population:   o.Genetic.Population,
			Generations:  o.Genetic.Generations,
			MutationRate: o.Genetic.MutationRate,
			GoodEnough:   o.Genetic.GoodEnough,
			Elite:        o.Genetic.Elite,
			Seed:         o.Seed,
		},
		&opt.DynamicProgramming{MaxWaypoints: o.DPMaxWaypoints},
		&opt.Annealing{
			Iterations:  o.Annealing.Iterations,
			InitialTemp: o.Annealing.InitialTemp,
			Cooling:     o.Annealing.Cooling,
			Seed:        o.Seed,
		},
	}
}
