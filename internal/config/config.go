// Package config loads run settings from defaults, an optional yaml file,
// MOCKPHONE_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"github.com/atopx/mockphone"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"runtime"
	"strings"
)

const (
	DefaultOutput = "output.db"
	DefaultTotal  = 100_000_000
	// FileKey names the setting holding the path of the yaml config file.
	FileKey = "config"
)

type Config struct {
	// Output is the database file to load into.
	Output string `mapstructure:"output" validate:"required"`
	Total  int64  `mapstructure:"total" validate:"gte=0"`
	// Workers defaults to the number of CPUs.
	Workers int    `mapstructure:"workers" validate:"gte=1"`
	Engine  string `mapstructure:"engine" validate:"oneof=sqlite raw"`
	Seed    uint64 `mapstructure:"seed"`
	// JSON prints the run report as JSON instead of the summary line.
	JSON   bool         `mapstructure:"json"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
	Log    LogConfig    `mapstructure:"log"`
}

type SQLiteConfig struct {
	// Pragmas are applied in order when the database is opened.
	// Unset leaves the engine's bulk-load defaults in place.
	Pragmas []string `mapstructure:"pragmas"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// SetDefaults registers the default of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("total", DefaultTotal)
	v.SetDefault("workers", 0)
	v.SetDefault("engine", string(mockphone.EngineSQLite))
	v.SetDefault("seed", 0)
	v.SetDefault("json", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix("mockphone")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the config file named by FileKey, if any,
// and returns the validated configuration.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if file := v.GetString(FileKey); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return c, errors.Wrapf(err, "read config %s", file)
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, errors.Wrap(err, "decode config")
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if err := c.Validate(); err != nil {
		return c, errors.Wrap(err, "invalid config")
	}
	return c, nil
}

func (c Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// Options converts the configuration into pipeline options.
func (c Config) Options() mockphone.Options {
	return mockphone.Options{
		Path:    c.Output,
		Total:   c.Total,
		Workers: c.Workers,
		Engine:  mockphone.Engine(c.Engine),
		Seed:    c.Seed,
		Pragmas: c.SQLite.Pragmas,
	}
}
