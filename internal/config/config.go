package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "GHANAOIL"

type Config struct {
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	EIA       EIAConfig       `yaml:"eia"`
	WorldBank WorldBankConfig `yaml:"worldbank"`
	Bulletin  BulletinConfig  `yaml:"bulletin"`
	Output    OutputConfig    `yaml:"output"`
	Store     StoreConfig     `yaml:"store"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stderr"`
}

// HTTPConfig is shared by the network sources. MaxRetries defaults to zero:
// a failed fetch aborts the run unless retries are asked for.
type HTTPConfig struct {
	Timeout         time.Duration `yaml:"timeout" default:"20s" validate:"gt=0"`
	UserAgent       string        `yaml:"user_agent" default:"ghanaoil/0.1"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec" default:"5" validate:"gte=0"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" default:"5" validate:"gte=0"`
	MaxRetries      int           `yaml:"max_retries" default:"0" validate:"gte=0,lte=10"`
	RetryDelay      time.Duration `yaml:"retry_delay" default:"2s" validate:"gte=0"`
}

type EIAConfig struct {
	BaseURL  string `yaml:"base_url" default:"https://api.eia.gov/v2/" validate:"required,url"`
	APIKey   string `yaml:"api_key" validate:"required"`
	SeriesID string `yaml:"series_id" default:"PET.MCRIPGT2.A" validate:"required"`
	Field    string `yaml:"field" default:"eia_production" validate:"required"`
	Limit    int    `yaml:"limit" default:"100"`
	Unit     string `yaml:"unit" default:"thousands" validate:"oneof=units thousands"`
	Resample string `yaml:"resample" default:"mean" validate:"oneof=mean ffill"`
}

type WorldBankConfig struct {
	BaseURL   string `yaml:"base_url" default:"https://api.worldbank.org/v2/" validate:"required,url"`
	Indicator string `yaml:"indicator" default:"EG.EGY.PRIM.PP.KD" validate:"required"`
	Country   string `yaml:"country" default:"GHA" validate:"required,len=3"`
	Field     string `yaml:"field" default:"wb_energy_intensity" validate:"required"`
	PerPage   int    `yaml:"per_page" default:"1000" validate:"gt=0"`
	Unit      string `yaml:"unit" default:"units" validate:"oneof=units thousands"`
	Resample  string `yaml:"resample" default:"ffill" validate:"oneof=mean ffill"`
}

// BulletinConfig selects the historical table: "static" serves the built-in
// transcription, "csv" reads Path.
type BulletinConfig struct {
	Kind        string `yaml:"kind" default:"static" validate:"oneof=static csv"`
	Path        string `yaml:"path" validate:"required_if=Kind csv"`
	ValueColumn string `yaml:"value_column"`
	Field       string `yaml:"field" default:"opec_production" validate:"required"`
	Unit        string `yaml:"unit" default:"thousands" validate:"oneof=units thousands"`
	Resample    string `yaml:"resample" default:"ffill" validate:"oneof=mean ffill"`
}

type OutputConfig struct {
	Path      string `yaml:"path" default:"data/raw_ghana_oil.csv" validate:"required"`
	XLSXPath  string `yaml:"xlsx_path"`
	IndexName string `yaml:"index_name" default:"period" validate:"required"`
}

// StoreConfig enables the SQLite run archive when Path is set.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// env holds the variables that override the file. Each one may also be given
// without the GHANAOIL_ prefix.
type env struct {
	EIAAPIKey  string `envconfig:"EIA_API_KEY"`
	OutputPath string `envconfig:"OUTPUT_PATH"`
	XLSXPath   string `envconfig:"XLSX_PATH"`
	StorePath  string `envconfig:"STORE_PATH"`
	LogLevel   string `envconfig:"LOG_LEVEL"`
}

// Load applies defaults, then the YAML file at path (skipped when path is
// empty), then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, errors.Wrap(err, "apply defaults")
	}

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}

	var overrides env
	if err := envconfig.Process(envPrefix, &overrides); err != nil {
		return nil, errors.Wrap(err, "read environment")
	}
	overrides.apply(&c)

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return &c, nil
}

func (e env) apply(c *Config) {
	if e.EIAAPIKey != "" {
		c.EIA.APIKey = e.EIAAPIKey
	}
	if e.OutputPath != "" {
		c.Output.Path = e.OutputPath
	}
	if e.XLSXPath != "" {
		c.Output.XLSXPath = e.XLSXPath
	}
	if e.StorePath != "" {
		c.Store.Path = e.StorePath
	}
	if e.LogLevel != "" {
		c.Log.Level = e.LogLevel
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	fields := map[string]string{}
	for _, pair := range [][2]string{
		{"eia", c.EIA.Field},
		{"worldbank", c.WorldBank.Field},
		{"bulletin", c.Bulletin.Field},
	} {
		source, field := pair[0], pair[1]
		if other, dup := fields[field]; dup {
			return errors.Newf("field %q is used by both %s and %s", field, other, source)
		}
		fields[field] = source
	}
	if field := c.Output.IndexName; fields[field] != "" {
		return errors.Newf("output.index_name %q collides with a source field", field)
	}
	return nil
}

// Scale maps a unit name to the factor that converts it to base units.
func Scale(unit string) float64 {
	if unit == "thousands" {
		return 1000
	}
	return 1
}
