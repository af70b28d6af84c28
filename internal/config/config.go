package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "PLANNER"
	FileName  = "config.yaml"
)

type Autosave struct {
	TextDebounce       time.Duration `mapstructure:"text_debounce"`
	StructuralDebounce time.Duration `mapstructure:"structural_debounce"`
}

type Config struct {
	DBPath         string        `mapstructure:"db_path"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFile        string        `mapstructure:"log_file"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Autosave       Autosave      `mapstructure:"autosave"`
	TrustedSenders []string      `mapstructure:"trusted_senders"`
	Listen         string        `mapstructure:"listen"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Home is $PLANNER_HOME, else ~/.planner.
func Home() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvPrefix + "_HOME")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".planner"), nil
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("db_path", filepath.Join(home, "planner.sqlite"))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("request_timeout", 5*time.Second)
	v.SetDefault("autosave.text_debounce", 450*time.Millisecond)
	v.SetDefault("autosave.structural_debounce", 120*time.Millisecond)
	v.SetDefault("trusted_senders", []string{"ui", "mcp"})
	v.SetDefault("listen", "127.0.0.1:7788")
	v.SetDefault("allowed_origins", []string{"http://127.0.0.1:7788", "http://localhost:7788"})
}

// FlagKeys maps persistent flag names to the config keys they override.
var FlagKeys = map[string]string{
	"db":        "db_path",
	"log-level": "log_level",
	"log-file":  "log_file",
	"timeout":   "request_timeout",
	"listen":    "listen",
}

// Load reads configuration with precedence flags > PLANNER_* env > file > defaults.
// An explicit path must exist; the default file is optional.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	home, err := Home()
	if err != nil {
		return nil, err
	}
	v := viper.New()
	setDefaults(v, home)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = filepath.Join(home, FileName)
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	file := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		file = path
	}

	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = file
	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.LogFile = expandHome(cfg.LogFile)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("config: db_path is empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.Autosave.TextDebounce <= 0 || c.Autosave.StructuralDebounce <= 0 {
		return errors.New("config: autosave debounce intervals must be positive")
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
