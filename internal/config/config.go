package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cuitingzhao/companion/internal/onboarding"
)

const envPrefix = "COMPANION"

type Config struct {
	Version    int              `json:"version" mapstructure:"version"`
	Backend    BackendConfig    `json:"backend" mapstructure:"backend"`
	Onboarding OnboardingConfig `json:"onboarding" mapstructure:"onboarding"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
	Replay     ReplayConfig     `json:"replay" mapstructure:"replay"`
}

type BackendConfig struct {
	BaseURL string `json:"baseUrl" mapstructure:"baseUrl"`
	Token   string `json:"token,omitempty" mapstructure:"token"`
	Timeout int    `json:"timeout" mapstructure:"timeout"` // seconds per request
}

type OnboardingConfig struct {
	UserID          int64  `json:"userId" mapstructure:"userId"`
	DismissDelayMs  int    `json:"dismissDelayMs" mapstructure:"dismissDelayMs"`
	ContinueToken   string `json:"continueToken" mapstructure:"continueToken"`
	Greeting        string `json:"greeting" mapstructure:"greeting"`
	SendFailureText string `json:"sendFailureText" mapstructure:"sendFailureText"`
	PlanFailureText string `json:"planFailureText" mapstructure:"planFailureText"`
}

type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level"`
	File  string `json:"file,omitempty" mapstructure:"file"` // empty: stderr
}

type ReplayConfig struct {
	MaxParallel int    `json:"maxParallel" mapstructure:"maxParallel"`
	Timeout     int    `json:"timeout" mapstructure:"timeout"` // seconds per session
	OutputDir   string `json:"outputDir" mapstructure:"outputDir"`
}

func NewDefaults() *Config {
	return &Config{
		Version: 1,
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:8787/api",
			Timeout: 30,
		},
		Onboarding: OnboardingConfig{
			DismissDelayMs:  int(onboarding.DefaultDismissDelay / time.Millisecond),
			ContinueToken:   onboarding.DefaultContinueToken,
			Greeting:        onboarding.DefaultGreeting,
			SendFailureText: onboarding.DefaultSendFailureText,
			PlanFailureText: onboarding.DefaultPlanFailureText,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Replay: ReplayConfig{
			MaxParallel: 4,
			Timeout:     120,
			OutputDir:   "./companion/replays",
		},
	}
}

func (b BackendConfig) RequestTimeout() time.Duration {
	return time.Duration(b.Timeout) * time.Second
}

func (o OnboardingConfig) DismissDelay() time.Duration {
	return time.Duration(o.DismissDelayMs) * time.Millisecond
}

func (r ReplayConfig) SessionTimeout() time.Duration {
	return time.Duration(r.Timeout) * time.Second
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.baseUrl %q must be an absolute http(s) URL", c.Backend.BaseURL))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("backend.timeout must be positive, got %d", c.Backend.Timeout))
	}
	if c.Onboarding.UserID < 0 {
		errs = append(errs, fmt.Errorf("onboarding.userId must not be negative"))
	}
	if c.Onboarding.DismissDelayMs < 0 {
		errs = append(errs, fmt.Errorf("onboarding.dismissDelayMs must not be negative"))
	}
	if strings.TrimSpace(c.Onboarding.ContinueToken) == "" {
		errs = append(errs, fmt.Errorf("onboarding.continueToken must not be empty"))
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level))
	}
	if c.Replay.MaxParallel < 1 {
		errs = append(errs, fmt.Errorf("replay.maxParallel must be at least 1"))
	}
	if c.Replay.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("replay.timeout must be positive"))
	}
	return errors.Join(errs...)
}

func globalConfigDir() string {
	home := os.Getenv("HOME")
	macOSPath := filepath.Join(home, "Library", "Application Support", "companion")
	if _, err := os.Stat(macOSPath); err == nil {
		return macOSPath
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "companion")
	}
	return filepath.Join(home, ".config", "companion")
}

func GlobalConfigDir() string {
	return globalConfigDir()
}

func GlobalConfigPath() string {
	return filepath.Join(globalConfigDir(), "config.json")
}

// newViper returns a viper instance seeded with the defaults and bound to
// COMPANION_* environment variables, e.g. COMPANION_BACKEND_BASEURL.
func newViper() *viper.Viper {
	v := viper.New()
	d := NewDefaults()
	v.SetDefault("version", d.Version)
	v.SetDefault("backend.baseUrl", d.Backend.BaseURL)
	v.SetDefault("backend.token", d.Backend.Token)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("onboarding.userId", d.Onboarding.UserID)
	v.SetDefault("onboarding.dismissDelayMs", d.Onboarding.DismissDelayMs)
	v.SetDefault("onboarding.continueToken", d.Onboarding.ContinueToken)
	v.SetDefault("onboarding.greeting", d.Onboarding.Greeting)
	v.SetDefault("onboarding.sendFailureText", d.Onboarding.SendFailureText)
	v.SetDefault("onboarding.planFailureText", d.Onboarding.PlanFailureText)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("replay.maxParallel", d.Replay.MaxParallel)
	v.SetDefault("replay.timeout", d.Replay.Timeout)
	v.SetDefault("replay.outputDir", d.Replay.OutputDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

func LoadFromFile(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	// Security: refuse to load config writable by group/others
	if info.Mode().Perm()&0o022 != 0 {
		return nil, fmt.Errorf("config %s has unsafe permissions %o (writable by group/others)", path, info.Mode().Perm())
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return decode(v)
}

// Load reads the global config file, falling back to defaults when it does
// not exist. Environment overrides apply either way.
func Load() (*Config, error) {
	return LoadPath("")
}

// LoadPath is Load with an explicit file; an empty path means the global one.
func LoadPath(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = GlobalConfigPath()
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return decode(newViper())
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return atomicWrite(path, data, 0o600)
}

func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".companion-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
