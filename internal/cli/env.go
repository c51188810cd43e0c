package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cuitingzhao/companion/internal/backend"
	"github.com/cuitingzhao/companion/internal/config"
	"github.com/cuitingzhao/companion/internal/logging"
	"github.com/cuitingzhao/companion/internal/onboarding"
)

// env is the loaded config and logger a command runs with.
type env struct {
	cfg *config.Config
	log *zap.Logger
}

// load resolves config and builds the logger. fallbackLog is used as the log
// file when the config names none.
func (gf *globalFlags) load(fallbackLog string) (*env, error) {
	cfg, err := config.LoadPath(gf.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if gf.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = fallbackLog
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log}, nil
}

func (e *env) close() {
	_ = e.log.Sync()
}

func (e *env) client(source string) (*backend.Client, error) {
	return backend.New(e.cfg.Backend.BaseURL,
		backend.WithToken(e.cfg.Backend.Token),
		backend.WithSource(source),
		backend.WithTimeout(e.cfg.Backend.RequestTimeout()),
		backend.WithLogger(e.log),
	)
}

func (e *env) controllerOptions() onboarding.Options {
	o := e.cfg.Onboarding
	return onboarding.Options{
		UserID:          o.UserID,
		DismissDelay:    o.DismissDelay(),
		ContinueToken:   o.ContinueToken,
		Greeting:        o.Greeting,
		SendFailureText: o.SendFailureText,
		PlanFailureText: o.PlanFailureText,
		Logger:          e.log,
	}
}
