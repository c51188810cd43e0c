package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cuitingzhao/companion/internal/config"
	"github.com/cuitingzhao/companion/internal/tui"
)

func newDoctorCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and backend reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			rich := tui.IsTTY()
			failed := false

			report := func(icon, plain, msg string) {
				if rich {
					fmt.Fprintf(os.Stderr, "  %s %s\n", icon, msg)
				} else {
					fmt.Fprintf(os.Stderr, "%s %s\n", plain, msg)
				}
			}
			pass := func(msg string) { report(tui.IconSuccess, "✓", msg) }
			fail := func(msg string) { report(tui.IconError, "✗", msg) }
			warn := func(msg string) { report(tui.IconWarning, "⚠", msg) }

			// 1. Config file existence
			cfgPath := configFilePath(gf)
			if _, err := os.Stat(cfgPath); err != nil {
				warn(fmt.Sprintf("Config file not found: %s (using defaults)", cfgPath))
			} else {
				pass(fmt.Sprintf("Config file: %s", cfgPath))
			}

			// 2. Config parseable and valid
			cfg, err := config.LoadPath(gf.configPath)
			if err != nil {
				fail(fmt.Sprintf("Config invalid: %s", err))
				return fmt.Errorf("config validation failed")
			}
			if err := cfg.Validate(); err != nil {
				fail(fmt.Sprintf("Config invalid: %s", err))
				return fmt.Errorf("config validation failed")
			}
			pass("Config loaded successfully")

			// 3. Onboarding identity
			if cfg.Onboarding.UserID == 0 {
				warn("onboarding.userId not set (chat needs --user-id)")
			} else {
				pass(fmt.Sprintf("User: %d", cfg.Onboarding.UserID))
			}
			if cfg.Backend.Token == "" {
				warn("backend.token not set (requests are unauthenticated)")
			}

			// 4. Backend reachability
			e := &env{cfg: cfg, log: zap.NewNop()}
			client, err := e.client("doctor")
			if err != nil {
				fail(fmt.Sprintf("Backend URL: %s", err))
				return fmt.Errorf("doctor found problems")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			start := time.Now()
			err = client.Ping(ctx)
			cancel()
			if err != nil {
				fail(fmt.Sprintf("Backend %s unreachable: %s", cfg.Backend.BaseURL, err))
				failed = true
			} else {
				pass(fmt.Sprintf("Backend %s (%s)", cfg.Backend.BaseURL, time.Since(start).Round(time.Millisecond)))
			}

			if failed {
				return fmt.Errorf("doctor found problems")
			}
			return nil
		},
	}
}
