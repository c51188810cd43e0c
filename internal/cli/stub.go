package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cuitingzhao/companion/internal/stub"
)

func newStubCmd(gf *globalFlags) *cobra.Command {
	var (
		addr       string
		scriptPath string
	)

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve a scripted onboarding service for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := gf.load("")
			if err != nil {
				return err
			}
			defer e.close()

			script := stub.DefaultScript()
			if scriptPath != "" {
				if script, err = stub.LoadScript(scriptPath); err != nil {
					return err
				}
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           stub.NewServer(script, e.log).Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			e.log.Info("stub listening", zap.String("addr", addr), zap.Int("turns", len(script.Turns)))
			fmt.Fprintf(os.Stderr, "Stub onboarding service on http://%s%s (ctrl+c to stop)\n", addr, stub.APIPrefix)

			select {
			case err := <-errCh:
				return fmt.Errorf("stub server: %w", err)
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("stopping stub server: %w", err)
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "Listen address")
	cmd.Flags().StringVar(&scriptPath, "script", "", "YAML script of turns (default: built-in piano walkthrough)")

	return cmd
}
