package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/cuitingzhao/companion/internal/logging"
	"github.com/cuitingzhao/companion/internal/onboarding"
	"github.com/cuitingzhao/companion/internal/output"
	"github.com/cuitingzhao/companion/internal/tui"
)

func newChatCmd(gf *globalFlags) *cobra.Command {
	var (
		userID    int64
		source    string
		exportDir string
		plain     bool
	)

	cmd := &cobra.Command{
		Use:   "chat [candidate description...]",
		Short: "Start the goal-onboarding conversation",
		Long: "Opens the onboarding wizard. Any arguments are sent as your first message. " +
			"Runs full-screen on a terminal and line by line otherwise.",
		RunE: func(cmd *cobra.Command, args []string) error {
			interactive := !plain && tui.IsTTY()
			fallbackLog := ""
			if interactive {
				fallbackLog = logging.DefaultChatLogFile()
			}
			e, err := gf.load(fallbackLog)
			if err != nil {
				return err
			}
			defer e.close()

			client, err := e.client(source)
			if err != nil {
				return err
			}

			opts := e.controllerOptions()
			if userID != 0 {
				opts.UserID = userID
			}
			if opts.UserID <= 0 {
				return fmt.Errorf("no user id: pass --user-id or set onboarding.userId")
			}
			opts.CandidateDescription = strings.Join(args, " ")
			opts.Source = source

			ctrl := onboarding.New(client, opts)
			defer ctrl.Wait()
			defer ctrl.Close()

			if interactive {
				err = chatTUI(ctrl)
			} else {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				defer stop()
				err = chatLines(ctx, ctrl, cmd.InOrStdin(), cmd.ErrOrStderr())
			}
			if err != nil {
				return err
			}

			snap := ctrl.Snapshot()
			if exportDir != "" {
				dir, err := exportChat(exportDir, snap, opts.UserID)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Transcript: %s\n", dir)
			}
			if snap.Plan != nil {
				_, err := cmd.OutOrStdout().Write(output.PlanJSON(*snap.Plan))
				return err
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "User to onboard (default: onboarding.userId)")
	cmd.Flags().StringVar(&source, "source", "cli", "Entry point reported to the service")
	cmd.Flags().StringVar(&exportDir, "export", "", "Write the transcript and plan under this directory")
	cmd.Flags().BoolVar(&plain, "plain", false, "Line mode even on a terminal")

	return cmd
}

func chatTUI(ctrl *onboarding.Controller) error {
	model := tui.NewModel(ctrl, tui.Options{Markdown: true})
	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	if m, ok := final.(tui.Model); ok && m.Phase() == tui.PhaseClosed {
		fmt.Fprintln(os.Stderr, "Closed before the plan was ready.")
	}
	return nil
}

// chatLines drives the conversation from text lines. Replies, stage changes
// and errors go to out; the plan is left for the caller.
func chatLines(ctx context.Context, ctrl *onboarding.Controller, in io.Reader, out io.Writer) error {
	stop := context.AfterFunc(ctx, ctrl.Close)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	printed := 0
	stage := onboarding.Stage(-1)
	flush := func() onboarding.Snapshot {
		s := ctrl.Snapshot()
		if s.Stage != stage {
			stage = s.Stage
			fmt.Fprintf(out, "== %s\n", stage.Title())
		}
		for _, m := range s.Messages[printed:] {
			if m.Sender == onboarding.SenderAssistant {
				fmt.Fprintf(out, "companion> %s\n", m.Text)
			}
		}
		printed = len(s.Messages)
		if s.ErrorText != "" {
			fmt.Fprintf(out, "! %s\n", s.ErrorText)
		}
		return s
	}

	ctrl.Start()
	ctrl.Wait()
	if flush().IsCompleted() {
		return nil
	}

	lines, readErr := readLines(ctx, in)
	for {
		var line string
		select {
		case <-ctx.Done():
			ctrl.Close()
			return nil
		case raw, ok := <-lines:
			if !ok {
				return <-readErr
			}
			line = strings.TrimSpace(raw)
		}

		switch line {
		case "":
			continue
		case "/quit":
			return nil
		case "/mode":
			fmt.Fprintf(out, "(input mode: %s)\n", ctrl.ToggleInputMode())
			continue
		}
		if !ctrl.Submit(line) {
			fmt.Fprintln(out, "(still working, try again)")
			continue
		}
		ctrl.Wait()
		if flush().IsCompleted() {
			return nil
		}
	}
}

// readLines scans in on its own goroutine so an interrupt is not stuck behind
// a blocking read. The error channel yields once the line channel closes.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

func exportChat(baseDir string, s onboarding.Snapshot, userID int64) (string, error) {
	dir, err := output.RunDir(baseDir, "chat")
	if err != nil {
		return "", err
	}
	_, _, err = output.WriteSession(dir, "transcript", output.SessionExport{
		Name:      "Onboarding chat",
		SessionID: s.SessionID,
		UserID:    userID,
		Stage:     s.Stage.String(),
		GoalID:    s.GoalID,
		Messages:  s.Messages,
		Plan:      s.Plan,
	})
	if err != nil {
		return "", err
	}
	return dir, nil
}
