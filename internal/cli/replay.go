package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cuitingzhao/companion/internal/output"
	"github.com/cuitingzhao/companion/internal/runner"
	"github.com/cuitingzhao/companion/internal/tui"
	"github.com/cuitingzhao/companion/internal/ui"
)

func newReplayCmd(gf *globalFlags) *cobra.Command {
	var (
		parallel  int
		timeout   int
		outputDir string
		source    string
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "replay <script.yaml>...",
		Short: "Replay scripted onboarding sessions against the service",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := gf.load("")
			if err != nil {
				return err
			}
			defer e.close()

			if parallel > 0 {
				e.cfg.Replay.MaxParallel = parallel
			}
			if timeout > 0 {
				e.cfg.Replay.Timeout = timeout
			}
			if outputDir != "" {
				e.cfg.Replay.OutputDir = outputDir
			}

			sessions, err := runner.LoadSessions(args...)
			if err != nil {
				return err
			}
			for i := range sessions {
				if sessions[i].Source == "" {
					sessions[i].Source = source
				}
			}

			client, err := e.client(source)
			if err != nil {
				return err
			}

			runDir, err := output.RunDir(e.cfg.Replay.OutputDir, "replay")
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Replaying %d session(s) against %s\n", len(sessions), e.cfg.Backend.BaseURL)
			fmt.Fprintf(os.Stderr, "Output: %s\n", runDir)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			// Nobody watches a replay, so completion is signalled at once.
			opts := e.controllerOptions()
			opts.DismissDelay = 0
			r := runner.New(client, e.cfg.Replay.MaxParallel, e.cfg.Replay.SessionTimeout(), opts)

			names := make([]string, len(sessions))
			for i, s := range sessions {
				names[i] = s.Name
			}
			prog := ui.NewProgress(os.Stderr, names)
			r.SetProgressFunc(func(name, event string, result *runner.Result) {
				switch event {
				case "started":
					prog.MarkRunning(name)
				case "completed":
					if result != nil {
						prog.MarkDone(name, string(result.Status), result.Stage, len(result.Messages))
					}
				}
			})

			startedAt := time.Now()
			prog.Start()
			results := r.Run(ctx, sessions)
			prog.Stop()

			if err := output.WriteResults(runDir, results); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to write transcripts: %v\n", err)
			}
			manifest := output.BuildManifest(args, startedAt, results, output.ManifestConfig{
				BaseURL:     e.cfg.Backend.BaseURL,
				Timeout:     e.cfg.Replay.Timeout,
				MaxParallel: e.cfg.Replay.MaxParallel,
			})
			if err := output.WriteManifest(runDir, manifest); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to write manifest: %v\n", err)
			}
			if err := output.WriteSummary(runDir, output.BuildSummary(manifest)); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to write summary: %v\n", err)
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(manifest); err != nil {
					return err
				}
			} else {
				printResults(results, runDir)
			}

			if n := countUnfinished(results); n > 0 {
				return fmt.Errorf("%d of %d session(s) did not complete", n, len(results))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "Sessions to run at once (default: replay.maxParallel)")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Per-session timeout in seconds")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory override")
	cmd.Flags().StringVar(&source, "source", "replay", "Entry point reported to the service")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the manifest as JSON")

	cmd.AddCommand(newReplayPruneCmd(gf))
	return cmd
}

func countUnfinished(results []runner.Result) int {
	n := 0
	for _, r := range results {
		if r.Status != runner.StatusSuccess {
			n++
		}
	}
	return n
}

func printResults(results []runner.Result, runDir string) {
	if !tui.IsTTY() {
		fmt.Fprintf(os.Stderr, "\n--- Results ---\n")
		for _, r := range results {
			fmt.Fprintf(os.Stderr, " %-12s %-24s %-14s %s\n",
				r.Status, r.Name, r.Stage, r.Duration.Round(time.Millisecond))
		}
		fmt.Fprintf(os.Stderr, "\nOutput: %s\n", runDir)
		return
	}

	t := tui.Table{Headers: []string{"", "SESSION", "STAGE", "GOAL", "DURATION"}}
	for _, r := range results {
		goal := tui.StyleMuted.Render("-")
		if r.GoalID != nil {
			goal = fmt.Sprintf("%d", *r.GoalID)
		}
		t.Rows = append(t.Rows, []string{
			tui.StatusIcon(string(r.Status)),
			r.Name,
			r.Stage,
			goal,
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintf(os.Stderr, "\n%s\n  %s %s\n", t.Render(), tui.StyleBold.Render("Output:"), runDir)
}

func newReplayPruneCmd(gf *globalFlags) *cobra.Command {
	var (
		olderThan string
		outputDir string
		dryRun    bool
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old replay directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			age, err := output.ParseAge(olderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than: %w", err)
			}

			if outputDir == "" {
				e, err := gf.load("")
				if err != nil {
					return err
				}
				defer e.close()
				outputDir = e.cfg.Replay.OutputDir
			}

			runs, err := output.ScanOlderThan(outputDir, time.Now().Add(-age))
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(os.Stderr, "No directories to prune.")
				return nil
			}

			if dryRun {
				fmt.Fprintf(os.Stderr, "Would remove %d director(ies):\n", len(runs))
				for _, r := range runs {
					fmt.Fprintf(os.Stderr, "  %s (modified %s)\n", r.Name, r.Mtime.Format(time.RFC3339))
				}
				return nil
			}

			if !yes {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return fmt.Errorf("refusing to remove %d director(ies) without --yes", len(runs))
				}
				fmt.Fprintf(os.Stderr, "Remove %d director(ies) from %s? [y/N] ", len(runs), outputDir)
				answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					fmt.Fprintln(os.Stderr, "Aborted.")
					return nil
				}
			}

			removed := 0
			for _, r := range runs {
				if err := os.RemoveAll(r.Path); err != nil {
					fmt.Fprintf(os.Stderr, "warning: failed to remove %s: %v\n", r.Path, err)
					continue
				}
				removed++
			}
			fmt.Fprintf(os.Stderr, "Removed %d director(ies).\n", removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&olderThan, "older-than", "7d", "Age threshold (e.g. 12h, 3d, 2w)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory override")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be removed")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
