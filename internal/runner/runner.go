// Package runner replays scripted onboarding sessions through real
// controllers, several at a time.
package runner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/cuitingzhao/companion/internal/onboarding"
)

type ProgressFunc func(name, event string, result *Result)

type Runner struct {
	backend     onboarding.Backend
	maxParallel int64
	timeout     time.Duration
	base        onboarding.Options
	onProgress  ProgressFunc
	log         *zap.Logger
}

// New returns a runner that plays at most maxParallel sessions at once and
// gives each one timeout to finish. base supplies the controller options
// shared by every session; UserID, CandidateDescription, Source and
// OnComplete are filled per session.
func New(backend onboarding.Backend, maxParallel int, timeout time.Duration, base onboarding.Options) *Runner {
	if maxParallel < 1 {
		maxParallel = 4
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	log := base.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		backend:     backend,
		maxParallel: int64(maxParallel),
		timeout:     timeout,
		base:        base,
		log:         log,
	}
}

func (r *Runner) SetProgressFunc(fn ProgressFunc) {
	r.onProgress = fn
}

// Run plays every session and returns results in input order.
func (r *Runner) Run(ctx context.Context, sessions []Session) []Result {
	results := make([]Result, len(sessions))

	sem := semaphore.NewWeighted(r.maxParallel)
	g, gctx := errgroup.WithContext(ctx)

	for i, s := range sessions {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				results[i] = Result{Name: s.Name, UserID: s.UserID, Status: StatusCancelled}
				return nil
			}
			defer sem.Release(1)

			results[i] = r.play(gctx, s)
			return nil
		})
	}

	g.Wait()
	return results
}

func (r *Runner) play(ctx context.Context, s Session) Result {
	start := time.Now()

	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := r.base
	opts.UserID = s.UserID
	opts.CandidateDescription = s.Candidate
	opts.Source = s.Source
	opts.Logger = r.log.With(zap.String("replay", s.Name))
	opts.OnComplete = nil

	ctrl := onboarding.New(r.backend, opts)
	defer ctrl.Close()
	stop := context.AfterFunc(sctx, ctrl.Close)
	defer stop()

	if r.onProgress != nil {
		r.onProgress(s.Name, "started", nil)
	}

	dropped := 0
	ctrl.Start()
	ctrl.Wait()
	for _, input := range s.Inputs {
		if sctx.Err() != nil || ctrl.Snapshot().IsCompleted() {
			break
		}
		if !ctrl.Submit(input) {
			dropped++
			continue
		}
		ctrl.Wait()
	}

	snap := ctrl.Snapshot()
	result := Result{
		Name:      s.Name,
		SessionID: snap.SessionID,
		UserID:    s.UserID,
		Duration:  time.Since(start),
		Stage:     snap.Stage.String(),
		GoalID:    snap.GoalID,
		Dropped:   dropped,
		Messages:  snap.Messages,
		Plan:      snap.Plan,
	}

	ctxErr := sctx.Err()
	switch {
	case snap.IsCompleted():
		result.Status = StatusSuccess
	case errors.Is(ctxErr, context.DeadlineExceeded):
		result.Status = StatusTimeout
	case errors.Is(ctxErr, context.Canceled):
		result.Status = StatusCancelled
	case snap.ErrorText != "":
		result.Status = StatusFailed
		result.Error = snap.ErrorText
	default:
		result.Status = StatusIncomplete
	}

	r.log.Debug("replay finished",
		zap.String("name", s.Name),
		zap.String("status", string(result.Status)),
		zap.Duration("duration", result.Duration),
	)
	if r.onProgress != nil {
		r.onProgress(s.Name, "completed", &result)
	}
	return result
}
