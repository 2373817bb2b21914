package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Stage is a long-running pipeline step. Run blocks until ctx is cancelled
// or the stage fails; returning nil ends only that stage.
type Stage interface {
	Run(ctx context.Context) error
}

// StageFunc adapts a function into the Stage interface.
type StageFunc func(ctx context.Context) error

// Run calls f.
func (f StageFunc) Run(ctx context.Context) error { return f(ctx) }

// Lifecycle runs a set of named stages under one cancellable context.
// The first stage error, SIGINT, SIGTERM or cancellation of the parent
// context stops every stage.
type Lifecycle struct {
	logger *zap.Logger
	stages []namedStage
	mu     sync.Mutex
}

type namedStage struct {
	name  string
	stage Stage
}

// NewLifecycle creates a new Lifecycle manager.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a named stage.
//
// Precondition: name must be non-empty; stage must be non-nil.
func (l *Lifecycle) Add(name string, stage Stage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stages = append(l.stages, namedStage{name: name, stage: stage})
}

// Run starts every stage and blocks until all of them have returned.
//
// Postcondition: returns the first stage error, or nil when the stages
// stopped because of a signal or cancellation.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.mu.Lock()
	stages := append([]namedStage(nil), l.stages...)
	l.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, ns := range stages {
		g.Go(func() error {
			l.logger.Debug("starting stage", zap.String("stage", ns.name))
			stageStart := time.Now()
			err := ns.stage.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				l.logger.Error("stage failed",
					zap.String("stage", ns.name),
					zap.Error(err),
					zap.Duration("uptime", time.Since(stageStart)),
				)
				return fmt.Errorf("stage %s: %w", ns.name, err)
			}
			l.logger.Debug("stage stopped",
				zap.String("stage", ns.name),
				zap.Duration("uptime", time.Since(stageStart)),
			)
			return nil
		})
	}

	l.logger.Info("all stages started",
		zap.Int("count", len(stages)),
		zap.Duration("startup", time.Since(start)),
	)

	err := g.Wait()
	l.logger.Info("shutdown complete",
		zap.Duration("total_uptime", time.Since(start)),
	)
	return err
}
