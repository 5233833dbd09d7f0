package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/connections-insights/internal/store"
)

// DefaultVisibility aligns with the execution wall-clock bound: a worker
// that dies mid-document surfaces the message again after this window.
const DefaultVisibility = 120 * time.Minute

// DefaultMaxReceives sends a message to the dead-letter set on its third
// delivery attempt.
const DefaultMaxReceives = 2

// Worker block-polls the document FIFO queue and runs one execution per
// claimed message.
type Worker struct {
	Pipeline *Pipeline

	// Visibility overrides the claim window when positive.
	Visibility time.Duration
	// MaxReceives overrides the dead-letter threshold when positive.
	MaxReceives int
	// PollInterval overrides the 1 Hz poll rate when positive.
	PollInterval time.Duration
}

func (w *Worker) visibility() time.Duration {
	if w.Visibility > 0 {
		return w.Visibility
	}
	return DefaultVisibility
}

func (w *Worker) maxReceives() int {
	if w.MaxReceives > 0 {
		return w.MaxReceives
	}
	return DefaultMaxReceives
}

func (w *Worker) pollInterval() time.Duration {
	if w.PollInterval > 0 {
		return w.PollInterval
	}
	return time.Second
}

// Run polls until ctx is done. Claimed messages are processed inline;
// execution failures are logged and do not stop the worker, the returned
// message carries the retry.
func (w *Worker) Run(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Every(w.pollInterval()), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		msg, err := w.Pipeline.Store.Receive(ctx, store.DocumentQueue, w.visibility(), w.maxReceives())
		if err != nil {
			zap.L().Warn("ingest: queue receive failed", zap.Error(err))
			continue
		}
		if msg == nil {
			continue
		}

		if err := w.Pipeline.Execute(ctx, msg); err != nil {
			zap.L().Error("ingest: execution failed",
				zap.String("message", msg.ID), zap.Error(err))
		}
	}
}

// RunPool runs n workers against the same pipeline until ctx is done.
func RunPool(ctx context.Context, p *Pipeline, n int, opts Worker) error {
	if n < 1 {
		n = 1
	}
	g, gCtx := errgroup.WithContext(ctx)
	for range n {
		w := opts
		w.Pipeline = p
		g.Go(func() error { return w.Run(gCtx) })
	}
	return g.Wait()
}
