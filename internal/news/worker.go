package news

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/connections-insights/internal/store"
)

// DefaultVisibility bounds one article's processing time.
const DefaultVisibility = 15 * time.Minute

// DefaultMaxReceives dead-letters an article message on its third delivery.
const DefaultMaxReceives = 2

// Worker block-polls the news queue. Articles are independent, so the queue
// carries no ordering group.
type Worker struct {
	Processor *Processor

	Visibility   time.Duration
	MaxReceives  int
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

// Run polls until ctx is done. A failed article is logged and its message
// stays claimed; the visibility timeout redelivers it until the receive
// budget dead-letters it.
func (w *Worker) Run(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Every(w.pollInterval()), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		msg, err := w.Processor.Store.Receive(ctx, store.NewsQueue, w.visibility(), w.maxReceives())
		if err != nil {
			zap.L().Warn("news: queue receive failed", zap.Error(err))
			continue
		}
		if msg == nil {
			continue
		}

		if err := w.Processor.HandleMessage(ctx, msg); err != nil {
			zap.L().Error("news: message failed",
				zap.String("message", msg.ID), zap.Error(err))
		}
	}
}

// RunPool runs n workers against the same processor until ctx is done.
func RunPool(ctx context.Context, p *Processor, n int, opts Worker) error {
	if n < 1 {
		n = 1
	}
	g, gCtx := errgroup.WithContext(ctx)
	for range n {
		w := opts
		w.Processor = p
		g.Go(func() error { return w.Run(gCtx) })
	}
	return g.Wait()
}
