package llm

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/connections-insights/internal/resilience"
)

// maxTransientRetries bounds retries of non-throttle transient failures.
// Throttling is retried indefinitely with a randomized delay.
const maxTransientRetries = 3

// Auditor records prompt/response pairs for later inspection. Records are
// keyed by a caller-supplied id of the form "<entity>-><operation>".
type Auditor interface {
	RecordPrompt(ctx context.Context, id, prompt, response string) error
}

// Invoker wraps a Client with the retry policy shared by all model calls:
// deterministic sampling, unbounded throttle retries with a 10-30s delay,
// and a small bounded budget for other transient failures.
type Invoker struct {
	Client    Client
	Model     string
	MaxTokens int64
	Audit     Auditor // optional
}

// Query sends a conversation to the model and returns the response text.
// Temperature and top_p are pinned to 0 so repeated invocations over the
// same document produce stable output.
func (inv *Invoker) Query(ctx context.Context, auditID, system string, messages []Message) (string, error) {
	zero := 0.0
	req := MessageRequest{
		Model:       inv.Model,
		MaxTokens:   inv.MaxTokens,
		System:      system,
		Messages:    messages,
		Temperature: &zero,
		TopP:        &zero,
	}

	transientAttempts := 0
	for {
		resp, err := inv.Client.CreateMessage(ctx, req)
		if err == nil {
			resp.Usage.LogCost(inv.Model, auditID)
			inv.audit(ctx, auditID, messages, resp.Text)
			return resp.Text, nil
		}

		switch {
		case resilience.IsInputTooLong(err):
			// The caller owns input shrinking.
			return "", eris.Wrap(resilience.ErrInputTooLong, auditID)
		case resilience.IsThrottled(err):
			delay := resilience.ThrottleDelay()
			zap.L().Warn("model call throttled",
				zap.String("operation", auditID),
				zap.Duration("delay", delay),
			)
			if serr := resilience.Sleep(ctx, delay); serr != nil {
				return "", eris.Wrap(err, "llm: query")
			}
		case resilience.IsTransient(err):
			transientAttempts++
			if transientAttempts > maxTransientRetries {
				return "", eris.Wrap(err, "llm: query")
			}
			zap.L().Warn("model call failed, retrying",
				zap.String("operation", auditID),
				zap.Int("attempt", transientAttempts),
				zap.Error(err),
			)
		default:
			return "", eris.Wrap(err, "llm: query")
		}

		if ctx.Err() != nil {
			return "", eris.Wrap(ctx.Err(), "llm: query")
		}
	}
}

// QueryPrompt is Query with a single user message.
func (inv *Invoker) QueryPrompt(ctx context.Context, auditID, system, prompt string) (string, error) {
	return inv.Query(ctx, auditID, system, []Message{{Role: "user", Content: prompt}})
}

func (inv *Invoker) audit(ctx context.Context, id string, messages []Message, response string) {
	if inv.Audit == nil {
		return
	}
	prompt := Transcript(messages)
	if err := inv.Audit.RecordPrompt(ctx, id, prompt, response); err != nil {
		// Auditing is best effort, never fail the pipeline over it.
		zap.L().Warn("prompt audit failed", zap.String("id", id), zap.Error(err))
	}
}

// Transcript renders a conversation as a readable role-prefixed transcript.
func Transcript(messages []Message) string {
	var out string
	for i, m := range messages {
		if i > 0 {
			out += "\n\n"
		}
		out += m.Role + ": " + m.Content
	}
	return out
}
