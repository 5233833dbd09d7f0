package store

import (
	"context"
	"time"

	"github.com/sells-group/connections-insights/internal/model"
)

// Queue names.
const (
	DocumentQueue = "documents"
	NewsQueue     = "news"
)

// DefaultN is the hop radius used when no setting has been written.
const DefaultN = 2

// MaxErrorLength caps stored failure messages.
const MaxErrorLength = 500

// ScratchTTL is how long intermediate step outputs are kept.
const ScratchTTL = 2 * time.Hour

// PromptTTL is how long prompt audit records are kept.
const PromptTTL = 24 * time.Hour

// DedupWindow bounds content dedup on enqueue. Identical payloads older than
// this no longer collapse, matching the five-minute dedup window of hosted
// FIFO queues.
const DedupWindow = 5 * time.Minute

// Store defines the persistence interface shared by the ingestion pipeline,
// the news path, and the HTTP API.
type Store interface {
	// Scratch holds intermediate step outputs keyed by execution and step.
	PutScratch(ctx context.Context, key string, data []byte, ttl time.Duration) error
	GetScratch(ctx context.Context, key string) ([]byte, error)
	DeleteScratch(ctx context.Context, key string) error
	DeleteExpiredScratch(ctx context.Context) (int, error)

	// Settings
	GetN(ctx context.Context) (int, error)
	SetN(ctx context.Context, n int) error

	// Prompt audit
	RecordPrompt(ctx context.Context, id, prompt, response string) error
	DeleteExpiredPrompts(ctx context.Context) (int, error)

	// Processing status
	CreateStatus(ctx context.Context, st model.ProcessingStatus) error
	IncrementStatusStep(ctx context.Context, id string) error
	CompleteStatus(ctx context.Context, id string) error
	FailStatus(ctx context.Context, id, message string) error
	GetStatus(ctx context.Context, id string) (*model.ProcessingStatus, error)
	ListStatuses(ctx context.Context) ([]model.ProcessingStatus, error)
	ClearStatuses(ctx context.Context) error

	// News records
	SaveNews(ctx context.Context, rec model.NewsRecord) error
	GetNews(ctx context.Context, id string) (*model.NewsRecord, error)
	ListNews(ctx context.Context, includeHidden bool) ([]model.NewsRecord, error)
	HideNews(ctx context.Context, id string, hidden bool) error
	DeleteNews(ctx context.Context, id string) error
	PurgeNews(ctx context.Context) error

	// Queues. Enqueue dedupes on identical pending content within a queue;
	// Receive claims the oldest visible message whose group has no other
	// claim in flight, moving messages past maxReceives to the dead-letter
	// set instead of delivering them.
	Enqueue(ctx context.Context, queue, group, body string) (string, error)
	Receive(ctx context.Context, queue string, visibility time.Duration, maxReceives int) (*model.QueueMessage, error)
	DeleteMessage(ctx context.Context, queue, receiptHandle string) error
	ReturnMessage(ctx context.Context, queue, receiptHandle string) error
	ListDeadLetters(ctx context.Context, queue string) ([]model.QueueMessage, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
