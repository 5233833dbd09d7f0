// Package ingest drives the document ingestion state machine: chunk,
// extract (fan-out), consolidate, filter (fan-out), write graph, clean up.
// Each step retries on its own; a step that exhausts its retries returns the
// queue message for redelivery and marks the progress record failed.
package ingest

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/connections-insights/internal/blob"
	"github.com/sells-group/connections-insights/internal/chunker"
	"github.com/sells-group/connections-insights/internal/consolidate"
	"github.com/sells-group/connections-insights/internal/extract"
	"github.com/sells-group/connections-insights/internal/filter"
	"github.com/sells-group/connections-insights/internal/graphwrite"
	"github.com/sells-group/connections-insights/internal/model"
	"github.com/sells-group/connections-insights/internal/pdf"
	"github.com/sells-group/connections-insights/internal/resilience"
	"github.com/sells-group/connections-insights/internal/store"
)

// totalSteps is the number of progress increments one document goes
// through: chunk, consolidate, filter, clean-up.
const totalSteps = 4

// extractParallelism bounds how many chunk extractions run at once within
// one execution.
const extractParallelism = 8

// Pipeline holds the injected collaborators of one ingestion worker.
type Pipeline struct {
	Store      store.Store
	Blobs      blob.Store
	Summarizer *chunker.Summarizer
	Extractor  *extract.Extractor
	Filter     *filter.Filter
	Writer     *graphwrite.Writer

	// MaxTokensPerChunk overrides the chunk budget when positive.
	MaxTokensPerChunk int
	// SummaryChunkLimit overrides how many leading chunks seed the summary.
	SummaryChunkLimit int
	// ScratchTTL overrides the intermediate-state TTL when positive.
	ScratchTTL time.Duration
}

func (p *Pipeline) scratchTTL() time.Duration {
	if p.ScratchTTL > 0 {
		return p.ScratchTTL
	}
	return store.ScratchTTL
}

func (p *Pipeline) chunkBudget() int {
	if p.MaxTokensPerChunk > 0 {
		return p.MaxTokensPerChunk
	}
	return chunker.MaxTokensPerChunk
}

// execution is the per-document run state threaded through the steps.
type execution struct {
	id      string
	msg     *model.QueueMessage
	bucket  string
	key     string
	source  string
	scratch []string
}

// Execute runs the full state machine for one claimed document message.
// On a fatal step failure the message is returned to the queue immediately
// and the progress record is marked failed.
func (p *Pipeline) Execute(ctx context.Context, msg *model.QueueMessage) error {
	var payload model.DocumentPayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		return eris.Wrap(err, "ingest: decode message body")
	}

	key, err := url.QueryUnescape(payload.S3Key)
	if err != nil {
		key = payload.S3Key
	}

	fileName, fileType := FileNameAndType(key)
	exec := &execution{
		id:     ExecutionName(key),
		msg:    msg,
		bucket: payload.S3Bucket,
		key:    key,
		source: fileName,
	}

	log := zap.L().With(
		zap.String("execution", exec.id),
		zap.String("bucket", exec.bucket),
		zap.String("key", exec.key),
	)
	log.Info("ingest: execution started", zap.Int("receive_count", msg.ReceiveCount))

	if err := p.Store.CreateStatus(ctx, model.ProcessingStatus{
		ID:         exec.id,
		FileName:   fileName,
		FileType:   fileType,
		TotalSteps: totalSteps,
		StartedAt:  time.Now().UTC(),
	}); err != nil {
		return eris.Wrap(err, "ingest: create status")
	}

	steps := []struct {
		name string
		fn   func(context.Context, *execution) error
	}{
		{"chunk", p.stepChunk},
		{"extract", p.stepExtract},
		{"consolidate", p.stepConsolidate},
		{"filter", p.stepFilter},
		{"write_graph", p.stepWriteGraph},
		{"clean_up", p.stepCleanUp},
	}

	for _, step := range steps {
		cfg := resilience.StepRetryConfig()
		cfg.OnRetry = resilience.RetryLogger("ingest", step.name)
		err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
			return step.fn(ctx, exec)
		})
		if err != nil {
			log.Error("ingest: step failed", zap.String("step", step.name), zap.Error(err))
			p.catch(ctx, exec, step.name, err)
			return eris.Wrapf(err, "ingest: step %s", step.name)
		}
		log.Info("ingest: step complete", zap.String("step", step.name))
	}

	log.Info("ingest: execution complete")
	return nil
}

// catch is the terminal failure branch: return the message so the queue
// redelivers it, then mark the progress record failed.
func (p *Pipeline) catch(ctx context.Context, exec *execution, step string, cause error) {
	if err := p.Store.ReturnMessage(ctx, store.DocumentQueue, exec.msg.ReceiptHandle); err != nil {
		zap.L().Warn("ingest: return message failed",
			zap.String("execution", exec.id), zap.Error(err))
	}
	msg := step + ": " + cause.Error()
	if err := p.Store.FailStatus(ctx, exec.id, msg); err != nil {
		zap.L().Warn("ingest: mark status failed errored",
			zap.String("execution", exec.id), zap.Error(err))
	}
}

// scratch key layout within one execution.
func (e *execution) scratchKey(parts ...string) string {
	return e.id + "/" + strings.Join(parts, "/")
}

func (p *Pipeline) putScratch(ctx context.Context, exec *execution, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "ingest: marshal scratch %s", key)
	}
	if err := p.Store.PutScratch(ctx, key, data, p.scratchTTL()); err != nil {
		return err
	}
	exec.scratch = append(exec.scratch, key)
	return nil
}

func (p *Pipeline) getScratch(ctx context.Context, key string, v any) error {
	data, err := p.Store.GetScratch(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "ingest: unmarshal scratch %s", key)
	}
	return nil
}

// stepChunk reads the document, splits it into page-bounded chunks, and
// derives the document summary the rest of the pipeline shares.
func (p *Pipeline) stepChunk(ctx context.Context, exec *execution) error {
	data, err := p.Blobs.Get(ctx, exec.bucket, exec.key)
	if err != nil {
		return eris.Wrap(err, "read document blob")
	}

	pages, err := extractPages(exec.key, data)
	if err != nil {
		return err
	}

	chunks := chunker.SplitPages(pages, p.chunkBudget())
	if len(chunks) == 0 {
		return eris.New("document produced no chunks")
	}

	summary, err := p.Summarizer.Generate(ctx, chunks, p.SummaryChunkLimit, exec.source)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if err := p.putScratch(ctx, exec, exec.scratchKey("chunk", c.ID), c); err != nil {
			return err
		}
		ids = append(ids, c.ID)
	}
	if err := p.putScratch(ctx, exec, exec.scratchKey("chunks"), ids); err != nil {
		return err
	}
	if err := p.putScratch(ctx, exec, exec.scratchKey("summary"), summary); err != nil {
		return err
	}

	zap.L().Info("ingest: document chunked",
		zap.String("execution", exec.id),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)),
		zap.String("main_entity", summary.MainEntity.Name),
	)
	return p.Store.IncrementStatusStep(ctx, exec.id)
}

// extractPages turns the blob into per-page text. PDFs go through the page
// extractor; anything else is treated as single-page plain text.
func extractPages(key string, data []byte) ([]string, error) {
	if strings.HasSuffix(strings.ToLower(key), ".pdf") {
		pages, err := pdf.ExtractPages(data)
		if err != nil {
			return nil, eris.Wrap(err, "extract pdf pages")
		}
		return pages, nil
	}
	return []string{string(data)}, nil
}

// stepExtract fans the chunks out to the record extractor. A chunk whose
// output never parses is skipped; its loss shows up as a warning, not a
// failed document.
func (p *Pipeline) stepExtract(ctx context.Context, exec *execution) error {
	var ids []string
	if err := p.getScratch(ctx, exec.scratchKey("chunks"), &ids); err != nil {
		return err
	}
	var summary model.DocumentSummary
	if err := p.getScratch(ctx, exec.scratchKey("summary"), &summary); err != nil {
		return err
	}
	short := summary.Short()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(extractParallelism)

	results := make([]*model.ChunkRecords, len(ids))
	for i, id := range ids {
		g.Go(func() error {
			var chunk model.Chunk
			if err := p.getScratch(gCtx, exec.scratchKey("chunk", id), &chunk); err != nil {
				return err
			}
			records, err := p.Extractor.Extract(gCtx, chunk, short, exec.source)
			if err != nil {
				if gCtx.Err() != nil {
					return err
				}
				zap.L().Warn("ingest: chunk skipped",
					zap.String("execution", exec.id),
					zap.Int("start_page", chunk.StartPage),
					zap.Int("end_page", chunk.EndPage),
					zap.Error(err),
				)
				return nil
			}
			results[i] = &records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	extracted := make([]model.ChunkRecords, 0, len(results))
	for _, r := range results {
		if r != nil {
			extracted = append(extracted, *r)
		}
	}
	if len(extracted) == 0 {
		return eris.New("every chunk extraction failed")
	}

	return p.putScratch(ctx, exec, exec.scratchKey("records"), extracted)
}

// stepConsolidate unions the per-chunk record sets into one document-level
// set keyed by entity name.
func (p *Pipeline) stepConsolidate(ctx context.Context, exec *execution) error {
	var extracted []model.ChunkRecords
	if err := p.getScratch(ctx, exec.scratchKey("records"), &extracted); err != nil {
		return err
	}

	set := consolidate.Consolidate(extracted)
	if err := p.putScratch(ctx, exec, exec.scratchKey("consolidated"), set); err != nil {
		return err
	}

	zap.L().Info("ingest: records consolidated",
		zap.String("execution", exec.id),
		zap.Int("customers", len(set.Customers)),
		zap.Int("suppliers", len(set.Suppliers)),
		zap.Int("competitors", len(set.Competitors)),
		zap.Int("directors", len(set.Directors)),
	)
	return p.Store.IncrementStatusStep(ctx, exec.id)
}

// stepFilter runs the four bucket classifiers in parallel and keeps only
// the rows the model recognizes as real companies or persons.
func (p *Pipeline) stepFilter(ctx context.Context, exec *execution) error {
	var set model.ConsolidatedSet
	if err := p.getScratch(ctx, exec.scratchKey("consolidated"), &set); err != nil {
		return err
	}
	var summary model.DocumentSummary
	if err := p.getScratch(ctx, exec.scratchKey("summary"), &summary); err != nil {
		return err
	}
	mainEntity := strings.ToUpper(summary.MainEntity.Name)

	filtered := graphwrite.Buckets{}
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := p.Filter.Customers(gCtx, set.Customers, mainEntity)
		filtered.Customers = out
		return err
	})
	g.Go(func() error {
		out, err := p.Filter.Suppliers(gCtx, set.Suppliers, mainEntity)
		filtered.Suppliers = out
		return err
	})
	g.Go(func() error {
		out, err := p.Filter.Competitors(gCtx, set.Competitors, mainEntity)
		filtered.Competitors = out
		return err
	})
	g.Go(func() error {
		out, err := p.Filter.Directors(gCtx, set.Directors, mainEntity)
		filtered.Directors = out
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := p.putScratch(ctx, exec, exec.scratchKey("filtered"), filtered); err != nil {
		return err
	}
	return p.Store.IncrementStatusStep(ctx, exec.id)
}

// stepWriteGraph materializes the main entity and the filtered buckets as
// vertices and edges. This is the long step; reruns merge idempotently.
func (p *Pipeline) stepWriteGraph(ctx context.Context, exec *execution) error {
	var summary model.DocumentSummary
	if err := p.getScratch(ctx, exec.scratchKey("summary"), &summary); err != nil {
		return err
	}
	var buckets graphwrite.Buckets
	if err := p.getScratch(ctx, exec.scratchKey("filtered"), &buckets); err != nil {
		return err
	}
	return p.Writer.Write(ctx, summary, buckets)
}

// stepCleanUp deletes the source blob, acks the queue message, drops the
// execution's scratch records, and closes out the progress record.
func (p *Pipeline) stepCleanUp(ctx context.Context, exec *execution) error {
	if err := p.Blobs.Delete(ctx, exec.bucket, exec.key); err != nil {
		zap.L().Warn("ingest: delete blob failed",
			zap.String("execution", exec.id), zap.Error(err))
	}
	if err := p.Store.DeleteMessage(ctx, store.DocumentQueue, exec.msg.ReceiptHandle); err != nil {
		return eris.Wrap(err, "delete queue message")
	}
	for _, key := range exec.scratch {
		if err := p.Store.DeleteScratch(ctx, key); err != nil {
			zap.L().Warn("ingest: delete scratch failed",
				zap.String("key", key), zap.Error(err))
		}
	}
	if err := p.Store.IncrementStatusStep(ctx, exec.id); err != nil {
		return err
	}
	return p.Store.CompleteStatus(ctx, exec.id)
}
