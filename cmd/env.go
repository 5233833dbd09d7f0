package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/connections-insights/internal/blob"
	"github.com/sells-group/connections-insights/internal/chunker"
	"github.com/sells-group/connections-insights/internal/config"
	"github.com/sells-group/connections-insights/internal/extract"
	"github.com/sells-group/connections-insights/internal/filter"
	"github.com/sells-group/connections-insights/internal/graph"
	"github.com/sells-group/connections-insights/internal/graphwrite"
	"github.com/sells-group/connections-insights/internal/ingest"
	"github.com/sells-group/connections-insights/internal/llm"
	"github.com/sells-group/connections-insights/internal/news"
	"github.com/sells-group/connections-insights/internal/store"
)

// appEnv bundles the wired clients every command works against.
type appEnv struct {
	Store   store.Store
	Blobs   blob.Store
	Engine  graph.Engine
	Graph   *graph.Client
	Invoker *llm.Invoker

	Pipeline *ingest.Pipeline
	News     *news.Processor
}

// initEnv builds the store, blob, graph and model clients from the loaded
// config and wires the ingestion pipeline and the news processor on top.
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	blobs, err := openBlobs(ctx, cfg.Blob)
	if err != nil {
		st.Close()
		return nil, err
	}

	engine, err := openGraph(cfg.Graph)
	if err != nil {
		st.Close()
		return nil, err
	}

	inv := &llm.Invoker{
		Client:    llm.NewClient(cfg.Anthropic.Key),
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
		Audit:     st,
	}
	gc := graph.NewClient(engine, inv)

	env := &appEnv{
		Store:   st,
		Blobs:   blobs,
		Engine:  engine,
		Graph:   gc,
		Invoker: inv,
	}
	env.Pipeline = &ingest.Pipeline{
		Store:             st,
		Blobs:             blobs,
		Summarizer:        &chunker.Summarizer{LLM: inv},
		Extractor:         &extract.Extractor{LLM: inv},
		Filter:            &filter.Filter{LLM: inv, ShardSize: cfg.Ingest.FilterShardSize},
		Writer:            &graphwrite.Writer{Graph: gc},
		MaxTokensPerChunk: cfg.Ingest.MaxTokensPerChunk,
		SummaryChunkLimit: cfg.Ingest.SummaryChunkLimit,
	}
	env.News = &news.Processor{
		Store: st,
		Blobs: blobs,
		Graph: gc,
		LLM:   inv,
	}
	return env, nil
}

func (e *appEnv) Close() {
	e.Engine.Close()
	if err := e.Store.Close(); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "close store: %v\n", err)
	}
}

func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, nil)
	case "sqlite":
		return store.NewSQLite(sc.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", sc.Driver)
	}
}

func openBlobs(ctx context.Context, bc config.BlobConfig) (blob.Store, error) {
	switch bc.Driver {
	case "s3":
		return blob.NewS3(ctx, bc.Region)
	case "fs":
		return blob.NewFS(bc.Root), nil
	default:
		return nil, eris.Errorf("unknown blob driver %q", bc.Driver)
	}
}

func openGraph(gc config.GraphConfig) (graph.Engine, error) {
	switch gc.Driver {
	case "gremlin":
		return graph.NewGremlinEngine(gc.Endpoint)
	case "memory":
		return graph.NewMemoryEngine(), nil
	default:
		return nil, eris.Errorf("unknown graph driver %q", gc.Driver)
	}
}
