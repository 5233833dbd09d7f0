package graph

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/connections-insights/internal/llm"
	"github.com/sells-group/connections-insights/internal/model"
	"github.com/sells-group/connections-insights/internal/resilience"
)

// Client is the graph access layer: idempotent vertex/edge writes on top of
// fuzzy lookup and model-assisted disambiguation.
type Client struct {
	engine Engine
	llm    *llm.Invoker
}

// NewClient builds a graph client over an engine and a model invoker.
func NewClient(engine Engine, inv *llm.Invoker) *Client {
	return &Client{engine: engine, llm: inv}
}

// Entity is the compact listing shape for the entities API.
type Entity struct {
	ID         string `json:"ID"`
	Label      string `json:"LABEL"`
	Name       string `json:"NAME"`
	Interested string `json:"INTERESTED"`
}

// withReconnect runs fn, and on a transient backend failure sleeps 10-30s,
// reconnects, and retries once. Dropped Gremlin sessions surface as 503s.
func (c *Client) withReconnect(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !resilience.IsTransient(err) {
		return err
	}

	delay := resilience.ThrottleDelay()
	zap.L().Warn("graph backend unavailable, reconnecting",
		zap.Duration("delay", delay),
		zap.Error(err),
	)
	if serr := resilience.Sleep(ctx, delay); serr != nil {
		return err
	}
	if rerr := c.engine.Reconnect(ctx); rerr != nil {
		return rerr
	}
	return fn()
}

// GetOrCreateID resolves name against the graph and merges attrs into the
// matched vertex, or creates a new vertex when no match exists. Returns the
// vertex id either way. Edges supply relationship context for the
// disambiguator only.
func (c *Client) GetOrCreateID(ctx context.Context, label, name string, attrs map[string]string, edges []string) (string, error) {
	var id string
	err := c.withReconnect(ctx, func() error {
		resolved, err := c.resolveID(ctx, label, name, attrs, edges)
		if err != nil {
			return err
		}

		if resolved != "" {
			if err := c.mergeVertexAttrs(ctx, resolved, attrs); err != nil {
				return err
			}
			id = resolved
			return nil
		}

		props := map[string]string{PropName: CleanName(name)}
		for k, v := range attrs {
			props[k] = v
		}
		created, err := c.engine.AddVertex(ctx, label, props)
		if err != nil {
			return err
		}
		id = created
		return nil
	})
	return id, err
}

// narrative summary attributes overwrite instead of set-union on merge.
var overwriteAttrs = map[string]bool{
	model.AttrPerformanceSummary: true,
	model.AttrStrategySummary:    true,
}

func (c *Client) mergeVertexAttrs(ctx context.Context, id string, attrs map[string]string) error {
	v, err := c.engine.VertexByID(ctx, id)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}

	for k, incoming := range attrs {
		value := incoming
		if !overwriteAttrs[k] {
			value = model.MergeValueString(v.Properties[k], incoming)
		}
		if err := c.engine.SetVertexProperty(ctx, id, k, value); err != nil {
			return err
		}
	}
	return nil
}

// AddOrUpdateEdge inserts the (src)-[label]->(dst) edge or set-union merges
// the supplied properties into the existing one. At most one edge exists per
// (src, label, dst).
func (c *Client) AddOrUpdateEdge(ctx context.Context, src, label, dst string, props map[string]string) error {
	return c.withReconnect(ctx, func() error {
		existing, err := c.engine.FindEdge(ctx, src, label, dst)
		if err != nil {
			return err
		}

		if existing == nil {
			deduped := make(map[string]string, len(props))
			for k, v := range props {
				deduped[k] = model.MergeValueString("", v)
			}
			_, err := c.engine.AddEdge(ctx, src, label, dst, deduped)
			return err
		}

		for k, v := range props {
			merged := model.MergeValueString(existing.Properties[k], v)
			if err := c.engine.SetEdgeProperty(ctx, existing.ID, k, merged); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindWithinNHops resolves name and returns every rendered path of length
// ≤ n from it to an interested entity, including the vertex itself when it
// is interested. Returns nil when the name resolves to nothing.
func (c *Client) FindWithinNHops(ctx context.Context, label, name string, props map[string]string, edges []string, n int) ([]PathString, error) {
	var out []PathString
	err := c.withReconnect(ctx, func() error {
		id, err := c.resolveID(ctx, label, name, props, edges)
		if err != nil {
			return err
		}
		if id == "" {
			return nil
		}

		paths, err := c.engine.InterestedPaths(ctx, id, n)
		if err != nil {
			return err
		}
		out = FormatPaths(paths)
		return nil
	})
	return out, err
}

// Entities lists every vertex with its interested flag.
func (c *Client) Entities(ctx context.Context) ([]Entity, error) {
	var out []Entity
	err := c.withReconnect(ctx, func() error {
		vertices, err := c.engine.Vertices(ctx)
		if err != nil {
			return err
		}

		out = make([]Entity, 0, len(vertices))
		for _, v := range vertices {
			interested := v.Properties[PropInterested]
			if interested == "" {
				interested = InterestedNo
			}
			out = append(out, Entity{
				ID:         v.ID,
				Label:      v.Label,
				Name:       v.Name(),
				Interested: interested,
			})
		}
		return nil
	})
	return out, err
}

// UpdateInterested flags or unflags a vertex as an interested entity.
func (c *Client) UpdateInterested(ctx context.Context, id, interested string) error {
	return c.withReconnect(ctx, func() error {
		return c.engine.SetVertexProperty(ctx, id, PropInterested, interested)
	})
}
