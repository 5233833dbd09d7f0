package graph

import (
	"context"
	"fmt"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// GremlinEngine is an Engine backed by a remote Gremlin server (Neptune or
// any TinkerPop-compatible endpoint).
type GremlinEngine struct {
	endpoint string
	conn     *gremlingo.DriverRemoteConnection
	g        *gremlingo.GraphTraversalSource
}

// NewGremlinEngine connects to a Gremlin server, e.g.
// "wss://host:8182/gremlin".
func NewGremlinEngine(endpoint string) (*GremlinEngine, error) {
	e := &GremlinEngine{endpoint: endpoint}
	if err := e.connect(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *GremlinEngine) connect() error {
	conn, err := gremlingo.NewDriverRemoteConnection(e.endpoint)
	if err != nil {
		return eris.Wrap(err, "graph: connect gremlin")
	}
	e.conn = conn
	e.g = gremlingo.Traversal_().WithRemote(conn)
	return nil
}

func (e *GremlinEngine) Reconnect(ctx context.Context) error {
	if e.conn != nil {
		e.conn.Close()
	}
	zap.L().Info("reconnecting to gremlin server", zap.String("endpoint", e.endpoint))
	return e.connect()
}

func (e *GremlinEngine) Close() {
	if e.conn != nil {
		e.conn.Close()
	}
}

func (e *GremlinEngine) AddVertex(ctx context.Context, label string, props map[string]string) (string, error) {
	if props[PropName] == "" {
		return "", eris.New("graph: vertex requires NAME")
	}
	t := e.g.AddV(label)
	for k, v := range props {
		t = t.Property(gremlingo.Cardinality.Single, k, v)
	}
	res, err := t.Next()
	if err != nil {
		return "", eris.Wrap(err, "graph: add vertex")
	}
	v, err := res.GetVertex()
	if err != nil {
		return "", eris.Wrap(err, "graph: add vertex result")
	}
	return fmt.Sprintf("%v", v.Id), nil
}

func (e *GremlinEngine) SetVertexProperty(ctx context.Context, id, key, value string) error {
	if _, err := e.g.V(id).Property(gremlingo.Cardinality.Single, key, value).Next(); err != nil {
		return eris.Wrap(err, "graph: set vertex property")
	}
	return nil
}

func (e *GremlinEngine) VertexByID(ctx context.Context, id string) (*Vertex, error) {
	results, err := e.g.V(id).ElementMap().ToList()
	if err != nil {
		return nil, eris.Wrap(err, "graph: vertex by id")
	}
	if len(results) == 0 {
		return nil, nil
	}
	v := parseVertexMap(results[0].GetInterface())
	return &v, nil
}

func (e *GremlinEngine) Vertices(ctx context.Context) ([]Vertex, error) {
	results, err := e.g.V().ElementMap().ToList()
	if err != nil {
		return nil, eris.Wrap(err, "graph: list vertices")
	}
	out := make([]Vertex, 0, len(results))
	for _, r := range results {
		out = append(out, parseVertexMap(r.GetInterface()))
	}
	return out, nil
}

func (e *GremlinEngine) FindByName(ctx context.Context, label string, match NameMatch) ([]Vertex, error) {
	if match.Value == "" {
		return nil, nil
	}

	var pred interface{}
	switch match.Kind {
	case MatchContaining:
		pred = gremlingo.TextP.Containing(match.Value)
	case MatchRegex:
		pred = gremlingo.TextP.Regex(match.Value)
	default:
		pred = match.Value
	}

	results, err := e.g.V().HasLabel(label).Has(PropName, pred).ElementMap().ToList()
	if err != nil {
		return nil, eris.Wrap(err, "graph: find by name")
	}
	out := make([]Vertex, 0, len(results))
	for _, r := range results {
		out = append(out, parseVertexMap(r.GetInterface()))
	}
	return out, nil
}

func (e *GremlinEngine) OutEdges(ctx context.Context, id string) ([]Step, error) {
	results, err := e.g.V(id).OutE().As("edge").InV().As("other").
		Select("edge", "other").By(gremlingo.T__.ElementMap()).ToList()
	if err != nil {
		return nil, eris.Wrap(err, "graph: out edges")
	}
	return parseSteps(results)
}

func (e *GremlinEngine) InEdges(ctx context.Context, id string) ([]Step, error) {
	results, err := e.g.V(id).InE().As("edge").OutV().As("other").
		Select("edge", "other").By(gremlingo.T__.ElementMap()).ToList()
	if err != nil {
		return nil, eris.Wrap(err, "graph: in edges")
	}
	return parseSteps(results)
}

func (e *GremlinEngine) FindEdge(ctx context.Context, src, label, dst string) (*Edge, error) {
	results, err := e.g.V(src).OutE(label).
		Where(gremlingo.T__.InV().HasId(dst)).
		ElementMap().ToList()
	if err != nil {
		return nil, eris.Wrap(err, "graph: find edge")
	}
	if len(results) == 0 {
		return nil, nil
	}
	edge := parseEdgeMap(results[0].GetInterface())
	return &edge, nil
}

func (e *GremlinEngine) AddEdge(ctx context.Context, src, label, dst string, props map[string]string) (string, error) {
	t := e.g.V(src).AddE(label).To(gremlingo.T__.V(dst))
	for k, v := range props {
		t = t.Property(k, v)
	}
	res, err := t.Next()
	if err != nil {
		return "", eris.Wrap(err, "graph: add edge")
	}
	edge, err := res.GetEdge()
	if err != nil {
		return "", eris.Wrap(err, "graph: add edge result")
	}
	return fmt.Sprintf("%v", edge.Id), nil
}

func (e *GremlinEngine) SetEdgeProperty(ctx context.Context, edgeID, key, value string) error {
	if _, err := e.g.E(edgeID).Property(key, value).Next(); err != nil {
		return eris.Wrap(err, "graph: set edge property")
	}
	return nil
}

func (e *GremlinEngine) InterestedPaths(ctx context.Context, id string, n int) ([]Path, error) {
	selfResults, err := e.g.V(id).Has(PropInterested, InterestedYes).
		Path().By(gremlingo.T__.ElementMap()).ToList()
	if err != nil {
		return nil, eris.Wrap(err, "graph: interested self path")
	}

	hopResults, err := e.g.V(id).
		Repeat(gremlingo.T__.BothE().BothV().SimplePath()).Times(n).Emit().
		Has(PropInterested, InterestedYes).
		Path().By(gremlingo.T__.ElementMap()).ToList()
	if err != nil {
		return nil, eris.Wrap(err, "graph: interested n-hop paths")
	}

	var out []Path
	for _, r := range append(selfResults, hopResults...) {
		p, err := r.GetPath()
		if err != nil {
			return nil, eris.Wrap(err, "graph: decode path")
		}
		out = append(out, parsePath(p))
	}
	return out, nil
}

// --- element map parsing ---
//
// ElementMap results carry token keys (T.id, T.label, Direction.IN/OUT)
// whose Go representation varies by serializer version, so keys are
// normalized through fmt.Sprintf before dispatch.

func asStringMap(data interface{}) map[string]interface{} {
	raw, ok := data.(map[interface{}]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		out[fmt.Sprintf("%v", k)] = v
	}
	return out
}

func parseVertexMap(data interface{}) Vertex {
	m := asStringMap(data)
	v := Vertex{Properties: make(map[string]string)}
	for k, val := range m {
		switch k {
		case "id":
			v.ID = fmt.Sprintf("%v", val)
		case "label":
			v.Label = fmt.Sprintf("%v", val)
		default:
			v.Properties[k] = fmt.Sprintf("%v", val)
		}
	}
	return v
}

func parseEdgeMap(data interface{}) Edge {
	m := asStringMap(data)
	e := Edge{Properties: make(map[string]string)}
	for k, val := range m {
		switch k {
		case "id":
			e.ID = fmt.Sprintf("%v", val)
		case "label":
			e.Label = fmt.Sprintf("%v", val)
		case "IN":
			if endpoint := asStringMap(val); endpoint != nil {
				e.To = fmt.Sprintf("%v", endpoint["id"])
			}
		case "OUT":
			if endpoint := asStringMap(val); endpoint != nil {
				e.From = fmt.Sprintf("%v", endpoint["id"])
			}
		default:
			e.Properties[k] = fmt.Sprintf("%v", val)
		}
	}
	return e
}

// isEdgeMap distinguishes edge element maps by their direction keys; only
// vertices carry NAME.
func isEdgeMap(m map[string]interface{}) bool {
	_, in := m["IN"]
	_, out := m["OUT"]
	return in || out
}

func parseSteps(results []*gremlingo.Result) ([]Step, error) {
	out := make([]Step, 0, len(results))
	for _, r := range results {
		m := asStringMap(r.GetInterface())
		if m == nil {
			return nil, eris.New("graph: unexpected select result shape")
		}
		out = append(out, Step{
			Edge:  parseEdgeMap(m["edge"]),
			Other: parseVertexMap(m["other"]),
		})
	}
	return out, nil
}

func parsePath(p *gremlingo.Path) Path {
	var out Path
	for _, obj := range p.Objects {
		m := asStringMap(obj)
		if m == nil {
			continue
		}
		if isEdgeMap(m) {
			e := parseEdgeMap(obj)
			out.Elements = append(out.Elements, PathElement{Edge: &e})
		} else {
			v := parseVertexMap(obj)
			out.Elements = append(out.Elements, PathElement{Vertex: &v})
		}
	}
	return out
}
