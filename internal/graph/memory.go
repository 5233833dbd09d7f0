package graph

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// MemoryEngine is an embedded in-memory Engine. It backs local runs and
// tests where no Gremlin server is available.
type MemoryEngine struct {
	mu       sync.RWMutex
	vertices map[string]*Vertex
	edges    map[string]*Edge
	nextID   int
}

// NewMemoryEngine returns an empty in-memory graph.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		vertices: make(map[string]*Vertex),
		edges:    make(map[string]*Edge),
	}
}

func (m *MemoryEngine) newID(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *MemoryEngine) AddVertex(ctx context.Context, label string, props map[string]string) (string, error) {
	if props[PropName] == "" {
		return "", eris.New("graph: vertex requires NAME")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	v := &Vertex{
		ID:         m.newID("v"),
		Label:      label,
		Properties: cloneProps(props),
	}
	m.vertices[v.ID] = v
	return v.ID, nil
}

func (m *MemoryEngine) SetVertexProperty(ctx context.Context, id, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.vertices[id]
	if !ok {
		return eris.New("graph: vertex not found: " + id)
	}
	v.Properties[key] = value
	return nil
}

func (m *MemoryEngine) VertexByID(ctx context.Context, id string) (*Vertex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.vertices[id]
	if !ok {
		return nil, nil
	}
	return copyVertex(v), nil
}

func (m *MemoryEngine) Vertices(ctx context.Context) ([]Vertex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Vertex, 0, len(m.vertices))
	for _, v := range m.vertices {
		out = append(out, *copyVertex(v))
	}
	return out, nil
}

func (m *MemoryEngine) FindByName(ctx context.Context, label string, match NameMatch) ([]Vertex, error) {
	if match.Value == "" {
		return nil, nil
	}

	var re *regexp.Regexp
	if match.Kind == MatchRegex {
		var err error
		re, err = regexp.Compile(match.Value)
		if err != nil {
			return nil, eris.Wrap(err, "graph: compile name pattern")
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Vertex
	for _, v := range m.vertices {
		if v.Label != label {
			continue
		}
		name := v.Properties[PropName]
		var hit bool
		switch match.Kind {
		case MatchExact:
			hit = strings.EqualFold(name, match.Value)
		case MatchContaining:
			hit = strings.Contains(strings.ToUpper(name), strings.ToUpper(match.Value))
		case MatchRegex:
			hit = re.MatchString(name)
		}
		if hit {
			out = append(out, *copyVertex(v))
		}
	}
	return out, nil
}

func (m *MemoryEngine) OutEdges(ctx context.Context, id string) ([]Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Step
	for _, e := range m.edges {
		if e.From != id {
			continue
		}
		other, ok := m.vertices[e.To]
		if !ok {
			continue
		}
		out = append(out, Step{Edge: *copyEdge(e), Other: *copyVertex(other)})
	}
	return out, nil
}

func (m *MemoryEngine) InEdges(ctx context.Context, id string) ([]Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Step
	for _, e := range m.edges {
		if e.To != id {
			continue
		}
		other, ok := m.vertices[e.From]
		if !ok {
			continue
		}
		out = append(out, Step{Edge: *copyEdge(e), Other: *copyVertex(other)})
	}
	return out, nil
}

func (m *MemoryEngine) FindEdge(ctx context.Context, src, label, dst string) (*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.edges {
		if e.From == src && e.To == dst && e.Label == label {
			return copyEdge(e), nil
		}
	}
	return nil, nil
}

func (m *MemoryEngine) AddEdge(ctx context.Context, src, label, dst string, props map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.vertices[src]; !ok {
		return "", eris.New("graph: edge source not found: " + src)
	}
	if _, ok := m.vertices[dst]; !ok {
		return "", eris.New("graph: edge destination not found: " + dst)
	}

	e := &Edge{
		ID:         m.newID("e"),
		Label:      label,
		From:       src,
		To:         dst,
		Properties: cloneProps(props),
	}
	m.edges[e.ID] = e
	return e.ID, nil
}

func (m *MemoryEngine) SetEdgeProperty(ctx context.Context, edgeID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.edges[edgeID]
	if !ok {
		return eris.New("graph: edge not found: " + edgeID)
	}
	e.Properties[key] = value
	return nil
}

func (m *MemoryEngine) InterestedPaths(ctx context.Context, id string, n int) ([]Path, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start, ok := m.vertices[id]
	if !ok {
		return nil, nil
	}

	var paths []Path
	if start.Properties[PropInterested] == InterestedYes {
		paths = append(paths, Path{Elements: []PathElement{{Vertex: copyVertex(start)}}})
	}

	visited := map[string]bool{id: true}
	current := Path{Elements: []PathElement{{Vertex: copyVertex(start)}}}
	m.walk(start, current, visited, n, &paths)

	return paths, nil
}

// walk enumerates simple paths depth-first, traversing edges in both
// directions, emitting every prefix that ends at an interested vertex.
func (m *MemoryEngine) walk(at *Vertex, current Path, visited map[string]bool, remaining int, paths *[]Path) {
	if remaining == 0 {
		return
	}
	for _, e := range m.edges {
		var nextID string
		switch at.ID {
		case e.From:
			nextID = e.To
		case e.To:
			nextID = e.From
		default:
			continue
		}
		if visited[nextID] {
			continue
		}
		next, ok := m.vertices[nextID]
		if !ok {
			continue
		}

		extended := Path{Elements: append(append([]PathElement{}, current.Elements...),
			PathElement{Edge: copyEdge(e)},
			PathElement{Vertex: copyVertex(next)},
		)}
		if next.Properties[PropInterested] == InterestedYes {
			*paths = append(*paths, extended)
		}

		visited[nextID] = true
		m.walk(next, extended, visited, remaining-1, paths)
		delete(visited, nextID)
	}
}

func (m *MemoryEngine) Reconnect(ctx context.Context) error { return nil }

func (m *MemoryEngine) Close() {}

func cloneProps(props map[string]string) map[string]string {
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func copyVertex(v *Vertex) *Vertex {
	return &Vertex{ID: v.ID, Label: v.Label, Properties: cloneProps(v.Properties)}
}

func copyEdge(e *Edge) *Edge {
	return &Edge{ID: e.ID, Label: e.Label, From: e.From, To: e.To, Properties: cloneProps(e.Properties)}
}
