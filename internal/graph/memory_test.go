package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedVertex(t *testing.T, m *MemoryEngine, label, name string, extra map[string]string) string {
	t.Helper()
	props := map[string]string{PropName: name}
	for k, v := range extra {
		props[k] = v
	}
	id, err := m.AddVertex(context.Background(), label, props)
	require.NoError(t, err)
	return id
}

func TestMemoryVertexLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryEngine()

	id := seedVertex(t, m, LabelCompany, "ACME", map[string]string{"INDUSTRY": "WIDGETS"})

	v, err := m.VertexByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "ACME", v.Name())
	assert.Equal(t, "WIDGETS", v.Properties["INDUSTRY"])

	require.NoError(t, m.SetVertexProperty(ctx, id, PropInterested, InterestedYes))
	v, err = m.VertexByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, v.Interested())

	missing, err := m.VertexByID(ctx, "v-999")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = m.AddVertex(ctx, LabelCompany, nil)
	assert.Error(t, err, "NAME is required")
}

func TestMemoryFindByName(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryEngine()
	seedVertex(t, m, LabelCompany, "ADVANCED MICRO DEVICES", nil)
	seedVertex(t, m, LabelCompany, "ACME", nil)
	seedVertex(t, m, LabelPerson, "ACME", nil)

	exact, err := m.FindByName(ctx, LabelCompany, NameMatch{Kind: MatchExact, Value: "acme"})
	require.NoError(t, err)
	require.Len(t, exact, 1, "exact match is case-insensitive and label-scoped")

	containing, err := m.FindByName(ctx, LabelCompany, NameMatch{Kind: MatchContaining, Value: "MICRO"})
	require.NoError(t, err)
	require.Len(t, containing, 1)

	regex, err := m.FindByName(ctx, LabelCompany, NameMatch{Kind: MatchRegex, Value: AcronymPattern("AMD")})
	require.NoError(t, err)
	require.Len(t, regex, 1)
	assert.Equal(t, "ADVANCED MICRO DEVICES", regex[0].Name())

	empty, err := m.FindByName(ctx, LabelCompany, NameMatch{Kind: MatchExact, Value: ""})
	require.NoError(t, err)
	assert.Empty(t, empty, "empty lookup value matches nothing")
}

func TestMemoryEdges(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryEngine()
	a := seedVertex(t, m, LabelCompany, "A", nil)
	b := seedVertex(t, m, LabelCompany, "B", nil)

	eid, err := m.AddEdge(ctx, a, "is a customer of", b, map[string]string{"PRODUCTS_OR_SERVICES_USED": "WIDGETS"})
	require.NoError(t, err)

	found, err := m.FindEdge(ctx, a, "is a customer of", b)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, eid, found.ID)

	reverse, err := m.FindEdge(ctx, b, "is a customer of", a)
	require.NoError(t, err)
	assert.Nil(t, reverse, "edges are directed")

	require.NoError(t, m.SetEdgeProperty(ctx, eid, "PRODUCTS_OR_SERVICES_USED", "WIDGETS,GADGETS"))
	found, err = m.FindEdge(ctx, a, "is a customer of", b)
	require.NoError(t, err)
	assert.Equal(t, "WIDGETS,GADGETS", found.Properties["PRODUCTS_OR_SERVICES_USED"])

	outSteps, err := m.OutEdges(ctx, a)
	require.NoError(t, err)
	require.Len(t, outSteps, 1)
	assert.Equal(t, "B", outSteps[0].Other.Name())

	inSteps, err := m.InEdges(ctx, b)
	require.NoError(t, err)
	require.Len(t, inSteps, 1)
	assert.Equal(t, "A", inSteps[0].Other.Name())

	_, err = m.AddEdge(ctx, a, "x", "v-999", nil)
	assert.Error(t, err)
}

func TestMemoryInterestedPathsIncludesSelf(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryEngine()
	a := seedVertex(t, m, LabelCompany, "A", map[string]string{PropInterested: InterestedYes})

	paths, err := m.InterestedPaths(ctx, a, 0)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Len(t, paths[0].Elements, 1)
	assert.Equal(t, "A", paths[0].Elements[0].Vertex.Name())
}

func TestMemoryInterestedPathsNHop(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryEngine()
	// A -> B -> C(interested), D(interested) -> A
	a := seedVertex(t, m, LabelCompany, "A", nil)
	b := seedVertex(t, m, LabelCompany, "B", nil)
	c := seedVertex(t, m, LabelCompany, "C", map[string]string{PropInterested: InterestedYes})
	d := seedVertex(t, m, LabelCompany, "D", map[string]string{PropInterested: InterestedYes})

	_, err := m.AddEdge(ctx, a, "is a supplier/partner of", b, nil)
	require.NoError(t, err)
	_, err = m.AddEdge(ctx, b, "is a supplier/partner of", c, nil)
	require.NoError(t, err)
	_, err = m.AddEdge(ctx, d, "is a customer of", a, nil)
	require.NoError(t, err)

	one, err := m.InterestedPaths(ctx, a, 1)
	require.NoError(t, err)
	require.Len(t, one, 1, "only D is reachable in one hop")
	assert.Equal(t, "D", one[0].Terminal().Name())

	two, err := m.InterestedPaths(ctx, a, 2)
	require.NoError(t, err)
	require.Len(t, two, 2, "C becomes reachable at two hops")

	names := map[string]bool{}
	for _, p := range two {
		names[p.Terminal().Name()] = true
	}
	assert.True(t, names["C"])
	assert.True(t, names["D"])
}

func TestMemoryInterestedPathsAreSimple(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryEngine()
	a := seedVertex(t, m, LabelCompany, "A", map[string]string{PropInterested: InterestedYes})
	b := seedVertex(t, m, LabelCompany, "B", nil)
	_, err := m.AddEdge(ctx, a, "is a competitor of", b, nil)
	require.NoError(t, err)

	// A bounce back to A would revisit the start vertex.
	paths, err := m.InterestedPaths(ctx, a, 4)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Len(t, paths[0].Elements, 1, "only the self path, never A-B-A")
}
