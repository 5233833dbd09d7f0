package graphwrite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/connections-insights/internal/graph"
	"github.com/sells-group/connections-insights/internal/llm"
	"github.com/sells-group/connections-insights/internal/model"
)

type fakeClient struct {
	responses []string
	calls     int
}

func (f *fakeClient) CreateMessage(_ context.Context, _ llm.MessageRequest) (*llm.MessageResponse, error) {
	r := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	f.calls++
	return &llm.MessageResponse{Text: r}, nil
}

func newWriter(engine graph.Engine, fake *fakeClient) *Writer {
	inv := &llm.Invoker{Client: fake, Model: "test", MaxTokens: 4000}
	return &Writer{Graph: graph.NewClient(engine, inv)}
}

func testBuckets() (model.DocumentSummary, Buckets) {
	summary := model.DocumentSummary{MainEntity: model.MainEntity{
		Name:     "ACME CORP",
		Industry: "MANUFACTURING",
		Source:   "REPORT.PDF",
	}}
	buckets := Buckets{
		Customers: map[string]model.CustomerRecord{
			"GLOBEX": {ProductsUsed: []string{"WIDGETPRO"}, Industry: []string{"RETAIL"}, Source: []string{"REPORT.PDF"}},
		},
		Suppliers: map[string]model.SupplierRecord{
			"INITECH": {Relationship: []string{"COMPONENT SUPPLIER"}, Source: []string{"REPORT.PDF"}},
		},
		Competitors: map[string]model.CompetitorRecord{
			"UMBRELLA": {CompetingIn: []string{"WIDGETS"}, Source: []string{"REPORT.PDF"}},
		},
		Directors: map[string]model.DirectorRecord{
			"JANE DOE": {
				Role: []string{"CEO"},
				OtherAssociations: []model.Association{
					{Role: "BOARD MEMBER", CompanyName: "HOOLI", Industry: "TECHNOLOGY"},
				},
				Source: []string{"REPORT.PDF"},
			},
		},
	}
	return summary, buckets
}

func TestWriteBuildsGraph(t *testing.T) {
	ctx := context.Background()
	engine := graph.NewMemoryEngine()
	fake := &fakeClient{responses: []string{"unused"}}

	summary, buckets := testBuckets()
	require.NoError(t, newWriter(engine, fake).Write(ctx, summary, buckets))

	// Fresh graph: every name is new, nothing to disambiguate.
	assert.Zero(t, fake.calls)

	vertices, err := engine.Vertices(ctx)
	require.NoError(t, err)
	// Main, customer, supplier, competitor, director, association.
	assert.Len(t, vertices, 6)

	byName := make(map[string]graph.Vertex)
	for _, v := range vertices {
		byName[v.Name()] = v
	}

	main, ok := byName["ACME CORP"]
	require.True(t, ok)
	assert.Equal(t, graph.LabelCompany, main.Label)
	assert.Equal(t, "MANUFACTURING", main.Properties[model.AttrIndustry])

	jane, ok := byName["JANE DOE"]
	require.True(t, ok)
	assert.Equal(t, graph.LabelPerson, jane.Label)

	custEdge, err := engine.FindEdge(ctx, byName["GLOBEX"].ID, model.EdgeCustomerOf, main.ID)
	require.NoError(t, err)
	require.NotNil(t, custEdge)
	assert.Equal(t, "WIDGETPRO", custEdge.Properties[model.PropProductsUsed])

	suppEdge, err := engine.FindEdge(ctx, byName["INITECH"].ID, model.EdgeSupplierPartnerOf, main.ID)
	require.NoError(t, err)
	require.NotNil(t, suppEdge)

	compEdge, err := engine.FindEdge(ctx, byName["UMBRELLA"].ID, model.EdgeCompetitorOf, main.ID)
	require.NoError(t, err)
	require.NotNil(t, compEdge)

	dirEdge, err := engine.FindEdge(ctx, jane.ID, model.EdgeDirectorOf, main.ID)
	require.NoError(t, err)
	require.NotNil(t, dirEdge)
	assert.Equal(t, "CEO", dirEdge.Properties[model.PropRole])

	assocEdge, err := engine.FindEdge(ctx, jane.ID, model.EdgeEmployeeDirectorOf, byName["HOOLI"].ID)
	require.NoError(t, err)
	require.NotNil(t, assocEdge)
	assert.Equal(t, "BOARD MEMBER", assocEdge.Properties[model.PropRole])
}

func TestWriteRerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	engine := graph.NewMemoryEngine()

	summary := model.DocumentSummary{MainEntity: model.MainEntity{Name: "ACME CORP", Industry: "MANUFACTURING"}}
	buckets := Buckets{
		Customers: map[string]model.CustomerRecord{
			"GLOBEX": {ProductsUsed: []string{"WIDGETPRO"}, Source: []string{"REPORT.PDF"}},
		},
	}

	require.NoError(t, newWriter(engine, &fakeClient{responses: []string{"unused"}}).Write(ctx, summary, buckets))

	// Second run resolves both names against the existing vertices; the
	// model confirms the matches in creation order.
	fake := &fakeClient{responses: []string{
		"<results>v-1</results>",
		"<results>v-2</results>",
	}}
	require.NoError(t, newWriter(engine, fake).Write(ctx, summary, buckets))

	vertices, err := engine.Vertices(ctx)
	require.NoError(t, err)
	assert.Len(t, vertices, 2)

	var mainID, custID string
	for _, v := range vertices {
		switch v.Name() {
		case "ACME CORP":
			mainID = v.ID
		case "GLOBEX":
			custID = v.ID
		}
	}
	edges, err := engine.OutEdges(ctx, custID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, mainID, edges[0].Edge.To)
	assert.Equal(t, "WIDGETPRO", edges[0].Edge.Properties[model.PropProductsUsed])
}

func TestWriteSkipsEmptyAssociationCompany(t *testing.T) {
	ctx := context.Background()
	engine := graph.NewMemoryEngine()

	summary := model.DocumentSummary{MainEntity: model.MainEntity{Name: "ACME CORP"}}
	buckets := Buckets{
		Directors: map[string]model.DirectorRecord{
			"JANE DOE": {
				Role:              []string{"CEO"},
				OtherAssociations: []model.Association{{Role: "ADVISOR", CompanyName: ""}},
				Source:            []string{"REPORT.PDF"},
			},
		},
	}

	require.NoError(t, newWriter(engine, &fakeClient{responses: []string{"unused"}}).Write(ctx, summary, buckets))

	vertices, err := engine.Vertices(ctx)
	require.NoError(t, err)
	assert.Len(t, vertices, 2)
}
