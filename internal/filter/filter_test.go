package filter

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/connections-insights/internal/llm"
	"github.com/sells-group/connections-insights/internal/model"
)

type fakeClient struct {
	responses []string
	prompts   []string
}

func (f *fakeClient) CreateMessage(_ context.Context, req llm.MessageRequest) (*llm.MessageResponse, error) {
	f.prompts = append(f.prompts, req.Messages[len(req.Messages)-1].Content)
	r := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return &llm.MessageResponse{Text: r}, nil
}

func newFilter(fake *fakeClient) *Filter {
	return &Filter{LLM: &llm.Invoker{Client: fake, Model: "test", MaxTokens: 4000}}
}

func TestFilterCustomersDropsNonCompanies(t *testing.T) {
	raw := map[string]model.CustomerRecord{
		"GLOBEX":   {Industry: []string{"RETAIL"}},
		"THE TEAM": {},
	}
	fake := &fakeClient{responses: []string{
		`<explanation>GLOBEX is a company; THE TEAM is not.</explanation>
<customers>[ "GLOBEX" ]</customers>`,
	}}

	final, err := newFilter(fake).Customers(context.Background(), raw, "ACME CORP")
	require.NoError(t, err)

	assert.Len(t, final, 1)
	assert.Contains(t, final, "GLOBEX")
	assert.NotContains(t, final, "THE TEAM")
	assert.Equal(t, []string{"RETAIL"}, final["GLOBEX"].Industry)
}

func TestFilterDropsHallucinatedKeys(t *testing.T) {
	raw := map[string]model.CompetitorRecord{"INITECH": {}}
	fake := &fakeClient{responses: []string{
		`<competitors>[ "INITECH", "MADE UP CORP" ]</competitors>`,
	}}

	final, err := newFilter(fake).Competitors(context.Background(), raw, "ACME CORP")
	require.NoError(t, err)

	assert.Len(t, final, 1)
	assert.Contains(t, final, "INITECH")
}

func TestFilterEmptyBucketSkipsModel(t *testing.T) {
	fake := &fakeClient{responses: []string{"unused"}}

	final, err := newFilter(fake).Suppliers(context.Background(), nil, "ACME CORP")
	require.NoError(t, err)

	assert.Empty(t, final)
	assert.Empty(t, fake.prompts)
}

func TestFilterShardsLargeBuckets(t *testing.T) {
	raw := make(map[string]model.SupplierRecord, 150)
	for i := 0; i < 150; i++ {
		raw[fmt.Sprintf("SUPPLIER %03d", i)] = model.SupplierRecord{}
	}
	// Each shard keeps its first key. Keys are sorted, so shard one starts
	// at 000 and shard two at 100.
	fake := &fakeClient{responses: []string{
		`<suppliers_or_partners>[ "SUPPLIER 000" ]</suppliers_or_partners>`,
		`<suppliers_or_partners>[ "SUPPLIER 100" ]</suppliers_or_partners>`,
	}}

	final, err := newFilter(fake).Suppliers(context.Background(), raw, "ACME CORP")
	require.NoError(t, err)

	require.Len(t, fake.prompts, 2)
	assert.Contains(t, fake.prompts[0], "SUPPLIER 099")
	assert.NotContains(t, fake.prompts[0], "SUPPLIER 100")
	assert.Contains(t, fake.prompts[1], "SUPPLIER 100")

	assert.Len(t, final, 2)
	assert.Contains(t, final, "SUPPLIER 000")
	assert.Contains(t, final, "SUPPLIER 100")
}

func TestFilterDirectorsDedupAndClassify(t *testing.T) {
	raw := map[string]model.DirectorRecord{
		"JANE DOE":          {Role: []string{"CEO"}},
		"J DOE":             {Role: []string{"CEO"}},
		"OFFICE OF THE CEO": {},
	}
	fake := &fakeClient{responses: []string{
		`<explanation>J DOE duplicates JANE DOE; OFFICE OF THE CEO is not a person.</explanation>
<people>[ "JANE DOE" ]</people>`,
	}}

	final, err := newFilter(fake).Directors(context.Background(), raw, "ACME CORP")
	require.NoError(t, err)

	require.Len(t, fake.prompts, 1)
	assert.Contains(t, fake.prompts[0], "could be named differently")

	assert.Len(t, final, 1)
	assert.Contains(t, final, "JANE DOE")
	assert.Equal(t, []string{"CEO"}, final["JANE DOE"].Role)
}

func TestFilterRetriesMalformed(t *testing.T) {
	raw := map[string]model.CustomerRecord{"GLOBEX": {}}
	fake := &fakeClient{responses: []string{
		"no tags",
		`<customers>[ "GLOBEX" ]</customers>`,
	}}

	final, err := newFilter(fake).Customers(context.Background(), raw, "ACME CORP")
	require.NoError(t, err)
	assert.Len(t, fake.prompts, 2)
	assert.Contains(t, final, "GLOBEX")
}

func TestFilterMalformedExhausted(t *testing.T) {
	raw := map[string]model.CustomerRecord{"GLOBEX": {}}
	fake := &fakeClient{responses: []string{"never valid"}}

	_, err := newFilter(fake).Customers(context.Background(), raw, "ACME CORP")
	require.Error(t, err)
	assert.Len(t, fake.prompts, 4)
	assert.True(t, strings.Contains(err.Error(), "filter"))
}
