// Package filter drops non-company and non-person rows from the
// consolidated buckets using an LLM classification pass.
package filter

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/connections-insights/internal/llm"
	"github.com/sells-group/connections-insights/internal/model"
	"github.com/sells-group/connections-insights/internal/resilience"
)

// ShardSize caps how many keys go into one classification call; larger
// buckets are split and the kept arrays unioned.
const ShardSize = 100

// maxParseRetries bounds re-asks of a shard whose completion fails to parse.
const maxParseRetries = 3

const bucketJSONFormat = `{
	"<COMPANY_NAME>": { "<ATTRIBUTE_NAME>": "<ATTRIBUTE_VALUE>" },
	...
}`

const companyPrompt = `
I will provide you with a JSON object of companies who are {{RELATION}} {{MAIN_ENTITY}}.
The JSON object is in this format:
{{FORMAT}}

Here is the JSON object of companies:
<{{TAG}}>
{{ITEMS}}
</{{TAG}}>

Perform the following steps:
1. Categorise each item in <{{TAG}}> into companies/conglomerates/organisations vs others.
2. Keep only companies/conglomerates/organisations and remove every other categories.
3. Some of the attributes may be missing due to lack of information in the source document but this does not necessarily mean that an item is not a company/conglomerate/organisation.
4. If there are some indication that an item is a company/conglomerate/organisation even though there are limited information, you may include it as an company/conglomerate/organisation.
5. Assess each item individually and print your explanation within <explanation> tags.
6. Print an array containing only names of companies/conglomerates/organisations between <{{TAG}}></{{TAG}}> tags.  E.g. [ "COMPANY" ]
`

const directorsJSONFormat = `{
	"<PERSON_NAME>": { "<ATTRIBUTE_NAME>": "<ATTRIBUTE_VALUE>" },
	...
}`

const directorsPrompt = `
I will provide you with a JSON object of people who works for {{MAIN_ENTITY}}.
The JSON object is in this format:
{{FORMAT}}

Here is the JSON object of people:
<people>
{{ITEMS}}
</people>

Some of the people listed could be named differently but are actually referring to the same person.
Review through the people in <people> and perform the following steps:
1. Identify duplicates by inferring from the similarity of their names, acronyms, and also from the roles they perform.
2. Among each group of duplicates, pick the most complete name to keep and remove the others.
3. Categorise each remaining item into actual people vs others, and keep only actual people (at least with first name and last name).
4. Assess each item individually and print your explanation within <explanation> tags.
5. Print an array containing only names of actual people between <people></people> tags.  E.g. [ "PERSON_NAME" ]
6. You are to work with only the information provided in the context.
`

// Filter classifies consolidated bucket keys as real entities.
type Filter struct {
	LLM *llm.Invoker
	// ShardSize overrides the default shard cap when positive.
	ShardSize int
}

func (f *Filter) shardSize() int {
	if f.ShardSize > 0 {
		return f.ShardSize
	}
	return ShardSize
}

// Customers keeps only the customer keys classified as real organisations.
func (f *Filter) Customers(ctx context.Context, raw map[string]model.CustomerRecord, mainEntity string) (map[string]model.CustomerRecord, error) {
	return filterBucket(ctx, f, raw, bucketRequest{
		mainEntity: mainEntity,
		relation:   "customers of",
		tag:        "customers",
		audit:      mainEntity + "->filter_customers",
	})
}

// Suppliers keeps only the supplier/partner keys classified as real
// organisations.
func (f *Filter) Suppliers(ctx context.Context, raw map[string]model.SupplierRecord, mainEntity string) (map[string]model.SupplierRecord, error) {
	return filterBucket(ctx, f, raw, bucketRequest{
		mainEntity: mainEntity,
		relation:   "suppliers or partners of",
		tag:        "suppliers_or_partners",
		audit:      mainEntity + "->filter_suppliers",
	})
}

// Competitors keeps only the competitor keys classified as real
// organisations.
func (f *Filter) Competitors(ctx context.Context, raw map[string]model.CompetitorRecord, mainEntity string) (map[string]model.CompetitorRecord, error) {
	return filterBucket(ctx, f, raw, bucketRequest{
		mainEntity: mainEntity,
		relation:   "competitors of",
		tag:        "competitors",
		audit:      mainEntity + "->filter_competitors",
	})
}

// Directors keeps only keys classified as real people, after collapsing
// name variants of the same person to the most complete form.
func (f *Filter) Directors(ctx context.Context, raw map[string]model.DirectorRecord, mainEntity string) (map[string]model.DirectorRecord, error) {
	return filterBucket(ctx, f, raw, bucketRequest{
		mainEntity: mainEntity,
		tag:        "people",
		audit:      mainEntity + "->filter_directors",
		directors:  true,
	})
}

type bucketRequest struct {
	mainEntity string
	relation   string
	tag        string
	audit      string
	directors  bool
}

func filterBucket[T any](ctx context.Context, f *Filter, raw map[string]T, req bucketRequest) (map[string]T, error) {
	final := make(map[string]T)
	if len(raw) == 0 {
		return final, nil
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	size := f.shardSize()
	var kept []string
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		shard := make(map[string]T, end-start)
		for _, k := range keys[start:end] {
			shard[k] = raw[k]
		}
		items, err := json.Marshal(shard)
		if err != nil {
			return nil, eris.Wrap(err, "filter: marshal shard")
		}
		names, err := f.classifyShard(ctx, items, req)
		if err != nil {
			return nil, err
		}
		kept = append(kept, names...)
	}

	for _, name := range kept {
		record, ok := raw[name]
		if !ok {
			// The model invented a key outside the input set.
			zap.L().Warn("filter returned unknown key, dropping",
				zap.String("operation", req.audit),
				zap.String("name", name),
			)
			continue
		}
		final[name] = record
	}
	return final, nil
}

func (f *Filter) classifyShard(ctx context.Context, items []byte, req bucketRequest) ([]string, error) {
	var prompt string
	if req.directors {
		prompt = strings.NewReplacer(
			"{{MAIN_ENTITY}}", req.mainEntity,
			"{{FORMAT}}", directorsJSONFormat,
			"{{ITEMS}}", string(items),
		).Replace(directorsPrompt)
	} else {
		prompt = strings.NewReplacer(
			"{{RELATION}}", req.relation,
			"{{MAIN_ENTITY}}", req.mainEntity,
			"{{FORMAT}}", bucketJSONFormat,
			"{{ITEMS}}", string(items),
			"{{TAG}}", req.tag,
		).Replace(companyPrompt)
	}

	for attempt := 0; ; attempt++ {
		completion, err := f.LLM.QueryPrompt(ctx, req.audit, "", prompt)
		if err != nil {
			return nil, err
		}

		names, perr := parseNameArray(completion, req.tag)
		if perr == nil {
			return names, nil
		}
		if attempt >= maxParseRetries {
			return nil, eris.Wrap(perr, "filter: "+req.audit)
		}
		zap.L().Warn("filter output malformed, retrying",
			zap.String("operation", req.audit),
			zap.Int("attempt", attempt+1),
		)
	}
}

func parseNameArray(completion, tag string) ([]string, error) {
	results, err := llm.TextWithinTags(completion, tag)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal([]byte(llm.CleanJSONString(strings.TrimSpace(results))), &names); err != nil {
		return nil, eris.Wrap(resilience.ErrMalformedOutput, err.Error())
	}
	return names, nil
}
