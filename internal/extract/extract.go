// Package extract runs the per-chunk record extraction pass.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/connections-insights/internal/llm"
	"github.com/sells-group/connections-insights/internal/model"
	"github.com/sells-group/connections-insights/internal/resilience"
)

// maxParseRetries bounds re-asks when the completion is missing its result
// tag or fails to parse. A chunk that never parses is skipped, not fatal.
const maxParseRetries = 3

const recordSampleJSON = `
{
	"COMMERCIAL_PRODUCTS_OR_SERVICES": [
		{ "NAME": "<FULL_PRODUCT_NAME>" }
	],
	"CUSTOMERS": [
		{ "NAME": "<FULL_COMPANY_NAME>", "PRODUCTS_USED": "<MAPPED TO ONE OF THE ITEM FROM COMMERCIAL_PRODUCTS_OR_SERVICES>", "FOCUS_AREA": "<COMPANY_BUSINESS_FOCUS_AREA>", "INDUSTRY": "<INDUSTRY>" }
	],
	"SUPPLIERS_OR_PARTNERS": [
		{ "NAME": "<FULL_COMPANY_NAME>", "RELATIONSHIP": "<RELATIONSHIP_DETAILS_WITH_MAIN_ENTITY>", "FOCUS_AREA": "<COMPANY_BUSINESS_FOCUS_AREA>", "INDUSTRY": "<INDUSTRY>" }
	],
    "COMPETITORS": [
		{ "NAME": "<FULL_COMPANY_NAME>", "COMPETING_IN": "<PRODUCTS_OR_AREAS_IN_COMPETITION>", "FOCUS_AREA": "<COMPANY_BUSINESS_FOCUS_AREA>", "INDUSTRY": "<INDUSTRY>" }
	],
	"DIRECTORS" : [
		{ "NAME": "<FULL_PERSON_NAME_EXCLUDE_TITLES>", "ROLE": "<ROLE_IN_MAIN_ENTITY>", "OTHER_ASSOCIATIONS": [ {"ROLE": "<ROLE_IN_OTHER_ASSOCIATIONS>", "COMPANY_NAME" : "<COMPANY_NAMES>", "FOCUS_AREA": "<COMPANY_BUSINESS_FOCUS_AREA>", "INDUSTRY": "<INDUSTRY>" } ] }
	]
}
`

const recordPrompt = `
I will provide you with a document that which is a subset of a larger document which discusses about the main entity provided in <main_entity></main_entity> tags.
<main_entity>
{{SUMMARY}}
</main_entity>

Read this document carefully as I will be asking you questions about it.

Here is the document:
<document>
{{TEXT}}
</document>

Using the text enclosed within <document></document> tag, perform the following steps:
1) Identify named commercial products or services provided by the <main_entity>. Leave array empty if you cannot identify any.  For any values that you cannot determine, return empty string.

2) Identify customers of the <main_entity>. Leave array empty if you cannot identify any.  For any values that you cannot determine, return empty string.

3) Identify suppliers or partners of the <main_entity>. Leave array empty if you cannot identify any.  For any values that you cannot determine, return empty string.

4) Identify competitors of the <main_entity>. Leave array empty if you cannot identify any.  For any values that you cannot determine, return empty string.

5) Identify directors of the <main_entity> and their current / prior roles with other companies within <document></document>.  Leave array empty if you cannot identify any.  For any values that you cannot determine, return empty string.

6) Be as complete as you can in your idenfication of all information, and include any mentioned information even if they were mentioned to be in the past.

7) Print out the results in <results> tag using the following JSON format:
{{SAMPLE}}
`

// Extractor pulls the five record classes out of one chunk at a time.
type Extractor struct {
	LLM *llm.Invoker
}

// Extract asks the model for the chunk's records, guided by the short
// document summary. Every returned record is stamped with the document
// source. An unparseable completion is re-asked a bounded number of times;
// exhaustion returns an error so the caller can skip the chunk.
func (e *Extractor) Extract(ctx context.Context, chunk model.Chunk, summary model.DocumentSummary, source string) (model.ChunkRecords, error) {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return model.ChunkRecords{}, eris.Wrap(err, "extract: marshal summary")
	}

	prompt := strings.NewReplacer(
		"{{SUMMARY}}", string(summaryJSON),
		"{{TEXT}}", chunk.Text,
		"{{SAMPLE}}", recordSampleJSON,
	).Replace(recordPrompt)

	auditID := fmt.Sprintf("%s->extract_chunk_records->(pg%d-%d)",
		summary.MainEntity.Name, chunk.StartPage, chunk.EndPage)

	for attempt := 0; ; attempt++ {
		completion, err := e.LLM.QueryPrompt(ctx, auditID, "", prompt)
		if err != nil {
			return model.ChunkRecords{}, err
		}

		records, perr := parseRecords(completion)
		if perr == nil {
			records.StampSource(source)
			return records, nil
		}
		if attempt >= maxParseRetries {
			return model.ChunkRecords{}, eris.Wrapf(perr, "extract: chunk pages %d-%d", chunk.StartPage, chunk.EndPage)
		}
		zap.L().Warn("chunk extraction output malformed, retrying",
			zap.String("operation", auditID),
			zap.Int("attempt", attempt+1),
		)
	}
}

func parseRecords(completion string) (model.ChunkRecords, error) {
	results, err := llm.TextWithinTags(completion, "results")
	if err != nil {
		return model.ChunkRecords{}, err
	}
	var records model.ChunkRecords
	if err := json.Unmarshal([]byte(llm.CleanJSONString(results)), &records); err != nil {
		return model.ChunkRecords{}, eris.Wrap(resilience.ErrMalformedOutput, err.Error())
	}
	return records, nil
}
