package chunker

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/connections-insights/internal/llm"
	"github.com/sells-group/connections-insights/internal/model"
	"github.com/sells-group/connections-insights/internal/resilience"
)

// MaxSummaryChunks caps the number of chunks joined into the summary
// prompt; one chunk is roughly one page.
const MaxSummaryChunks = 40

const summarySampleJSON = `
{
    "MAIN_ENTITY": {
        "NAME": "<FULL_NAME>",
        "ATTRIBUTES" : [
            { "INDUSTRY": "<ATTRIBUTE_VALUE>" },
            { "FOCUS_AREA": ["<ATTRIBUTE_VALUE>"] },
            { "REVENUE_GENERATING_INDUSTRIES": ["<ATTRIBUTE_VALUE>"] },
            { "SUMMARY_OF_BUSINESS_PERFORMANCE": "<ATTRIBUTE_VALUE>" },
            { "SUMMARY_OF_BUSINESS_STRATEGY": "<ATTRIBUTE_VALUE>" }
        ]
    }
}
`

const summaryPrompt = `
I will provide you with a document that which is a subset of a larger document.  Read it carefully as I will be asking you questions about it.

Here is the document:
<document>
{{TEXT}}
</document>

1) Identify the full name of the main entity discussed in <document> and any key qualitative attributes mentioned.  Leave array empty if you cannot identify any.

2) Identify the industry that the main entity is operating in.  Leave string value empty if you cannot identify any.

3) Identity the focus area that the main entity is focusing on.  Leave array empty if you cannot identify any.

4) Identify the revenue generating industries that the main entity is operating in.  Leave array empty if you cannot identify any.

5) Summarize the business performance of the main entity.  Leave string value empty if you cannot identify any.

6) Summarize the business strategy of the main entity.  Leave string value empty if you cannot identify any.

7) Print out the results in <results></results> tag using the following JSON format:
{{SAMPLE}}
`

// Summarizer derives the document-level main-entity summary.
type Summarizer struct {
	LLM *llm.Invoker
}

// Generate summarizes the document from its leading chunks. On an
// input-too-long rejection the chunk count shrinks to 75% and the call
// repeats; empty or malformed output is retried a bounded number of times.
// The returned summary is uppercased and carries SOURCE = the uppercase
// document basename.
func (s *Summarizer) Generate(ctx context.Context, chunks []model.Chunk, limit int, source string) (model.DocumentSummary, error) {
	if len(chunks) == 0 {
		return model.DocumentSummary{}, eris.New("chunker: no chunks to summarize")
	}
	if limit <= 0 {
		limit = MaxSummaryChunks
	}

	count := min(limit, len(chunks)-1)
	if count < 1 {
		count = 1
	}

	auditID := strings.ToUpper(source) + "->generate_document_summary"
	malformed := 0
	for {
		texts := make([]string, 0, count)
		for _, c := range chunks[:count] {
			texts = append(texts, c.Text)
		}

		prompt := strings.NewReplacer(
			"{{TEXT}}", strings.Join(texts, " "),
			"{{SAMPLE}}", summarySampleJSON,
		).Replace(summaryPrompt)

		completion, err := s.LLM.QueryPrompt(ctx, auditID, "", prompt)
		if err != nil {
			if resilience.IsInputTooLong(err) && count > 1 {
				count = count * 3 / 4
				if count < 1 {
					count = 1
				}
				zap.L().Info("summary input too long, shrinking",
					zap.String("source", source),
					zap.Int("chunks", count),
				)
				continue
			}
			return model.DocumentSummary{}, err
		}

		results, err := llm.TextWithinTags(completion, "results")
		if err != nil {
			malformed++
			if malformed > 3 {
				return model.DocumentSummary{}, err
			}
			zap.L().Warn("summary output malformed, retrying",
				zap.String("source", source),
				zap.Int("attempt", malformed),
			)
			continue
		}

		var summary model.DocumentSummary
		if err := json.Unmarshal([]byte(llm.CleanJSONString(results)), &summary); err != nil {
			malformed++
			if malformed > 3 {
				return model.DocumentSummary{}, eris.Wrap(resilience.ErrMalformedOutput, err.Error())
			}
			zap.L().Warn("summary JSON invalid, retrying",
				zap.String("source", source),
				zap.Int("attempt", malformed),
			)
			continue
		}

		summary = summary.Upper()
		summary.MainEntity.Source = strings.ToUpper(source)
		return summary, nil
	}
}
