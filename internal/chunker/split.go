// Package chunker partitions page-extracted document text into token-bounded
// chunks and derives the document-level summary.
package chunker

import (
	"strings"

	"github.com/google/uuid"

	"github.com/sells-group/connections-insights/internal/model"
)

// MaxTokensPerChunk is the default chunk budget; one word estimates one
// token.
const MaxTokensPerChunk = 500

// NormalizePage flattens page text: non-breaking spaces and newlines become
// spaces, runs of whitespace collapse.
func NormalizePage(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.Join(strings.Fields(text), " ")
}

// EstimateTokens estimates the token count of normalized text by word count.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}

// SplitPages greedily accumulates whole pages into chunks of at most
// maxTokens estimated tokens. A single page larger than the budget becomes
// its own chunk; chunks are page-contiguous and cover the document exactly
// once.
func SplitPages(pages []string, maxTokens int) []model.Chunk {
	if maxTokens <= 0 {
		maxTokens = MaxTokensPerChunk
	}

	var chunks []model.Chunk
	var text strings.Builder
	tokens := 0
	startPage := 1

	flush := func(endPage int) {
		chunks = append(chunks, model.Chunk{
			ID:        uuid.New().String(),
			StartPage: startPage,
			EndPage:   endPage,
			Text:      text.String(),
		})
	}

	for i, raw := range pages {
		page := i + 1
		pageText := NormalizePage(raw)
		pageTokens := EstimateTokens(pageText)

		if text.Len() > 0 && tokens+pageTokens > maxTokens {
			flush(page - 1)
			startPage = page
			text.Reset()
			tokens = 0
		}

		text.WriteString(pageText)
		text.WriteString("\n")
		tokens += pageTokens
	}

	if len(pages) > 0 {
		flush(len(pages))
	}
	return chunks
}
