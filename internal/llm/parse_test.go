package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/connections-insights/internal/resilience"
)

func TestTextWithinTags(t *testing.T) {
	out, err := TextWithinTags("preamble <results>{\"a\":1}</results> trailing", "results")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, out)
}

func TestTextWithinTagsUsesLastOpenTag(t *testing.T) {
	// Models sometimes echo the requested format before answering.
	in := "I will wrap the answer in <results> tags.\n<results>real</results>"
	out, err := TextWithinTags(in, "results")
	require.NoError(t, err)
	assert.Equal(t, "real", out)
}

func TestTextWithinTagsMalformed(t *testing.T) {
	_, err := TextWithinTags("no tags here", "results")
	assert.ErrorIs(t, err, resilience.ErrMalformedOutput)

	_, err = TextWithinTags("<results>unclosed", "results")
	assert.ErrorIs(t, err, resilience.ErrMalformedOutput)
}

func TestCleanJSONString(t *testing.T) {
	assert.Equal(t, `{"INDUSTRY": ""}`, CleanJSONString(`{"INDUSTRY": NULL}`))
	assert.Equal(t, `{"INDUSTRY": ""}`, CleanJSONString(`{"INDUSTRY": null}`))
	// Word boundary keeps larger tokens intact.
	assert.Equal(t, `{"STATUS": "ANNULLED"}`, CleanJSONString(`{"STATUS": "ANNULLED"}`))
}

func TestTranscript(t *testing.T) {
	got := Transcript([]Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	})
	assert.Equal(t, "user: hello\n\nassistant: hi", got)
}
