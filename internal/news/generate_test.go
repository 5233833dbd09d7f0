package news

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/connections-insights/internal/model"
	"github.com/sells-group/connections-insights/internal/store"
)

func TestGeneratorWritesArticleAndEnqueuesNotification(t *testing.T) {
	ctx := context.Background()
	p, _, blobs := newProcessor(t, &routingLLM{})

	g := &Generator{
		Graph:  p.Graph,
		LLM:    p.LLM,
		Blobs:  blobs,
		Store:  p.Store,
		Bucket: "news",
	}
	require.NoError(t, g.Generate(ctx, 2))

	for range 2 {
		msg, err := p.Store.Receive(ctx, store.NewsQueue, time.Minute, DefaultMaxReceives)
		require.NoError(t, err)
		require.NotNil(t, msg)

		var note model.BlobNotification
		require.NoError(t, json.Unmarshal([]byte(msg.Body), &note))
		require.Len(t, note.Records, 1)
		assert.Equal(t, "news", note.Records[0].S3.Bucket.Name)

		data, err := blobs.Get(ctx, "news", note.Records[0].S3.Object.Key)
		require.NoError(t, err)
		assert.Contains(t, string(data), "<title>Markets rally</title>")
		assert.True(t, strings.HasPrefix(note.Records[0].S3.Object.Key, "news_"))
	}
}
