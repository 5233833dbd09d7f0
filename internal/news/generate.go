package news

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/connections-insights/internal/blob"
	"github.com/sells-group/connections-insights/internal/graph"
	"github.com/sells-group/connections-insights/internal/llm"
	"github.com/sells-group/connections-insights/internal/model"
	"github.com/sells-group/connections-insights/internal/store"
)

const generatePrompt = `
You are a random financial news generator that generates long form financial news articles.

The date of the news article is: {{DATE}}

{{ENTITIES}}

Print the generated financial news article in the following format:
<news>
<date></date>
<title></title>
<text>[THIS IS A FICTIONAL NEWS FOR TESTING PURPOSES ONLY] </text>
<url>N/A</url>
</news>
`

const generateEntitiesPrompt = `
You are to mention the following entities and generate news according to their given sentiment.
%s
`

// Generator produces synthetic articles mentioning real graph entities and
// drops them onto the news path, for exercising the system without a feed.
type Generator struct {
	Graph  *graph.Client
	LLM    *llm.Invoker
	Blobs  blob.Store
	Store  store.Store
	Bucket string
}

type generatedEntity struct {
	Name      string `json:"NAME"`
	Label     string `json:"LABEL"`
	Sentiment string `json:"SENTIMENT"`
}

// Generate writes count fictional articles to the news bucket and enqueues
// a blob-created notification for each. Roughly 60% of the articles mention
// known entities so some paths light up.
func (g *Generator) Generate(ctx context.Context, count int) error {
	entities, err := g.Graph.Entities(ctx)
	if err != nil {
		return eris.Wrap(err, "newsgen: list entities")
	}

	for i := 0; i < count; i++ {
		date := time.Now().AddDate(0, 0, -rand.IntN(100)).Format("02 Jan 2006")

		var mentioned []generatedEntity
		if len(entities) > 0 && rand.Float64() < 0.6 {
			for range 1 + rand.IntN(3) {
				e := entities[rand.IntN(len(entities))]
				sentiment := model.ImpactPositive
				if rand.Float64() < 0.5 {
					sentiment = model.ImpactNegative
				}
				mentioned = append(mentioned, generatedEntity{Name: e.Name, Label: e.Label, Sentiment: sentiment})
			}
		}

		article, err := g.generateOne(ctx, date, mentioned)
		if err != nil {
			return err
		}

		key := "news_" + uuid.NewString() + ".txt"
		if err := g.Blobs.Put(ctx, g.Bucket, key, []byte(article)); err != nil {
			return eris.Wrap(err, "newsgen: write article")
		}
		if err := g.enqueue(ctx, key); err != nil {
			return err
		}
		zap.L().Info("newsgen: article generated",
			zap.String("key", key), zap.Int("entities", len(mentioned)))
	}
	return nil
}

func (g *Generator) generateOne(ctx context.Context, date string, mentioned []generatedEntity) (string, error) {
	entitiesSection := ""
	if len(mentioned) > 0 {
		encoded, err := json.Marshal(mentioned)
		if err != nil {
			return "", eris.Wrap(err, "newsgen: marshal entities")
		}
		entitiesSection = fmt.Sprintf(generateEntitiesPrompt, encoded)
	}

	prompt := strings.NewReplacer(
		"{{DATE}}", date,
		"{{ENTITIES}}", entitiesSection,
	).Replace(generatePrompt)

	completion, err := g.LLM.QueryPrompt(ctx, "newsgen->generate_article", "", prompt)
	if err != nil {
		return "", err
	}
	return llm.TextWithinTags(completion, "news")
}

func (g *Generator) enqueue(ctx context.Context, key string) error {
	body, err := json.Marshal(model.NewBlobNotification(g.Bucket, key))
	if err != nil {
		return eris.Wrap(err, "newsgen: marshal notification")
	}
	if _, err := g.Store.Enqueue(ctx, store.NewsQueue, "", string(body)); err != nil {
		return eris.Wrap(err, "newsgen: enqueue notification")
	}
	return nil
}
