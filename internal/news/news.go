// Package news processes incoming articles: extract mentioned entities,
// walk the graph for connection paths to interested entities, and score the
// impact along each path. The path degrades instead of failing: an
// unresolved model call yields a neutral, thinner record rather than a
// redelivered message.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
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

const entitiesSampleJSON = `
[{
	"NAME": "<COMPANY_OR_PERSON_FULL_NAME>",
	"LABEL": "<COMPANY_OR_PERSON>",
	"INDUSTRY": "<INDUSTRY_OF_COMPANY_OR_INDUSTRY_THE_PERSON_WORKED_IN>",
	"SENTIMENT": "<POSITIVE_OR_NEUTRAL_OR_NEGATIVE>",
	"SENTIMENT_EXPLANATION": "<EXPLANATION_OF_SENTIMENT>",
	"RELATIONSHIPS": [
		{ "RELATED_ENTITY": "<RELATED_COMPANY_OR_PERSON_FULL_NAME>", "LABEL": "<COMPANY_OR_PERSON>", "RELATIONSHIP": "<ROLE_OF_RELATIONSHIP>" }
	]
}]
`

const entitiesPrompt = `
Here is a news article:
<article>
{{ARTICLE}}
</article>

Extract out any companies or people mentioned in the article, the sentiment of the article towards them with a short explanation, and their relationships with any other entities mentioned in the article.
Return empty string if any value is not available.
Print them out in a JSON array in the following format within <entities></entities> tag:
{{SAMPLE}}
`

const impactPrompt = `
Here is a news article:
<article>
{{ARTICLE}}
</article>

The article mentions {{NAME}} with a {{SENTIMENT}} sentiment.

{{NAME}} is connected to {{INTERESTED_ENTITY}} through this relationship path:
<path>
{{PATH}}
</path>

Assess how this news is likely to impact {{INTERESTED_ENTITY}} through the relationship path.

Print your assessment in the following JSON format within <impact></impact> tag:
{ "IMPACT": "<POSITIVE_OR_NEUTRAL_OR_NEGATIVE>", "ASSESSMENT": "<EXPLANATION_OF_IMPACT>" }
`

// Processor runs the news path end to end for one article at a time.
type Processor struct {
	Store store.Store
	Blobs blob.Store
	Graph *graph.Client
	LLM   *llm.Invoker
}

// HandleMessage dispatches one news queue message: either a blob-created
// notification or a bare news id requesting a reprocess. The message is
// acked only once its work commits; a failed blob read or store write leaves
// it claimed, so the visibility timeout redelivers and the receive budget
// eventually dead-letters it. Unknown bodies are acked silently; queue tests
// and misrouted events must not pile up.
func (p *Processor) HandleMessage(ctx context.Context, msg *model.QueueMessage) error {
	var note model.BlobNotification
	if err := json.Unmarshal([]byte(msg.Body), &note); err == nil && len(note.Records) > 0 {
		bucket := note.Records[0].S3.Bucket.Name
		key := note.Records[0].S3.Object.Key
		if decoded, derr := url.QueryUnescape(key); derr == nil {
			key = decoded
		}
		if err := p.processBlob(ctx, bucket, key); err != nil {
			return err
		}
		return p.ack(ctx, msg)
	}

	id := strings.TrimSpace(msg.Body)
	if id == "" || strings.HasPrefix(id, "{") {
		zap.L().Info("news: ignoring unknown message", zap.String("message", msg.ID))
		return p.ack(ctx, msg)
	}
	if err := p.reprocess(ctx, id); err != nil {
		return err
	}
	return p.ack(ctx, msg)
}

func (p *Processor) ack(ctx context.Context, msg *model.QueueMessage) error {
	if err := p.Store.DeleteMessage(ctx, store.NewsQueue, msg.ReceiptHandle); err != nil {
		return eris.Wrapf(err, "news: delete message %s", msg.ID)
	}
	return nil
}

func (p *Processor) processBlob(ctx context.Context, bucket, key string) error {
	data, err := p.Blobs.Get(ctx, bucket, key)
	if err != nil {
		return eris.Wrapf(err, "news: read article %s/%s", bucket, key)
	}

	if err := p.ProcessArticle(ctx, string(data)); err != nil {
		return err
	}

	if err := p.Blobs.Delete(ctx, bucket, key); err != nil {
		zap.L().Warn("news: delete article blob failed",
			zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
	}
	return nil
}

// reprocess rebuilds the article envelope from a stored record, runs it
// through the path again, and drops the original.
func (p *Processor) reprocess(ctx context.Context, id string) error {
	rec, err := p.Store.GetNews(ctx, id)
	if err != nil {
		return eris.Wrapf(err, "news: load record %s", id)
	}
	if rec == nil {
		zap.L().Info("news: reprocess id not found, skipping", zap.String("id", id))
		return nil
	}

	article := fmt.Sprintf("<date>%s</date>\n<title>%s</title>\n<text>%s</text>\n<url>%s</url>",
		rec.Date, rec.Title, rec.Text, rec.URL)
	if err := p.ProcessArticle(ctx, article); err != nil {
		return err
	}
	return p.Store.DeleteNews(ctx, id)
}

// ProcessArticle extracts entities, enumerates their connection paths to
// interested entities, scores each path, and persists the record.
func (p *Processor) ProcessArticle(ctx context.Context, article string) error {
	entities := p.extractEntities(ctx, article)

	n, err := p.Store.GetN(ctx)
	if err != nil {
		zap.L().Warn("news: read N failed, using default", zap.Error(err))
		n = store.DefaultN
	}

	var paths []model.EntityPaths
	interested := map[string]bool{}
	for _, entity := range entities {
		if entity.Name == "" {
			continue
		}
		entityPaths := p.entityPaths(ctx, article, entity, n)
		if len(entityPaths.Paths) == 0 {
			continue
		}
		paths = append(paths, entityPaths)
		for _, pa := range entityPaths.Paths {
			if pa.InterestedEntity != "" {
				interested[pa.InterestedEntity] = true
			}
		}
	}

	rec := model.NewsRecord{
		ID:         uuid.NewString(),
		Date:       tagOrEmpty(article, "date"),
		Title:      tagOrEmpty(article, "title"),
		Text:       tagOrEmpty(article, "text"),
		URL:        tagOrEmpty(article, "url"),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Interested: graph.InterestedNo,
		Paths:      paths,
	}
	if len(paths) > 0 {
		rec.Interested = graph.InterestedYes
	}
	for name := range interested {
		rec.InterestedEntities = append(rec.InterestedEntities, name)
	}

	if err := p.Store.SaveNews(ctx, rec); err != nil {
		return eris.Wrap(err, "news: save record")
	}
	zap.L().Info("news: article processed",
		zap.String("id", rec.ID),
		zap.String("title", rec.Title),
		zap.String("interested", rec.Interested),
		zap.Int("entities_with_paths", len(paths)),
	)
	return nil
}

// extractEntities asks the model for the article's entities. Exhausted
// retries degrade to an empty extraction.
func (p *Processor) extractEntities(ctx context.Context, article string) []model.ArticleEntity {
	prompt := strings.NewReplacer(
		"{{ARTICLE}}", article,
		"{{SAMPLE}}", entitiesSampleJSON,
	).Replace(entitiesPrompt)

	completion, err := p.LLM.QueryPrompt(ctx, "news->extract_entities", "", prompt)
	if err != nil {
		zap.L().Warn("news: entity extraction degraded to empty", zap.Error(err))
		return nil
	}

	raw, err := llm.TextWithinTags(completion, "entities")
	if err != nil {
		zap.L().Warn("news: entity extraction missing tag", zap.Error(err))
		return nil
	}

	var entities []model.ArticleEntity
	if err := json.Unmarshal([]byte(llm.CleanJSONString(strings.TrimSpace(raw))), &entities); err != nil {
		zap.L().Warn("news: entity extraction unparseable", zap.Error(err))
		return nil
	}

	for i := range entities {
		entities[i].Name = strings.ToUpper(strings.TrimSpace(entities[i].Name))
		entities[i].Industry = strings.ToUpper(strings.TrimSpace(entities[i].Industry))
		entities[i].Sentiment = normalizeSentiment(entities[i].Sentiment)
		if strings.ToUpper(entities[i].Label) == graph.LabelPerson {
			entities[i].Label = graph.LabelPerson
		} else {
			entities[i].Label = graph.LabelCompany
		}
	}
	return entities
}

// entityPaths resolves one entity and scores every path it has to an
// interested entity.
func (p *Processor) entityPaths(ctx context.Context, article string, entity model.ArticleEntity, n int) model.EntityPaths {
	out := model.EntityPaths{
		Name:                 entity.Name,
		Sentiment:            entity.Sentiment,
		SentimentExplanation: entity.SentimentExplanation,
	}

	hints := make([]string, 0, len(entity.Relationships))
	for _, r := range entity.Relationships {
		if r.RelatedEntity == "" {
			continue
		}
		hints = append(hints, fmt.Sprintf("%s -> %s -> %s", entity.Name, r.Relationship, r.RelatedEntity))
	}

	found, err := p.Graph.FindWithinNHops(ctx, entity.Label, entity.Name,
		map[string]string{model.AttrIndustry: entity.Industry}, hints, n)
	if err != nil {
		zap.L().Warn("news: path search failed, skipping entity",
			zap.String("entity", entity.Name), zap.Error(err))
		return out
	}

	for _, ps := range found {
		impact, assessment := p.scoreImpact(ctx, article, entity, ps)
		out.Paths = append(out.Paths, model.PathAssessment{
			Path:             ps.Path,
			InterestedEntity: ps.InterestedEntity,
			Impact:           impact,
			Assessment:       assessment,
		})
	}
	return out
}

// scoreImpact asks the model how the article affects the interested entity
// at the end of one path. Failures degrade to NEUTRAL with no assessment.
func (p *Processor) scoreImpact(ctx context.Context, article string, entity model.ArticleEntity, ps graph.PathString) (string, string) {
	prompt := strings.NewReplacer(
		"{{ARTICLE}}", article,
		"{{NAME}}", entity.Name,
		"{{SENTIMENT}}", entity.Sentiment,
		"{{INTERESTED_ENTITY}}", ps.InterestedEntity,
		"{{PATH}}", ps.Path,
	).Replace(impactPrompt)

	auditID := entity.Name + "->score_impact->" + ps.InterestedEntity
	completion, err := p.LLM.QueryPrompt(ctx, auditID, "", prompt)
	if err != nil {
		zap.L().Warn("news: impact scoring degraded to neutral",
			zap.String("operation", auditID), zap.Error(err))
		return model.ImpactNeutral, ""
	}

	raw, err := llm.TextWithinTags(completion, "impact")
	if err != nil {
		return model.ImpactNeutral, ""
	}
	var parsed struct {
		Impact     string `json:"IMPACT"`
		Assessment string `json:"ASSESSMENT"`
	}
	if err := json.Unmarshal([]byte(llm.CleanJSONString(strings.TrimSpace(raw))), &parsed); err != nil {
		return model.ImpactNeutral, ""
	}
	return normalizeSentiment(parsed.Impact), parsed.Assessment
}

func normalizeSentiment(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case model.ImpactPositive:
		return model.ImpactPositive
	case model.ImpactNegative:
		return model.ImpactNegative
	default:
		return model.ImpactNeutral
	}
}

func tagOrEmpty(article, tag string) string {
	text, err := llm.TextWithinTags(article, tag)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// ReprocessAll queues every stored record for reprocessing and hides the
// originals until their replacements land.
func ReprocessAll(ctx context.Context, st store.Store) (int, error) {
	records, err := st.ListNews(ctx, true)
	if err != nil {
		return 0, eris.Wrap(err, "news: list records")
	}
	count := 0
	for _, rec := range records {
		if _, err := st.Enqueue(ctx, store.NewsQueue, "", rec.ID); err != nil {
			return count, eris.Wrapf(err, "news: enqueue %s", rec.ID)
		}
		if err := st.HideNews(ctx, rec.ID, true); err != nil {
			return count, eris.Wrapf(err, "news: hide %s", rec.ID)
		}
		count++
	}
	return count, nil
}
