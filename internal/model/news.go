package model

// Sentiment / impact values used in news records.
const (
	ImpactPositive = "POSITIVE"
	ImpactNegative = "NEGATIVE"
	ImpactNeutral  = "NEUTRAL"
)

// NewsRecord is a processed article with its connection paths to interested
// entities. Written once per article.
type NewsRecord struct {
	ID                 string        `json:"id"`
	Date               string        `json:"date"`
	Title              string        `json:"title"`
	Text               string        `json:"text"`
	URL                string        `json:"url,omitempty"`
	Timestamp          string        `json:"timestamp,omitempty"`
	Interested         string        `json:"interested"`
	Paths              []EntityPaths `json:"paths"`
	InterestedEntities []string      `json:"interested_entities"`
	Hidden             bool          `json:"hide_news,omitempty"`
}

// EntityPaths groups the scored connection paths of one article entity.
type EntityPaths struct {
	Name                 string           `json:"name"`
	Sentiment            string           `json:"sentiment"`
	SentimentExplanation string           `json:"sentiment_explanation"`
	Paths                []PathAssessment `json:"paths"`
}

// PathAssessment is one rendered path with its LLM impact assessment.
type PathAssessment struct {
	Path             string `json:"path"`
	InterestedEntity string `json:"interested_entity"`
	Impact           string `json:"impact"`
	Assessment       string `json:"assessment"`
}

// ArticleEntity is one company or person extracted from a news article.
type ArticleEntity struct {
	Name                 string                `json:"NAME"`
	Label                string                `json:"LABEL"`
	Industry             string                `json:"INDUSTRY"`
	Sentiment            string                `json:"SENTIMENT"`
	SentimentExplanation string                `json:"SENTIMENT_EXPLANATION"`
	Relationships        []ArticleRelationship `json:"RELATIONSHIPS"`
}

// ArticleRelationship links an article entity to another mentioned entity.
type ArticleRelationship struct {
	RelatedEntity string `json:"RELATED_ENTITY"`
	Label         string `json:"LABEL"`
	Relationship  string `json:"RELATIONSHIP"`
}
