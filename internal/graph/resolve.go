package graph

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/connections-insights/internal/llm"
	"github.com/sells-group/connections-insights/internal/resilience"
)

const noMatchFound = "NO MATCH FOUND"

const disambiguationPrompt = `
You are an expert in disambiguating entities and determining if they are the same entity when given limited information.

You are to review through the list of potential entities, and reason through the given information to determine if any of them are the same as the entity provided within <entity> tags.

You are to follow these rules strictly:
1. You will only use the information provided in the context in your disambiguation.
2. Subsidiaries or joint ventures should not be considered as the same entity as the parent company; they are to be considered as distinctly different entities.
3. Parent companies should not be considered the same as the child company.
4. As the entities are extracted from different sources, you should take into consideration that one entity may have much richer information than the other. The differences in the level of detailed information between each potential entity and the provided entity should not indicate that the entities are different.
5. As the amount of information provided may be different for each potential entity and the provided entity, the potential entity does not need to fully match the provided entity to be considered the same. It is sufficient if there are enough similarities without much conflicting differences.
6. Companies with the same name and operating in the same industry or focus area have a strong likelihood to be the same entity.

Here is the entity:

<entity>
{{ENTITY}}
</entity>

Here are the list of potential entities that may be the same as the above entity:

{{MATCHES}}

If you determined that a potential entity is likely to be the same as the entity provided, then reply with the ID of the potential entity within <results></results> tag. You should only return a maximum of 1 ID.

If you determined that none of the potential entities are the same as the entity provided, reply with "NO MATCH FOUND" within <results></results> tag.

Provide your explanation within <explanation> tags.

Think step by step.
`

// queryEntity is the subject handed to the disambiguator.
type queryEntity struct {
	Label      string            `json:"LABEL"`
	Name       string            `json:"NAME"`
	Properties map[string]string `json:"PROPERTIES,omitempty"`
	Edges      []string          `json:"EDGES,omitempty"`
}

// candidates computes the four candidate sets for a name and unions them by
// vertex id, attaching each vertex's relationship context.
func (c *Client) candidates(ctx context.Context, label, name string) ([]Candidate, error) {
	cleaned := CleanName(name)

	lookups := []NameMatch{
		{Kind: MatchExact, Value: cleaned},
		{Kind: MatchExact, Value: Acronym(cleaned)},
		{Kind: MatchContaining, Value: SubName(cleaned)},
		{Kind: MatchRegex, Value: AcronymPattern(name)},
	}

	seen := make(map[string]bool)
	var union []Vertex
	for _, m := range lookups {
		vertices, err := c.engine.FindByName(ctx, label, m)
		if err != nil {
			return nil, err
		}
		for _, v := range vertices {
			if seen[v.ID] {
				continue
			}
			seen[v.ID] = true
			union = append(union, v)
		}
	}

	out := make([]Candidate, 0, len(union))
	for _, v := range union {
		cand, err := c.describeVertex(ctx, v)
		if err != nil {
			return nil, err
		}
		out = append(out, cand)
	}
	return out, nil
}

func (c *Client) describeVertex(ctx context.Context, v Vertex) (Candidate, error) {
	outSteps, err := c.engine.OutEdges(ctx, v.ID)
	if err != nil {
		return Candidate{}, err
	}
	inSteps, err := c.engine.InEdges(ctx, v.ID)
	if err != nil {
		return Candidate{}, err
	}

	props := make(map[string]string, len(v.Properties))
	for k, val := range v.Properties {
		if k == PropName {
			continue
		}
		props[k] = val
	}

	return Candidate{
		ID:         v.ID,
		Label:      v.Label,
		Name:       v.Name(),
		Properties: props,
		Edges:      formatContextEdges(v.Name(), outSteps, inSteps),
	}, nil
}

// resolveID finds the existing vertex a name refers to, or "" when the name
// is new to the graph. Candidate ambiguity is settled by the model.
func (c *Client) resolveID(ctx context.Context, label, name string, props map[string]string, edges []string) (string, error) {
	matches, err := c.candidates(ctx, label, name)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	return c.disambiguate(ctx, queryEntity{
		Label:      label,
		Name:       CleanName(name),
		Properties: props,
		Edges:      edges,
	}, matches)
}

func (c *Client) disambiguate(ctx context.Context, entity queryEntity, matches []Candidate) (string, error) {
	entityJSON, err := json.Marshal(entity)
	if err != nil {
		return "", eris.Wrap(err, "graph: marshal entity")
	}

	var b strings.Builder
	for _, m := range matches {
		matchJSON, err := json.Marshal(m)
		if err != nil {
			return "", eris.Wrap(err, "graph: marshal candidate")
		}
		b.WriteString("<potential-entity-match>\n")
		b.Write(matchJSON)
		b.WriteString("\n</potential-entity-match>\n\n")
	}

	prompt := strings.NewReplacer(
		"{{ENTITY}}", string(entityJSON),
		"{{MATCHES}}", b.String(),
	).Replace(disambiguationPrompt)

	for attempt := 0; ; attempt++ {
		completion, err := c.llm.QueryPrompt(ctx, "disambiguate->"+entity.Name, "", prompt)
		if err != nil {
			return "", err
		}

		result, err := llm.TextWithinTags(completion, "results")
		if err != nil {
			if attempt < 3 && eris.Is(err, resilience.ErrMalformedOutput) {
				zap.L().Warn("disambiguation output malformed, retrying",
					zap.String("entity", entity.Name),
					zap.Int("attempt", attempt+1),
				)
				continue
			}
			return "", err
		}

		if strings.EqualFold(strings.TrimSpace(result), noMatchFound) {
			return "", nil
		}
		return strings.TrimSpace(result), nil
	}
}
