package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPathArrowsFollowDirection(t *testing.T) {
	a := &Vertex{ID: "1", Label: LabelCompany, Properties: map[string]string{PropName: "A"}}
	b := &Vertex{ID: "2", Label: LabelCompany, Properties: map[string]string{PropName: "B"}}
	c := &Vertex{ID: "3", Label: LabelCompany, Properties: map[string]string{PropName: "C", PropInterested: InterestedYes}}

	forward := &Edge{ID: "e1", Label: "is a supplier/partner of", From: "1", To: "2",
		Properties: map[string]string{"PRODUCTS_OR_SERVICES_SUPPLIED": "CHIPS"}}
	backward := &Edge{ID: "e2", Label: "is a customer of", From: "3", To: "2"}

	got := formatPath(Path{Elements: []PathElement{
		{Vertex: a}, {Edge: forward}, {Vertex: b}, {Edge: backward}, {Vertex: c},
	}})

	assert.Equal(t, "A --> is a supplier/partner of (PRODUCTS_OR_SERVICES_SUPPLIED:CHIPS) --> B <-- is a customer of <-- C", got.Path)
	assert.Equal(t, "C", got.InterestedEntity)
}

func TestFormatPathSingleVertex(t *testing.T) {
	a := &Vertex{ID: "1", Label: LabelCompany, Properties: map[string]string{PropName: "A"}}
	got := formatPath(Path{Elements: []PathElement{{Vertex: a}}})
	assert.Equal(t, "A", got.Path)
	assert.Equal(t, "A", got.InterestedEntity)
}

func TestFormatPathHidesRoleProperty(t *testing.T) {
	a := &Vertex{ID: "1", Properties: map[string]string{PropName: "ACME"}}
	p := &Vertex{ID: "2", Properties: map[string]string{PropName: "JOHN SMITH", PropInterested: InterestedYes}}
	e := &Edge{ID: "e1", Label: "is a director of", From: "2", To: "1",
		Properties: map[string]string{"ROLE": "CEO"}}

	got := formatPath(Path{Elements: []PathElement{{Vertex: a}, {Edge: e}, {Vertex: p}}})
	assert.Equal(t, "ACME <-- is a director of <-- JOHN SMITH", got.Path)
}

func TestFormatContextEdges(t *testing.T) {
	out := []Step{{
		Edge:  Edge{Label: "is a customer of", Properties: map[string]string{"PRODUCTS_OR_SERVICES_USED": "WIDGETS"}},
		Other: Vertex{Properties: map[string]string{PropName: "GLOBEX"}},
	}}
	in := []Step{{
		Edge:  Edge{Label: "is a director of"},
		Other: Vertex{Properties: map[string]string{PropName: "JANE DOE"}},
	}}

	lines := formatContextEdges("ACME", out, in)
	require.Len(t, lines, 2)
	assert.Equal(t, "ACME -> is a customer of (PRODUCTS_OR_SERVICES_USED:WIDGETS) -> GLOBEX", lines[0])
	assert.Equal(t, "JANE DOE -> is a director of -> ACME", lines[1])
}
