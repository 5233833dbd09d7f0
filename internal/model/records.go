package model

import "strings"

// Relationship edge labels written to the graph.
const (
	EdgeCustomerOf         = "is a customer of"
	EdgeSupplierPartnerOf  = "is a supplier/partner of"
	EdgeCompetitorOf       = "is a competitor of"
	EdgeDirectorOf         = "is a director of"
	EdgeEmployeeDirectorOf = "is an employee/director of"
)

// Edge property keys, mirroring the record field names.
const (
	PropProductsUsed = "PRODUCTS_USED"
	PropRelationship = "RELATIONSHIP"
	PropCompetingIn  = "COMPETING_IN"
	PropRole         = "ROLE"
	PropSource       = "SOURCE"
)

// ChunkRecords is the raw per-chunk extraction output.
type ChunkRecords struct {
	Products    []ProductMention    `json:"COMMERCIAL_PRODUCTS_OR_SERVICES"`
	Customers   []CustomerMention   `json:"CUSTOMERS"`
	Suppliers   []SupplierMention   `json:"SUPPLIERS_OR_PARTNERS"`
	Competitors []CompetitorMention `json:"COMPETITORS"`
	Directors   []DirectorMention   `json:"DIRECTORS"`
}

// StampSource sets SOURCE on every record to the document basename.
func (c *ChunkRecords) StampSource(source string) {
	for i := range c.Products {
		c.Products[i].Source = source
	}
	for i := range c.Customers {
		c.Customers[i].Source = source
	}
	for i := range c.Suppliers {
		c.Suppliers[i].Source = source
	}
	for i := range c.Competitors {
		c.Competitors[i].Source = source
	}
	for i := range c.Directors {
		c.Directors[i].Source = source
	}
}

// ProductMention is one named commercial product or service.
type ProductMention struct {
	Name   string `json:"NAME"`
	Source string `json:"SOURCE,omitempty"`
}

// CustomerMention is one customer row as emitted by the chunk extractor.
type CustomerMention struct {
	Name         string     `json:"NAME"`
	ProductsUsed StringList `json:"PRODUCTS_USED"`
	FocusArea    StringList `json:"FOCUS_AREA"`
	Industry     StringList `json:"INDUSTRY"`
	Source       string     `json:"SOURCE,omitempty"`
}

// SupplierMention is one supplier or partner row.
type SupplierMention struct {
	Name         string     `json:"NAME"`
	Relationship StringList `json:"RELATIONSHIP"`
	FocusArea    StringList `json:"FOCUS_AREA"`
	Industry     StringList `json:"INDUSTRY"`
	Source       string     `json:"SOURCE,omitempty"`
}

// CompetitorMention is one competitor row.
type CompetitorMention struct {
	Name        string     `json:"NAME"`
	CompetingIn StringList `json:"COMPETING_IN"`
	FocusArea   StringList `json:"FOCUS_AREA"`
	Industry    StringList `json:"INDUSTRY"`
	Source      string     `json:"SOURCE,omitempty"`
}

// DirectorMention is one director row, with prior/other roles attached.
type DirectorMention struct {
	Name              string        `json:"NAME"`
	Role              StringList    `json:"ROLE"`
	OtherAssociations []Association `json:"OTHER_ASSOCIATIONS"`
	Source            string        `json:"SOURCE,omitempty"`
}

// Association is a director's role at another company.
type Association struct {
	Role        string `json:"ROLE"`
	CompanyName string `json:"COMPANY_NAME"`
	FocusArea   string `json:"FOCUS_AREA"`
	Industry    string `json:"INDUSTRY"`
}

// CustomerRecord is the consolidated per-name customer entry.
type CustomerRecord struct {
	ProductsUsed []string `json:"PRODUCTS_USED"`
	FocusArea    []string `json:"FOCUS_AREA"`
	Industry     []string `json:"INDUSTRY"`
	Source       []string `json:"SOURCE"`
}

// Merge set-unions every field of other into r.
func (r *CustomerRecord) Merge(other CustomerRecord) {
	r.ProductsUsed = UnionValues(r.ProductsUsed, other.ProductsUsed)
	r.FocusArea = UnionValues(r.FocusArea, other.FocusArea)
	r.Industry = UnionValues(r.Industry, other.Industry)
	r.Source = UnionValues(r.Source, other.Source)
}

// SupplierRecord is the consolidated per-name supplier/partner entry.
type SupplierRecord struct {
	Relationship []string `json:"RELATIONSHIP"`
	FocusArea    []string `json:"FOCUS_AREA"`
	Industry     []string `json:"INDUSTRY"`
	Source       []string `json:"SOURCE"`
}

func (r *SupplierRecord) Merge(other SupplierRecord) {
	r.Relationship = UnionValues(r.Relationship, other.Relationship)
	r.FocusArea = UnionValues(r.FocusArea, other.FocusArea)
	r.Industry = UnionValues(r.Industry, other.Industry)
	r.Source = UnionValues(r.Source, other.Source)
}

// CompetitorRecord is the consolidated per-name competitor entry.
type CompetitorRecord struct {
	CompetingIn []string `json:"COMPETING_IN"`
	FocusArea   []string `json:"FOCUS_AREA"`
	Industry    []string `json:"INDUSTRY"`
	Source      []string `json:"SOURCE"`
}

func (r *CompetitorRecord) Merge(other CompetitorRecord) {
	r.CompetingIn = UnionValues(r.CompetingIn, other.CompetingIn)
	r.FocusArea = UnionValues(r.FocusArea, other.FocusArea)
	r.Industry = UnionValues(r.Industry, other.Industry)
	r.Source = UnionValues(r.Source, other.Source)
}

// DirectorRecord is the consolidated per-name director entry. Roles are
// set-unioned; other associations are concatenated, preserving one entry per
// mention even across chunks.
type DirectorRecord struct {
	Role              []string      `json:"ROLE"`
	OtherAssociations []Association `json:"OTHER_ASSOCIATIONS"`
	Source            []string      `json:"SOURCE"`
}

func (r *DirectorRecord) Merge(other DirectorRecord) {
	r.Role = UnionValues(r.Role, other.Role)
	r.OtherAssociations = append(r.OtherAssociations, other.OtherAssociations...)
	r.Source = UnionValues(r.Source, other.Source)
}

// ConsolidatedSet is the union of all chunk record sets for one document,
// keyed by uppercase entity name.
type ConsolidatedSet struct {
	Products    []string                     `json:"products"`
	Customers   map[string]CustomerRecord    `json:"customers"`
	Suppliers   map[string]SupplierRecord    `json:"suppliers_or_partners"`
	Competitors map[string]CompetitorRecord  `json:"competitors"`
	Directors   map[string]DirectorRecord    `json:"directors"`
}

// NewConsolidatedSet returns an empty set with all maps initialized.
func NewConsolidatedSet() *ConsolidatedSet {
	return &ConsolidatedSet{
		Customers:   make(map[string]CustomerRecord),
		Suppliers:   make(map[string]SupplierRecord),
		Competitors: make(map[string]CompetitorRecord),
		Directors:   make(map[string]DirectorRecord),
	}
}

// UpperAssociations uppercases all string fields of a slice of associations.
func UpperAssociations(assocs []Association) []Association {
	out := make([]Association, len(assocs))
	for i, a := range assocs {
		out[i] = Association{
			Role:        strings.ToUpper(strings.TrimSpace(a.Role)),
			CompanyName: strings.ToUpper(strings.TrimSpace(a.CompanyName)),
			FocusArea:   strings.ToUpper(strings.TrimSpace(a.FocusArea)),
			Industry:    strings.ToUpper(strings.TrimSpace(a.Industry)),
		}
	}
	return out
}
