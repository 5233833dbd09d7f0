// Package consolidate unions per-chunk record sets into one document-level
// set keyed by entity name.
package consolidate

import (
	"strings"

	"github.com/sells-group/connections-insights/internal/model"
)

// Consolidate folds every chunk's records into one set. Values are
// uppercased and set-unioned per name; a director's other associations are
// concatenated instead, keeping one entry per mention. Rows without a name
// are dropped.
func Consolidate(chunks []model.ChunkRecords) *model.ConsolidatedSet {
	set := model.NewConsolidatedSet()
	productSeen := make(map[string]struct{})

	for _, records := range chunks {
		for _, p := range records.Products {
			name := strings.ToUpper(strings.TrimSpace(p.Name))
			if name == "" {
				continue
			}
			if _, ok := productSeen[name]; ok {
				continue
			}
			productSeen[name] = struct{}{}
			set.Products = append(set.Products, name)
		}

		for _, c := range records.Customers {
			name := strings.ToUpper(strings.TrimSpace(c.Name))
			if name == "" {
				continue
			}
			record := set.Customers[name]
			record.Merge(model.CustomerRecord{
				ProductsUsed: model.SplitValues(c.ProductsUsed),
				FocusArea:    model.SplitValues(c.FocusArea),
				Industry:     model.SplitValues(c.Industry),
				Source:       model.SplitValues([]string{c.Source}),
			})
			set.Customers[name] = record
		}

		for _, s := range records.Suppliers {
			name := strings.ToUpper(strings.TrimSpace(s.Name))
			if name == "" {
				continue
			}
			record := set.Suppliers[name]
			record.Merge(model.SupplierRecord{
				Relationship: model.SplitValues(s.Relationship),
				FocusArea:    model.SplitValues(s.FocusArea),
				Industry:     model.SplitValues(s.Industry),
				Source:       model.SplitValues([]string{s.Source}),
			})
			set.Suppliers[name] = record
		}

		for _, c := range records.Competitors {
			name := strings.ToUpper(strings.TrimSpace(c.Name))
			if name == "" {
				continue
			}
			record := set.Competitors[name]
			record.Merge(model.CompetitorRecord{
				CompetingIn: model.SplitValues(c.CompetingIn),
				FocusArea:   model.SplitValues(c.FocusArea),
				Industry:    model.SplitValues(c.Industry),
				Source:      model.SplitValues([]string{c.Source}),
			})
			set.Competitors[name] = record
		}

		for _, d := range records.Directors {
			name := strings.ToUpper(strings.TrimSpace(d.Name))
			if name == "" {
				continue
			}
			record := set.Directors[name]
			record.Merge(model.DirectorRecord{
				Role:              model.SplitValues(d.Role),
				OtherAssociations: model.UpperAssociations(d.OtherAssociations),
				Source:            model.SplitValues([]string{d.Source}),
			})
			set.Directors[name] = record
		}
	}

	return set
}
