// Package graphwrite persists the filtered record buckets as vertices and
// edges, resolving every name against the existing graph first.
package graphwrite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/connections-insights/internal/graph"
	"github.com/sells-group/connections-insights/internal/model"
)

// Buckets is the post-filter input to the writer.
type Buckets struct {
	Customers   map[string]model.CustomerRecord
	Suppliers   map[string]model.SupplierRecord
	Competitors map[string]model.CompetitorRecord
	Directors   map[string]model.DirectorRecord
}

// Writer inserts one document's entities into the graph.
type Writer struct {
	Graph *graph.Client
}

// Write creates or updates the main entity vertex first, seeded with every
// leaf relationship as disambiguation context, then walks the four buckets
// attaching each leaf to it. A failed leaf is logged and skipped so one bad
// record cannot sink the document.
func (w *Writer) Write(ctx context.Context, summary model.DocumentSummary, buckets Buckets) error {
	mainName := summary.MainEntity.Name

	var allEdges []string
	for name, record := range buckets.Customers {
		allEdges = append(allEdges, customerEdgeContext(name, record, mainName))
	}
	for name, record := range buckets.Suppliers {
		allEdges = append(allEdges, supplierEdgeContext(name, record, mainName))
	}
	for name, record := range buckets.Competitors {
		allEdges = append(allEdges, competitorEdgeContext(name, record, mainName))
	}
	for name, record := range buckets.Directors {
		allEdges = append(allEdges, directorEdgeContext(name, record, mainName))
	}

	mainID, err := w.Graph.GetOrCreateID(ctx, graph.LabelCompany, mainName, summary.MainEntity.Attributes(), allEdges)
	if err != nil {
		return err
	}

	w.writeCustomers(ctx, buckets.Customers, mainID, mainName)
	w.writeSuppliers(ctx, buckets.Suppliers, mainID, mainName)
	w.writeCompetitors(ctx, buckets.Competitors, mainID, mainName)
	w.writeDirectors(ctx, buckets.Directors, mainID, mainName)
	return nil
}

func (w *Writer) writeCustomers(ctx context.Context, customers map[string]model.CustomerRecord, mainID, mainName string) {
	for name, record := range customers {
		if name == "" {
			continue
		}
		attrs := map[string]string{
			model.AttrFocusArea: model.JoinValues(record.FocusArea),
			model.AttrIndustry:  model.JoinValues(record.Industry),
			model.PropSource:    model.JoinValues(record.Source),
		}
		edges := []string{customerEdgeContext(name, record, mainName)}
		id, err := w.Graph.GetOrCreateID(ctx, graph.LabelCompany, name, attrs, edges)
		if err != nil {
			zap.L().Error("customer vertex failed, skipping", zap.String("name", name), zap.Error(err))
			continue
		}
		props := map[string]string{
			model.PropProductsUsed: model.JoinValues(record.ProductsUsed),
			model.PropSource:       model.JoinValues(record.Source),
		}
		if err := w.Graph.AddOrUpdateEdge(ctx, id, model.EdgeCustomerOf, mainID, props); err != nil {
			zap.L().Error("customer edge failed, skipping", zap.String("name", name), zap.Error(err))
		}
	}
}

func (w *Writer) writeSuppliers(ctx context.Context, suppliers map[string]model.SupplierRecord, mainID, mainName string) {
	for name, record := range suppliers {
		if name == "" {
			continue
		}
		attrs := map[string]string{
			model.AttrFocusArea: model.JoinValues(record.FocusArea),
			model.AttrIndustry:  model.JoinValues(record.Industry),
			model.PropSource:    model.JoinValues(record.Source),
		}
		edges := []string{supplierEdgeContext(name, record, mainName)}
		id, err := w.Graph.GetOrCreateID(ctx, graph.LabelCompany, name, attrs, edges)
		if err != nil {
			zap.L().Error("supplier vertex failed, skipping", zap.String("name", name), zap.Error(err))
			continue
		}
		props := map[string]string{
			model.PropRelationship: model.JoinValues(record.Relationship),
			model.PropSource:       model.JoinValues(record.Source),
		}
		if err := w.Graph.AddOrUpdateEdge(ctx, id, model.EdgeSupplierPartnerOf, mainID, props); err != nil {
			zap.L().Error("supplier edge failed, skipping", zap.String("name", name), zap.Error(err))
		}
	}
}

func (w *Writer) writeCompetitors(ctx context.Context, competitors map[string]model.CompetitorRecord, mainID, mainName string) {
	for name, record := range competitors {
		if name == "" {
			continue
		}
		attrs := map[string]string{
			model.AttrFocusArea: model.JoinValues(record.FocusArea),
			model.AttrIndustry:  model.JoinValues(record.Industry),
			model.PropSource:    model.JoinValues(record.Source),
		}
		edges := []string{competitorEdgeContext(name, record, mainName)}
		id, err := w.Graph.GetOrCreateID(ctx, graph.LabelCompany, name, attrs, edges)
		if err != nil {
			zap.L().Error("competitor vertex failed, skipping", zap.String("name", name), zap.Error(err))
			continue
		}
		props := map[string]string{
			model.PropCompetingIn: model.JoinValues(record.CompetingIn),
			model.PropSource:      model.JoinValues(record.Source),
		}
		if err := w.Graph.AddOrUpdateEdge(ctx, id, model.EdgeCompetitorOf, mainID, props); err != nil {
			zap.L().Error("competitor edge failed, skipping", zap.String("name", name), zap.Error(err))
		}
	}
}

func (w *Writer) writeDirectors(ctx context.Context, directors map[string]model.DirectorRecord, mainID, mainName string) {
	for name, record := range directors {
		if name == "" {
			continue
		}
		source := model.JoinValues(record.Source)
		attrs := map[string]string{model.PropSource: source}
		edges := []string{directorEdgeContext(name, record, mainName)}
		id, err := w.Graph.GetOrCreateID(ctx, graph.LabelPerson, name, attrs, edges)
		if err != nil {
			zap.L().Error("director vertex failed, skipping", zap.String("name", name), zap.Error(err))
			continue
		}
		props := map[string]string{
			model.PropRole:   model.JoinValues(record.Role),
			model.PropSource: source,
		}
		if err := w.Graph.AddOrUpdateEdge(ctx, id, model.EdgeDirectorOf, mainID, props); err != nil {
			zap.L().Error("director edge failed, skipping", zap.String("name", name), zap.Error(err))
			continue
		}

		for _, assoc := range record.OtherAssociations {
			if assoc.CompanyName == "" {
				continue
			}
			assocAttrs := map[string]string{
				model.AttrFocusArea: assoc.FocusArea,
				model.AttrIndustry:  assoc.Industry,
				model.PropSource:    source,
			}
			assocEdges := []string{associationEdgeContext(name, assoc)}
			assocID, err := w.Graph.GetOrCreateID(ctx, graph.LabelCompany, assoc.CompanyName, assocAttrs, assocEdges)
			if err != nil {
				zap.L().Error("association vertex failed, skipping",
					zap.String("director", name),
					zap.String("company", assoc.CompanyName),
					zap.Error(err),
				)
				continue
			}
			assocProps := map[string]string{
				model.PropRole:   assoc.Role,
				model.PropSource: source,
			}
			if err := w.Graph.AddOrUpdateEdge(ctx, id, model.EdgeEmployeeDirectorOf, assocID, assocProps); err != nil {
				zap.L().Error("association edge failed, skipping",
					zap.String("director", name),
					zap.String("company", assoc.CompanyName),
					zap.Error(err),
				)
			}
		}
	}
}

func customerEdgeContext(name string, record model.CustomerRecord, mainName string) string {
	return fmt.Sprintf("%s is a customer of (PRODUCTS_USED:%s) %s", name, model.JoinValues(record.ProductsUsed), mainName)
}

func supplierEdgeContext(name string, record model.SupplierRecord, mainName string) string {
	return fmt.Sprintf("%s is a supplier of (RELATIONSHIP:%s) %s", name, model.JoinValues(record.Relationship), mainName)
}

func competitorEdgeContext(name string, record model.CompetitorRecord, mainName string) string {
	return fmt.Sprintf("%s is a competitor of (COMPETING_IN:%s) %s", name, model.JoinValues(record.CompetingIn), mainName)
}

func directorEdgeContext(name string, record model.DirectorRecord, mainName string) string {
	return fmt.Sprintf("%s is a director of (ROLE: %s) %s", name, model.JoinValues(record.Role), mainName)
}

func associationEdgeContext(name string, assoc model.Association) string {
	return fmt.Sprintf("%s is an employee/director of (ROLE: %s) %s", name, assoc.Role, assoc.CompanyName)
}
