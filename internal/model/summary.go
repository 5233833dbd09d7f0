package model

import (
	"encoding/json"
	"strings"
)

// Vertex attribute keys produced by the summary and record extractors.
const (
	AttrIndustry                    = "INDUSTRY"
	AttrFocusArea                   = "FOCUS_AREA"
	AttrRevenueGeneratingIndustries = "REVENUE_GENERATING_INDUSTRIES"
	AttrPerformanceSummary          = "SUMMARY_OF_BUSINESS_PERFORMANCE"
	AttrStrategySummary             = "SUMMARY_OF_BUSINESS_STRATEGY"
	AttrSource                      = "SOURCE"
)

// DocumentSummary describes the main entity of an ingested document.
type DocumentSummary struct {
	MainEntity MainEntity `json:"MAIN_ENTITY"`
}

// MainEntity is the hub entity all extracted records attach to.
type MainEntity struct {
	Name                        string     `json:"NAME"`
	Industry                    string     `json:"-"`
	FocusArea                   StringList `json:"-"`
	RevenueGeneratingIndustries StringList `json:"-"`
	PerformanceSummary          string     `json:"-"`
	StrategySummary             string     `json:"-"`
	Source                      string     `json:"-"`
}

// wire shape: the summary prompt asks for ATTRIBUTES as a list of
// single-key objects, so marshaling has to round-trip that form.
type mainEntityWire struct {
	Name       string           `json:"NAME"`
	Attributes []map[string]any `json:"ATTRIBUTES"`
}

func (m MainEntity) MarshalJSON() ([]byte, error) {
	attrs := make([]map[string]any, 0, 6)
	attrs = append(attrs, map[string]any{AttrIndustry: m.Industry})
	attrs = append(attrs, map[string]any{AttrFocusArea: []string(m.FocusArea)})
	attrs = append(attrs, map[string]any{AttrRevenueGeneratingIndustries: []string(m.RevenueGeneratingIndustries)})
	if m.PerformanceSummary != "" {
		attrs = append(attrs, map[string]any{AttrPerformanceSummary: m.PerformanceSummary})
	}
	if m.StrategySummary != "" {
		attrs = append(attrs, map[string]any{AttrStrategySummary: m.StrategySummary})
	}
	if m.Source != "" {
		attrs = append(attrs, map[string]any{AttrSource: m.Source})
	}
	return json.Marshal(mainEntityWire{Name: m.Name, Attributes: attrs})
}

func (m *MainEntity) UnmarshalJSON(data []byte) error {
	var wire mainEntityWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Name = wire.Name
	for _, attr := range wire.Attributes {
		for key, value := range attr {
			switch strings.ToUpper(key) {
			case AttrIndustry:
				m.Industry = toString(value)
			case AttrFocusArea:
				m.FocusArea = toStringList(value)
			case AttrRevenueGeneratingIndustries:
				m.RevenueGeneratingIndustries = toStringList(value)
			case AttrPerformanceSummary:
				m.PerformanceSummary = toString(value)
			case AttrStrategySummary:
				m.StrategySummary = toString(value)
			case AttrSource:
				m.Source = toString(value)
			}
		}
	}
	return nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toStringList(v any) StringList {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return StringList{t}
	case []any:
		var out StringList
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Upper uppercases every field, matching the stored form of all extracted
// values.
func (s DocumentSummary) Upper() DocumentSummary {
	m := s.MainEntity
	m.Name = strings.ToUpper(m.Name)
	m.Industry = strings.ToUpper(m.Industry)
	m.FocusArea = upperList(m.FocusArea)
	m.RevenueGeneratingIndustries = upperList(m.RevenueGeneratingIndustries)
	m.PerformanceSummary = strings.ToUpper(m.PerformanceSummary)
	m.StrategySummary = strings.ToUpper(m.StrategySummary)
	m.Source = strings.ToUpper(m.Source)
	return DocumentSummary{MainEntity: m}
}

func upperList(l StringList) StringList {
	out := make(StringList, len(l))
	for i, v := range l {
		out[i] = strings.ToUpper(v)
	}
	return out
}

// Short strips the two narrative summary fields. The short variant is what
// the chunk extractor sees; the full variant reaches the graph writer.
func (s DocumentSummary) Short() DocumentSummary {
	short := s
	short.MainEntity.PerformanceSummary = ""
	short.MainEntity.StrategySummary = ""
	return short
}

// Attributes flattens the main entity into vertex attributes, list values
// comma-joined. Empty values are kept so reruns overwrite consistently.
func (m MainEntity) Attributes() map[string]string {
	return map[string]string{
		AttrIndustry:                    m.Industry,
		AttrFocusArea:                   JoinValues(SplitValues(m.FocusArea)),
		AttrRevenueGeneratingIndustries: JoinValues(SplitValues(m.RevenueGeneratingIndustries)),
		AttrPerformanceSummary:          m.PerformanceSummary,
		AttrStrategySummary:             m.StrategySummary,
		AttrSource:                      strings.ToUpper(m.Source),
	}
}
