package model

import (
	"encoding/json"
	"strings"
)

// StringList is a list-valued record field that tolerates the LLM emitting
// either a JSON string or a JSON array of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*l = nil
			return nil
		}
		*l = StringList{s}
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*l = StringList(arr)
	return nil
}

// SplitValues normalizes raw field values into clean tokens: each value is
// comma-split, trimmed, uppercased, and empties dropped.
func SplitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// UnionValues returns the set union of dst and src, preserving first-seen
// order. Inputs are assumed already normalized via SplitValues.
func UnionValues(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst)+len(src))
	var out []string
	for _, v := range append(append([]string{}, dst...), src...) {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// JoinValues renders a normalized value list as the comma-joined form stored
// on vertices and edges.
func JoinValues(values []string) string {
	return strings.Join(values, ",")
}

// MergeValueString set-unions a comma-joined property string with additional
// raw values and re-joins it. Used for vertex and edge property MERGE.
func MergeValueString(existing string, incoming string) string {
	merged := UnionValues(SplitValues([]string{existing}), SplitValues([]string{incoming}))
	return JoinValues(merged)
}
