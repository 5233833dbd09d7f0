package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringListUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  StringList
	}{
		{"string", `"GPUs, CPUs"`, StringList{"GPUs, CPUs"}},
		{"empty string", `""`, nil},
		{"array", `["A","B"]`, StringList{"A", "B"}},
		{"empty array", `[]`, StringList{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got StringList
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitValues(t *testing.T) {
	got := SplitValues([]string{"gpus, cpus", " Networking ", ""})
	assert.Equal(t, []string{"GPUS", "CPUS", "NETWORKING"}, got)
}

func TestUnionValues(t *testing.T) {
	got := UnionValues([]string{"X"}, []string{"Y", "X", ""})
	assert.Equal(t, []string{"X", "Y"}, got)
}

func TestMergeValueString(t *testing.T) {
	// Edge MERGE semantics: set union, no duplicates, no empty tokens.
	merged := MergeValueString("X", "Y,X")
	assert.ElementsMatch(t, []string{"X", "Y"}, SplitValues([]string{merged}))

	assert.Equal(t, "X", MergeValueString("X", ""))
	assert.Equal(t, "X", MergeValueString("", "x"))
}
