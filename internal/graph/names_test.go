package graph

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Mr. John Smith, Ltd.", "John Smith"},
		{"ADVANCED MICRO DEVICES, INC.", "ADVANCED MICRO DEVICES"},
		{`"Globex" Co`, "Globex"},
		{"Dr Jane Doe", "Jane Doe"},
		{"Acme-Widgets Limited", "Acme Widgets"},
		{"  spaced   out  ", "spaced out"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanName(tt.in), "CleanName(%q)", tt.in)
	}
}

func TestAcronym(t *testing.T) {
	assert.Equal(t, "AMD", Acronym("ADVANCED MICRO DEVICES"))
	assert.Equal(t, "JS", Acronym("John Smith"))
	assert.Equal(t, "ÉDF", Acronym("Électricité De France"), "multi-byte initials stay whole runes")
	assert.Equal(t, "", Acronym("ACME"), "single token has no acronym")
	assert.Equal(t, "", Acronym(""))
}

func TestSubName(t *testing.T) {
	assert.Equal(t, "ADVANCED", SubName("ADVANCED MICRO DEVICES"))
	assert.Equal(t, "Smith", SubName("J Smith"), "single-letter tokens are skipped")
	assert.Equal(t, "", SubName("J P"))
}

func TestAcronymPatternMatchesExpansion(t *testing.T) {
	re, err := regexp.Compile(AcronymPattern("AMD"))
	require.NoError(t, err)
	assert.True(t, re.MatchString("ADVANCED MICRO DEVICES"))
	assert.False(t, re.MatchString("APPLIED MATERIALS"))
	assert.False(t, re.MatchString("AMD"), "acronym itself is not an expansion")
}
