package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionNameStripsForbiddenChars(t *testing.T) {
	name := ExecutionName(`reports/acme<>:"|?*()[]%.pdf`)
	for _, r := range `<>:"/\|?*()[]%` {
		assert.NotContains(t, name, string(r))
	}
	assert.True(t, strings.HasPrefix(name, "reportsacme.pdf_"))
}

func TestExecutionNameCapsLength(t *testing.T) {
	name := ExecutionName(strings.Repeat("a", 200))
	assert.LessOrEqual(t, len(name), maxExecutionName)
	assert.True(t, strings.HasPrefix(name, strings.Repeat("a", maxKeyPrefix)+"_"))
}

func TestExecutionNameUnique(t *testing.T) {
	assert.NotEqual(t, ExecutionName("x.pdf"), ExecutionName("x.pdf"))
}

func TestFileNameAndType(t *testing.T) {
	name, ext := FileNameAndType("reports/2024/acme_10K.pdf")
	assert.Equal(t, "acme_10K.pdf", name)
	assert.Equal(t, "pdf", ext)

	name, ext = FileNameAndType("plain")
	assert.Equal(t, "plain", name)
	assert.Equal(t, "", ext)
}
