package ingest

import (
	"strings"

	"github.com/google/uuid"
)

// maxExecutionName caps the full execution name length.
const maxExecutionName = 80

// maxKeyPrefix caps how much of the object key survives into the name.
const maxKeyPrefix = 40

// ExecutionName derives a stable-prefix, unique execution name from an
// object key: the sanitized key prefix plus a fresh uuid.
func ExecutionName(key string) string {
	prefix := sanitizeKey(key)
	if len(prefix) > maxKeyPrefix {
		prefix = prefix[:maxKeyPrefix]
	}
	name := prefix + "_" + uuid.NewString()
	if len(name) > maxExecutionName {
		name = name[:maxExecutionName]
	}
	return name
}

func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*()[]%`, r) {
			return -1
		}
		return r
	}, key)
}

// FileNameAndType splits an object key into its basename and extension for
// the progress record.
func FileNameAndType(key string) (string, string) {
	name := key
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	ext := ""
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		ext = strings.ToLower(name[i+1:])
	}
	return name, ext
}
