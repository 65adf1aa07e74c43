package desccache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/dpolishuk/codesense/internal/models"
)

// Field names used in per-field hashes.
const (
	FieldName     = "name"
	FieldFilePath = "filePath"
	FieldProps    = "props"
	FieldSource   = "source"
)

// ContentHash hashes the attributes a description depends on: name, file
// path, prop signatures and raw source. A change to any of them yields a new
// hash.
func ContentHash(e *models.Entity) string {
	return digest(e.Name, e.FilePath, propSignature(e.Props), e.SourceCode)
}

// FieldHashes hashes each attribute on its own, so callers can tell which one
// changed.
func FieldHashes(e *models.Entity) map[string]string {
	return map[string]string{
		FieldName:     digest(e.Name),
		FieldFilePath: digest(e.FilePath),
		FieldProps:    digest(propSignature(e.Props)),
		FieldSource:   digest(e.SourceCode),
	}
}

// ChangedFields lists, sorted, the fields whose hashes differ between two
// FieldHashes results.
func ChangedFields(before, after map[string]string) []string {
	var changed []string
	for k, v := range after {
		if before[k] != v {
			changed = append(changed, k)
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

func propSignature(props []string) string {
	return strings.Join(props, "\x1f")
}

func digest(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
