package treesitter

import (
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

var languages = map[string]*sitter.Language{
	"go":         golang.GetLanguage(),
	"python":     python.GetLanguage(),
	"typescript": typescript.GetLanguage(),
	"tsx":        tsx.GetLanguage(),
	"javascript": javascript.GetLanguage(),
	"java":       java.GetLanguage(),
	"kotlin":     kotlin.GetLanguage(),
}

var languageByExtension = map[string]string{
	".go":   "go",
	".py":   "python",
	".ts":   "typescript",
	".tsx":  "tsx",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".java": "java",
	".kt":   "kotlin",
	".kts":  "kotlin",
}

func GetLanguage(name string) *sitter.Language {
	return languages[name]
}

func Supported(name string) bool {
	_, ok := languages[name]
	return ok
}

// DetectLanguage returns the grammar name for a file path, or "" when the
// extension is not supported.
func DetectLanguage(path string) string {
	return languageByExtension[strings.ToLower(filepath.Ext(path))]
}

func SupportedLanguages() []string {
	keys := make([]string, 0, len(languages))
	for k := range languages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
