package fingerprint

import (
	"context"
	"strings"

	"github.com/dpolishuk/codesense/internal/models"
	"github.com/dpolishuk/codesense/pkg/treesitter"
	"github.com/sirupsen/logrus"
)

// Fingerprinter turns entity source into CodeBlocks.
type Fingerprinter struct {
	logger logrus.FieldLogger
}

func New(logger logrus.FieldLogger) *Fingerprinter {
	return &Fingerprinter{logger: logger.WithField("component", "fingerprint")}
}

// Block fingerprints a single piece of code. The language is derived from the
// file path.
func (f *Fingerprinter) Block(ctx context.Context, owner *models.Entity, method *models.Entity) models.CodeBlock {
	src := owner
	if method != nil {
		src = method
	}
	block := f.Code(ctx, src.SourceCode, treesitter.DetectLanguage(owner.FilePath))
	block.EntityID = owner.Key()
	block.EntityName = owner.Name
	block.FilePath = owner.FilePath
	block.StartLine = src.StartLine
	block.EndLine = src.EndLine
	if method != nil {
		block.MethodName = method.Name
	}
	return block
}

// Code fingerprints a free-standing snippet. Identity fields are left empty.
func (f *Fingerprinter) Code(ctx context.Context, code, language string) models.CodeBlock {
	normalized := NormalizeLanguage(code, language)
	return models.CodeBlock{
		Code:     code,
		Hash:     HashNormalized(normalized),
		Tokens:   countTokens(normalized),
		Skeleton: Skeleton(ctx, code, language),
	}
}

// Blocks fingerprints every entity body and method of the forest in
// pre-order. Entities or methods without code produce no block.
func (f *Fingerprinter) Blocks(ctx context.Context, forest []models.Entity) []models.CodeBlock {
	var blocks []models.CodeBlock
	models.WalkForest(forest, func(e *models.Entity) {
		if strings.TrimSpace(e.SourceCode) != "" {
			blocks = append(blocks, f.Block(ctx, e, nil))
		}
		for i := range e.Methods {
			m := &e.Methods[i]
			if strings.TrimSpace(m.SourceCode) == "" {
				continue
			}
			blocks = append(blocks, f.Block(ctx, e, m))
		}
	})
	f.logger.WithField("blocks", len(blocks)).Debug("fingerprinted code blocks")
	return blocks
}

func countTokens(normalized string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range lex(normalized) {
		counts[tok.marker()]++
	}
	return counts
}
