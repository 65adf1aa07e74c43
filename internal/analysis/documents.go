package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dpolishuk/codesense/internal/describe"
	"github.com/dpolishuk/codesense/internal/embedding"
	"github.com/dpolishuk/codesense/internal/models"
	"github.com/dpolishuk/codesense/internal/vectorstore"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidDocument = errors.New("document needs an id and content")

const (
	chatSources      = 3
	maxChatSourceLen = 2000
)

// Document is code or text added to the vector store outside an analysis
// run. It is searchable but never produces similarity warnings.
type Document struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	Name        string `json:"name,omitempty"`
	FilePath    string `json:"filePath,omitempty"`
	Description string `json:"description,omitempty"`
}

// EmbeddingsEnabled reports whether an embedding provider is configured.
func (p *Pipeline) EmbeddingsEnabled() bool {
	return p.deps.Embeddings != nil && p.deps.Embeddings.Provider() != "none"
}

func (p *Pipeline) embedDocument(ctx context.Context, doc Document) (models.VectorEntry, error) {
	if strings.TrimSpace(doc.ID) == "" || strings.TrimSpace(doc.Content) == "" {
		return models.VectorEntry{}, ErrInvalidDocument
	}
	if p.deps.Embeddings == nil {
		return models.VectorEntry{}, embedding.ErrDisabled
	}
	res := p.deps.Embeddings.Embed(ctx, doc.Content)
	if !res.OK() {
		return models.VectorEntry{}, fmt.Errorf("failed to embed document %s: %w", doc.ID, res.Err)
	}

	name := doc.Name
	if name == "" {
		name = doc.ID
	}
	return models.VectorEntry{
		ID:            vectorstore.EntryID(doc.ID),
		Embedding:     res.Value,
		Code:          doc.Content,
		Description:   doc.Description,
		ComponentName: name,
		FilePath:      doc.FilePath,
	}, nil
}

// AddDocument embeds doc and stores it under EntryID(doc.ID), replacing any
// entry with that id. A document is never stored with a fallback vector.
func (p *Pipeline) AddDocument(ctx context.Context, doc Document) (models.VectorEntry, error) {
	entry, err := p.embedDocument(ctx, doc)
	if err != nil {
		return models.VectorEntry{}, err
	}

	p.runMu.Lock()
	defer p.runMu.Unlock()
	if err := p.deps.Store.Insert(entry); err != nil {
		return models.VectorEntry{}, fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
	}
	p.saveStore()
	return entry, nil
}

// AddDocuments embeds docs with bounded concurrency and stores the ones that
// succeed, saving the store once. Failed documents are logged and skipped;
// the error reports cancellation only.
func (p *Pipeline) AddDocuments(ctx context.Context, docs []Document) (int, error) {
	entries := make([]*models.VectorEntry, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := p.embedDocument(gctx, doc)
			if err != nil {
				p.logger.WithError(err).WithField("document", doc.ID).Warn("failed to add document")
				return nil
			}
			entries[i] = &entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	p.runMu.Lock()
	defer p.runMu.Unlock()
	added := 0
	for i, entry := range entries {
		if entry == nil {
			continue
		}
		if err := p.deps.Store.Insert(*entry); err != nil {
			p.logger.WithError(err).WithField("document", docs[i].ID).Warn("failed to add document")
			continue
		}
		added++
	}
	if added > 0 {
		p.saveStore()
	}
	p.logger.WithField("added", added).WithField("failed", len(docs)-added).Info("Documents added")
	return added, nil
}

func (p *Pipeline) saveStore() {
	if p.cfg.VectorPath == "" {
		return
	}
	if err := p.deps.Store.Save(p.cfg.VectorPath); err != nil {
		p.logger.WithError(err).Warn("failed to save vector store")
	}
}

// ChatSource is a stored block a chat answer was grounded on.
type ChatSource struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	MethodName string  `json:"methodName,omitempty"`
	FilePath   string  `json:"filePath"`
	Score      float64 `json:"score"`
}

type ChatAnswer struct {
	Response  string       `json:"response"`
	SessionID string       `json:"sessionId"`
	Sources   []ChatSource `json:"sources"`
}

// Chat answers message with the description provider, passing the closest
// stored blocks along as context. Without an embedding provider, or when the
// lookup fails, the question is asked without context.
func (p *Pipeline) Chat(ctx context.Context, message, sessionID string) (*ChatAnswer, error) {
	if p.deps.Descriptions == nil {
		return nil, describe.ErrDisabled
	}

	hits, err := p.Search(ctx, message, chatSources)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, embedding.ErrDisabled) {
			p.logger.WithError(err).Warn("chat context lookup failed")
		}
		hits = nil
	}

	res := p.deps.Descriptions.Ask(ctx, chatPrompt(message, hits))
	if !res.OK() {
		return nil, res.Err
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	answer := &ChatAnswer{Response: res.Value, SessionID: sessionID, Sources: []ChatSource{}}
	for _, h := range hits {
		answer.Sources = append(answer.Sources, ChatSource{
			ID:         h.Entry.ID,
			Name:       h.Entry.ComponentName,
			MethodName: h.Entry.MethodName,
			FilePath:   h.Entry.FilePath,
			Score:      h.Score,
		})
	}
	return answer, nil
}

func chatPrompt(message string, hits []vectorstore.Match) string {
	if len(hits) == 0 {
		return message
	}

	var b strings.Builder
	b.WriteString("Answer the question below. This code from the indexed code base may be relevant:\n")
	for _, h := range hits {
		name := h.Entry.ComponentName
		if h.Entry.MethodName != "" {
			name += "." + h.Entry.MethodName
		}
		fmt.Fprintf(&b, "\n### %s (%s)\n", name, h.Entry.FilePath)
		if h.Entry.Description != "" {
			fmt.Fprintf(&b, "%s\n", h.Entry.Description)
		}
		fmt.Fprintf(&b, "```\n%s\n```\n", clip(h.Entry.Code, maxChatSourceLen))
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", message)
	return b.String()
}

// clip cuts s to at most n bytes on a rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
