package api

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dpolishuk/codesense/internal/analysis"
	"github.com/dpolishuk/codesense/internal/db"
	"github.com/dpolishuk/codesense/internal/describe"
	"github.com/dpolishuk/codesense/internal/duplicates"
	"github.com/dpolishuk/codesense/internal/embedding"
	"github.com/dpolishuk/codesense/internal/git"
	"github.com/dpolishuk/codesense/internal/indexer"
	"github.com/dpolishuk/codesense/internal/models"
	"github.com/dpolishuk/codesense/internal/vectorstore"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// Options configures a Handler. Checkouts and Graph are optional.
type Options struct {
	Pipeline            *analysis.Pipeline
	Scanner             *indexer.Scanner
	Checkouts           *git.Checkouts
	Graph               *db.GraphReader
	Project             string
	StructuralThreshold float64
}

type Handler struct {
	opts   Options
	logger logrus.FieldLogger

	// background document batches
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

func NewHandler(opts Options, logger logrus.FieldLogger) *Handler {
	if opts.Project == "" {
		opts.Project = "default"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		opts:     opts,
		logger:   logger.WithField("component", "api"),
		bgCtx:    ctx,
		bgCancel: cancel,
	}
}

// Wait blocks until every background batch has finished.
func (h *Handler) Wait() {
	h.bg.Wait()
}

// Close cancels background batches and waits for them to stop.
func (h *Handler) Close() {
	h.bgCancel()
	h.bg.Wait()
}

type analyzeRequest struct {
	Path   string `json:"path"`
	URL    string `json:"url"`
	Branch string `json:"branch"`
}

// AnalyzeResponse summarizes a run; the full forest is served by the entity
// endpoints.
type AnalyzeResponse struct {
	Project    string             `json:"project"`
	Commit     string             `json:"commit,omitempty"`
	Files      int                `json:"files"`
	ScanErrors []string           `json:"scanErrors"`
	Stats      analysis.Stats     `json:"stats"`
	Matches    []duplicates.Match `json:"matches"`
}

func summarize(report *analysis.Report) AnalyzeResponse {
	matches := report.Matches
	if matches == nil {
		matches = []duplicates.Match{}
	}
	return AnalyzeResponse{
		Project:    report.Project,
		ScanErrors: []string{},
		Stats:      report.Stats,
		Matches:    matches,
	}
}

// Health reports liveness
func (h *Handler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "codesense",
	})
}

// Analyze scans a local directory, or a git url checked out first, and runs
// the analysis on it.
func (h *Handler) Analyze(c fiber.Ctx) error {
	var req analyzeRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if (req.Path == "") == (req.URL == "") {
		return c.Status(400).JSON(fiber.Map{"error": "exactly one of path or url is required"})
	}

	dir, commit := req.Path, ""
	if req.URL != "" {
		if h.opts.Checkouts == nil {
			return c.Status(501).JSON(fiber.Map{"error": "remote checkouts are not enabled"})
		}
		repoPath, err := h.opts.Checkouts.Checkout(c.Context(), req.URL, req.Branch)
		if err != nil {
			return c.Status(502).JSON(fiber.Map{"error": err.Error()})
		}
		dir = repoPath
		if head, err := h.opts.Checkouts.Head(c.Context(), repoPath); err == nil {
			commit = head
		}
	}

	scan, err := h.opts.Scanner.ScanDirectory(c.Context(), dir)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	report, err := h.opts.Pipeline.Run(c.Context(), scan.Entities)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	resp := summarize(report)
	resp.Commit = commit
	resp.Files = scan.FilesProcessed
	if scan.Errors != nil {
		resp.ScanErrors = scan.Errors
	}
	return c.JSON(resp)
}

// AnalyzeEntities runs the analysis on a forest produced by an external
// parser.
func (h *Handler) AnalyzeEntities(c fiber.Ctx) error {
	var raw []models.RawEntity
	if err := c.Bind().Body(&raw); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "body must be an array of entities"})
	}

	report, err := h.opts.Pipeline.Run(c.Context(), raw)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(summarize(report))
}

// ListEntities returns the entity index of the last run
func (h *Handler) ListEntities(c fiber.Ctx) error {
	report := h.opts.Pipeline.Last()
	if report == nil {
		return c.JSON([]models.IndexItem{})
	}
	return c.JSON(report.Index)
}

// GetEntity returns one entity of the last run by slug
func (h *Handler) GetEntity(c fiber.Ctx) error {
	report := h.opts.Pipeline.Last()
	if report == nil {
		return c.Status(404).JSON(fiber.Map{"error": "no analysis has run yet"})
	}
	entity, ok := report.Entity(c.Params("slug"))
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "entity not found"})
	}
	return c.JSON(entity)
}

// ListDuplicates returns matches of the last run, or of the graph when
// source=graph.
func (h *Handler) ListDuplicates(c fiber.Ctx) error {
	minScore := fiber.Query[float64](c, "minScore", 0)
	if minScore < 0 || minScore > 1 {
		return c.Status(400).JSON(fiber.Map{"error": "minScore must be within [0,1]"})
	}

	if c.Query("source") == "graph" {
		if h.opts.Graph == nil {
			return c.Status(503).JSON(fiber.Map{"error": "graph storage is not enabled"})
		}
		dups, err := h.opts.Graph.ListDuplicates(c.Context(), h.opts.Project, minScore)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(dups)
	}

	report := h.opts.Pipeline.Last()
	if report == nil {
		return c.JSON([]duplicates.Match{})
	}
	matches := report.Duplicates(minScore)
	if matches == nil {
		matches = []duplicates.Match{}
	}
	return c.JSON(matches)
}

// GetGraph returns the stored entity graph for visualization
func (h *Handler) GetGraph(c fiber.Ctx) error {
	if h.opts.Graph == nil {
		return c.Status(503).JSON(fiber.Map{"error": "graph storage is not enabled"})
	}
	graph, err := h.opts.Graph.GetGraph(c.Context(), h.opts.Project)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(graph)
}

// Search performs semantic search over the vector store
func (h *Handler) Search(c fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return c.Status(400).JSON(fiber.Map{"error": "query parameter 'q' is required"})
	}

	limit := fiber.Query[int](c, "limit", 10)
	if limit < 1 || limit > 100 {
		limit = 10
	}

	results, err := h.opts.Pipeline.Search(c.Context(), query, limit)
	if errors.Is(err, embedding.ErrDisabled) {
		return c.Status(503).JSON(fiber.Map{"error": "no embedding provider configured"})
	}
	if err != nil {
		return c.Status(502).JSON(fiber.Map{"error": "search failed: " + err.Error()})
	}
	if results == nil {
		results = []vectorstore.Match{}
	}
	return c.JSON(results)
}

type compareRequest struct {
	A        string `json:"a"`
	B        string `json:"b"`
	Language string `json:"language"`
}

// Compare scores two snippets structurally
func (h *Handler) Compare(c fiber.Ctx) error {
	var req compareRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.A) == "" || strings.TrimSpace(req.B) == "" {
		return c.Status(400).JSON(fiber.Map{"error": "a and b are required"})
	}
	return c.JSON(h.opts.Pipeline.Compare(c.Context(), req.A, req.B, req.Language, h.opts.StructuralThreshold))
}

// ClearCache drops every cached description
func (h *Handler) ClearCache(c fiber.Ctx) error {
	if err := h.opts.Pipeline.ClearCache(); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(204)
}

// AddVector embeds one document and stores it for search
func (h *Handler) AddVector(c fiber.Ctx) error {
	var doc analysis.Document
	if err := c.Bind().Body(&doc); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	entry, err := h.opts.Pipeline.AddDocument(c.Context(), doc)
	switch {
	case errors.Is(err, analysis.ErrInvalidDocument):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, embedding.ErrDisabled):
		return c.Status(503).JSON(fiber.Map{"error": "no embedding provider configured"})
	case err != nil:
		return c.Status(502).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(201).JSON(fiber.Map{
		"status": "success",
		"id":     entry.ID,
		"docId":  doc.ID,
	})
}

// AddVectorBatch accepts documents and embeds them in the background
func (h *Handler) AddVectorBatch(c fiber.Ctx) error {
	var docs []analysis.Document
	if err := c.Bind().Body(&docs); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "body must be an array of documents"})
	}
	if len(docs) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "no documents given"})
	}
	if !h.opts.Pipeline.EmbeddingsEnabled() {
		return c.Status(503).JSON(fiber.Map{"error": "no embedding provider configured"})
	}

	h.bg.Add(1)
	go func() {
		defer h.bg.Done()
		if _, err := h.opts.Pipeline.AddDocuments(h.bgCtx, docs); err != nil {
			h.logger.WithError(err).WithField("documents", len(docs)).Warn("document batch interrupted")
		}
	}()

	return c.Status(202).JSON(fiber.Map{
		"status": "processing",
		"count":  len(docs),
	})
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// Chat answers a question with the description provider, grounded on the
// closest stored code
func (h *Handler) Chat(c fiber.Ctx) error {
	var req chatRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(400).JSON(fiber.Map{"error": "message is required"})
	}

	answer, err := h.opts.Pipeline.Chat(c.Context(), req.Message, req.SessionID)
	if errors.Is(err, describe.ErrDisabled) {
		return c.Status(503).JSON(fiber.Map{"error": "no description provider configured"})
	}
	if err != nil {
		return c.Status(502).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(answer)
}
