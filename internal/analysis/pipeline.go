// Package analysis runs the code intelligence pipeline: ingestion,
// deduplication, fingerprinting, the two-pass similarity search and the
// description pass.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dpolishuk/codesense/internal/dedup"
	"github.com/dpolishuk/codesense/internal/desccache"
	"github.com/dpolishuk/codesense/internal/describe"
	"github.com/dpolishuk/codesense/internal/duplicates"
	"github.com/dpolishuk/codesense/internal/embedding"
	"github.com/dpolishuk/codesense/internal/fingerprint"
	"github.com/dpolishuk/codesense/internal/metrics"
	"github.com/dpolishuk/codesense/internal/models"
	"github.com/dpolishuk/codesense/internal/persist"
	"github.com/dpolishuk/codesense/internal/similarity"
	"github.com/dpolishuk/codesense/internal/vectorstore"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// GraphSink receives every finished report, e.g. to mirror it into Neo4j.
type GraphSink interface {
	WriteAnalysis(ctx context.Context, project string, report *Report) error
}

type Config struct {
	Project    string
	Workers    int
	VectorPath string
	IndexPath  string
}

// Deps are the long-lived collaborators of a pipeline. Graph and Metrics are
// optional.
type Deps struct {
	Dedup         *dedup.Deduplicator
	Fingerprinter *fingerprint.Fingerprinter
	Engine        *similarity.Engine
	Detector      *duplicates.Detector
	Store         *vectorstore.Store
	Embeddings    *embedding.Service
	Descriptions  *describe.Service
	Cache         *desccache.Cache
	Metrics       *metrics.Metrics
	Graph         GraphSink
}

type Pipeline struct {
	cfg  Config
	deps Deps

	// runs share the store and the cache
	runMu sync.Mutex

	mu   sync.RWMutex
	last *Report

	logger logrus.FieldLogger
}

func NewPipeline(cfg Config, deps Deps, logger logrus.FieldLogger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Project == "" {
		cfg.Project = "default"
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: logger.WithField("component", "analysis"),
	}
}

// Last returns the most recent report, or nil before the first run.
func (p *Pipeline) Last() *Report {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.deps.Metrics
}

// Run analyzes one parser forest. Provider failures degrade to their
// fallbacks and malformed entities are skipped; the returned error covers
// cancellation only. Persistence failures are logged.
func (p *Pipeline) Run(ctx context.Context, raw []models.RawEntity) (*Report, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	start := time.Now()
	report := &Report{Project: p.cfg.Project}
	log := p.logger.WithField("project", p.cfg.Project)

	forest, warnings := models.Ingest(raw)
	for _, w := range warnings {
		log.Warn(w)
	}
	report.Stats.Skipped = len(warnings)
	p.deps.Metrics.EntitiesSkipped.Add(float64(len(warnings)))

	forest, ds := p.deps.Dedup.Dedup(forest)
	report.Stats.Entities = ds.Output
	report.Stats.Merged = ds.Merged

	blocks := p.deps.Fingerprinter.Blocks(ctx, forest)
	report.Stats.Blocks = len(blocks)

	// Pass 1 completes the store before pass 2 queries it.
	vectors, err := p.index(ctx, blocks, &report.Stats)
	if err != nil {
		return nil, err
	}

	structural := p.deps.Detector.Structural(blocks)
	var semantic []duplicates.Match
	if vectors != nil {
		semantic = p.deps.Detector.Semantic(blocks, vectors, p.deps.Store)
	}
	report.Matches = duplicates.Merge(structural, semantic)
	for _, m := range report.Matches {
		p.deps.Metrics.Warnings.WithLabelValues(string(m.Classification)).Inc()
	}
	forest = duplicates.Attach(forest, report.Matches)

	if err := p.describe(ctx, forest, &report.Stats); err != nil {
		return nil, err
	}
	p.annotate(forest)

	report.Forest = forest
	report.Index = models.BuildIndex(forest)
	report.Stats.Warnings = duplicates.Warnings(forest)
	p.persist(report)

	if p.deps.Graph != nil {
		if err := p.deps.Graph.WriteAnalysis(ctx, p.cfg.Project, report); err != nil {
			log.WithError(err).Warn("failed to write analysis to graph")
		}
	}

	report.Stats.Duration = time.Since(start)
	p.deps.Metrics.RunDuration.Observe(report.Stats.Duration.Seconds())
	log.WithFields(logrus.Fields{
		"entities": report.Stats.Entities,
		"blocks":   report.Stats.Blocks,
		"matches":  len(report.Matches),
		"duration": report.Stats.Duration,
	}).Info("Analysis complete")

	p.mu.Lock()
	p.last = report
	p.mu.Unlock()
	return report, nil
}

// index embeds every block and writes it to the store. It returns nil when
// no embedding provider is configured.
func (p *Pipeline) index(ctx context.Context, blocks []models.CodeBlock, stats *Stats) (map[string][]float32, error) {
	emb := p.deps.Embeddings
	if emb == nil || emb.Provider() == "none" {
		p.logger.Info("No embedding provider configured, skipping semantic pass")
		return nil, nil
	}

	vectors := make([][]float32, len(blocks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i := range blocks {
		b := &blocks[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			id := vectorstore.EntryID(b.ID())
			if prev, ok := p.deps.Store.Get(id); ok && reusable(prev, b, emb.Dimension()) {
				vectors[i] = prev.Embedding
				mu.Lock()
				stats.Reused++
				mu.Unlock()
				return nil
			}

			res := emb.Embed(gctx, b.Code)
			if !res.OK() {
				p.deps.Metrics.ProviderFallbacks.WithLabelValues(emb.Provider()).Inc()
				mu.Lock()
				stats.EmbedFallbacks++
				mu.Unlock()
			}
			vectors[i] = res.OrElse(emb.ZeroVector())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byBlock := make(map[string][]float32, len(blocks))
	for i := range blocks {
		b := &blocks[i]
		byBlock[b.ID()] = vectors[i]
		err := p.deps.Store.Insert(models.VectorEntry{
			ID:            vectorstore.EntryID(b.ID()),
			Embedding:     vectors[i],
			Code:          b.Code,
			ComponentName: b.EntityName,
			MethodName:    b.MethodName,
			FilePath:      b.FilePath,
		})
		if err != nil {
			p.logger.WithError(err).WithField("block", b.ID()).Warn("failed to index block")
			continue
		}
		stats.Indexed++
		p.deps.Metrics.BlocksIndexed.Inc()
	}
	return byBlock, nil
}

func reusable(prev models.VectorEntry, b *models.CodeBlock, dim int) bool {
	if prev.Code != b.Code || (dim > 0 && len(prev.Embedding) != dim) {
		return false
	}
	for _, x := range prev.Embedding {
		if x != 0 {
			return true
		}
	}
	return false
}

// describe fills Description on every entity of forest, consulting the cache
// first. Fallback descriptions are not cached so a later run retries the
// provider.
func (p *Pipeline) describe(ctx context.Context, forest []models.Entity, stats *Stats) error {
	var entities []*models.Entity
	models.WalkForest(forest, func(e *models.Entity) { entities = append(entities, e) })

	var mu sync.Mutex
	count := func(field *int) {
		mu.Lock()
		*field++
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, e := range entities {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			key := desccache.Key(e)
			unlock := p.deps.Cache.Lock(key)
			defer unlock()

			hash := desccache.ContentHash(e)
			if desc, _, ok := p.deps.Cache.Get(key, hash); ok {
				p.deps.Metrics.CacheLookups.WithLabelValues("hit").Inc()
				count(&stats.CacheHits)
				e.Description = desc
				return nil
			}
			p.deps.Metrics.CacheLookups.WithLabelValues("miss").Inc()

			fields := desccache.FieldHashes(e)
			if prev, ok := p.deps.Cache.Record(key); ok {
				p.logger.WithFields(logrus.Fields{
					"entity":  key,
					"changed": desccache.ChangedFields(prev.FieldHashes, fields),
				}).Debug("description is stale")
			}

			res := p.deps.Descriptions.Describe(gctx, e)
			if !res.OK() {
				if !errors.Is(res.Err, describe.ErrDisabled) {
					p.deps.Metrics.ProviderFallbacks.WithLabelValues(p.deps.Descriptions.Provider()).Inc()
				}
				count(&stats.DescribeFallbacks)
				e.Description = describe.Fallback(e)
				return nil
			}
			count(&stats.Described)
			e.Description = res.Value
			p.deps.Cache.Put(key, hash, res.Value, fields)
			return nil
		})
	}
	return g.Wait()
}

// annotate copies entity descriptions onto their stored body vectors.
func (p *Pipeline) annotate(forest []models.Entity) {
	models.WalkForest(forest, func(e *models.Entity) {
		id := vectorstore.EntryID(e.Key())
		entry, ok := p.deps.Store.Get(id)
		if !ok || entry.Description == e.Description {
			return
		}
		entry.Description = e.Description
		if err := p.deps.Store.Insert(entry); err != nil {
			p.logger.WithError(err).WithField("entity", e.Key()).Debug("failed to annotate vector entry")
		}
	})
}

func (p *Pipeline) persist(report *Report) {
	if err := p.deps.Cache.Flush(); err != nil {
		p.logger.WithError(err).Warn("failed to flush description cache")
	}
	if p.cfg.VectorPath != "" && p.deps.Embeddings != nil && p.deps.Embeddings.Provider() != "none" {
		if err := p.deps.Store.Save(p.cfg.VectorPath); err != nil {
			p.logger.WithError(err).Warn("failed to save vector store")
		}
	}
	if p.cfg.IndexPath != "" {
		if err := persist.WriteJSON(p.cfg.IndexPath, report.Index); err != nil {
			p.logger.WithError(err).Warn("failed to save entity index")
		}
	}
}

// Search embeds free text and returns the closest stored blocks.
func (p *Pipeline) Search(ctx context.Context, text string, topK int) ([]vectorstore.Match, error) {
	if p.deps.Embeddings == nil {
		return nil, embedding.ErrDisabled
	}
	res := p.deps.Embeddings.Embed(ctx, text)
	if !res.OK() {
		return nil, fmt.Errorf("failed to embed query: %w", res.Err)
	}
	return p.deps.Store.Query(res.Value, topK, 0), nil
}

// Comparison is the structural verdict on two snippets.
type Comparison struct {
	Score          float64               `json:"score"`
	Classification models.Classification `json:"classification,omitempty"`
	Similar        bool                  `json:"similar"`
	HashA          string                `json:"hashA"`
	HashB          string                `json:"hashB"`
}

// Compare scores two snippets of the same language against the structural
// threshold.
func (p *Pipeline) Compare(ctx context.Context, a, b, language string, threshold float64) Comparison {
	ba := p.deps.Fingerprinter.Code(ctx, a, language)
	bb := p.deps.Fingerprinter.Code(ctx, b, language)
	score := p.deps.Engine.Structural(&ba, &bb)

	c := Comparison{Score: score, HashA: ba.Hash, HashB: bb.Hash}
	if score >= threshold {
		c.Similar = true
		c.Classification = duplicates.Classify(score)
	}
	return c
}

// ClearCache drops every cached description, in memory and on disk.
func (p *Pipeline) ClearCache() error {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.deps.Cache.Clear()
}
