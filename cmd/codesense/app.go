package main

import (
	"context"
	"fmt"

	"github.com/dpolishuk/codesense/internal/analysis"
	"github.com/dpolishuk/codesense/internal/config"
	"github.com/dpolishuk/codesense/internal/db"
	"github.com/dpolishuk/codesense/internal/dedup"
	"github.com/dpolishuk/codesense/internal/desccache"
	"github.com/dpolishuk/codesense/internal/describe"
	"github.com/dpolishuk/codesense/internal/duplicates"
	"github.com/dpolishuk/codesense/internal/embedding"
	"github.com/dpolishuk/codesense/internal/fingerprint"
	"github.com/dpolishuk/codesense/internal/git"
	"github.com/dpolishuk/codesense/internal/indexer"
	"github.com/dpolishuk/codesense/internal/metrics"
	"github.com/dpolishuk/codesense/internal/similarity"
	"github.com/dpolishuk/codesense/internal/vectorstore"
	"github.com/sirupsen/logrus"
)

// app holds the wired components shared by every command.
type app struct {
	pipeline  *analysis.Pipeline
	scanner   *indexer.Scanner
	checkouts *git.Checkouts
	graph     *db.GraphReader
	neo4j     *db.Neo4jClient
	metrics   *metrics.Metrics
}

func newApp(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*app, error) {
	policy, err := dedup.ParsePolicy(cfg.Similarity.MergePolicy)
	if err != nil {
		return nil, err
	}

	engine := similarity.NewEngine(
		similarity.WithWeights(similarity.Weights{
			Skeleton: cfg.Similarity.SkeletonWeight,
			Tokens:   cfg.Similarity.TokenWeight,
			Length:   cfg.Similarity.LengthWeight,
		}),
		similarity.WithTrivialPrefixes(cfg.Similarity.TrivialPrefixes, cfg.Similarity.TrivialDelta),
	)
	detector := duplicates.NewDetector(engine, duplicates.Config{
		StructuralThreshold: cfg.Similarity.StructuralThreshold,
		SemanticThreshold:   cfg.Similarity.SemanticThreshold,
		SemanticTopK:        cfg.Similarity.SemanticTopK,
	}, logger)

	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	describer, err := newDescriber(cfg.Describe)
	if err != nil {
		return nil, err
	}

	a := &app{
		checkouts: git.NewCheckouts(cfg.Storage.ReposPath(), logger),
		metrics:   metrics.New(),
	}
	a.scanner = indexer.NewScanner(cfg.Workers, logger, indexer.WithFileLister(a.checkouts))

	deps := analysis.Deps{
		Dedup:         dedup.New(policy, logger),
		Fingerprinter: fingerprint.New(logger),
		Engine:        engine,
		Detector:      detector,
		Store:         vectorstore.Load(cfg.Storage.VectorPath(), cfg.Embedding.Dimension, logger),
		Embeddings: embedding.NewService(embedder, embedding.ServiceConfig{
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout,
			RateLimit: cfg.Embedding.RateLimit,
			Burst:     cfg.Embedding.Burst,
		}, logger),
		Descriptions: describe.NewService(describer, describe.ServiceConfig{
			Timeout:   cfg.Describe.Timeout,
			RateLimit: cfg.Describe.RateLimit,
			Burst:     cfg.Describe.Burst,
		}, logger),
		Cache:   desccache.Open(cfg.Storage.CachePath(), cfg.Storage.CacheFlushEvery, logger),
		Metrics: a.metrics,
	}

	if cfg.Neo4j.Enabled {
		client, err := db.NewNeo4jClient(ctx, db.Neo4jConfig{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.User,
			Password: cfg.Neo4j.Password,
		})
		if err != nil {
			logger.WithError(err).Warn("Neo4j unavailable, continuing without graph storage")
		} else {
			if err := client.EnsureSchema(ctx); err != nil {
				logger.WithError(err).Warn("failed to apply graph schema")
			}
			a.neo4j = client
			a.graph = db.NewGraphReader(client)
			deps.Graph = db.NewGraphWriter(client, logger)
		}
	}

	a.pipeline = analysis.NewPipeline(analysis.Config{
		Project:    cfg.Neo4j.Project,
		Workers:    cfg.Workers,
		VectorPath: cfg.Storage.VectorPath(),
		IndexPath:  cfg.Storage.IndexPath(),
	}, deps, logger)
	return a, nil
}

func (a *app) Close() {
	if a.neo4j != nil {
		a.neo4j.Close()
	}
}

func newEmbedder(c config.EmbeddingConfig) (embedding.Embedder, error) {
	switch c.Provider {
	case "tei":
		return embedding.NewTEIClient(c.URL, c.Timeout), nil
	case "openai":
		return embedding.NewOpenAIClient(c.APIKey, c.URL, c.Model, c.Dimension), nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", c.Provider)
}

func newDescriber(c config.DescribeConfig) (describe.Describer, error) {
	switch c.Provider {
	case "agent":
		return describe.NewAgentClient(c.URL, c.Timeout), nil
	case "openai":
		return describe.NewOpenAIClient(c.APIKey, c.URL, c.Model), nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown describe provider %q", c.Provider)
}
