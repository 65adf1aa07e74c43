package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dpolishuk/codesense/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrDisabled          = errors.New("no embedding provider configured")
)

type ServiceConfig struct {
	Dimension int
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 = unlimited
	Burst     int
}

// Service wraps a provider with a per-call timeout, rate limiting and a
// fixed output dimension.
type Service struct {
	embedder Embedder
	cfg      ServiceConfig
	limiter  *rate.Limiter
	logger   logrus.FieldLogger
}

// NewService wraps embedder; a nil embedder makes every call fail with
// ErrDisabled.
func NewService(embedder Embedder, cfg ServiceConfig, logger logrus.FieldLogger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Service{
		embedder: embedder,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		logger:   logger.WithField("component", "embedding"),
	}
}

func (s *Service) Dimension() int { return s.cfg.Dimension }

func (s *Service) Provider() string {
	if s.embedder == nil {
		return "none"
	}
	return s.embedder.Name()
}

// ZeroVector is the documented fallback for a failed embedding. It scores 0
// against every vector.
func (s *Service) ZeroVector() []float32 {
	return make([]float32, s.cfg.Dimension)
}

// Embed embeds one text. Provider errors and timeouts are logged as warnings;
// a vector of the wrong length is logged as an error. In every failure case
// the caller decides on the fallback.
func (s *Service) Embed(ctx context.Context, text string) models.Result[[]float32] {
	if s.embedder == nil {
		return models.Failure[[]float32](ErrDisabled)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return s.fail(fmt.Errorf("rate limiter: %w", err))
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return s.fail(err)
	}
	if len(vectors) != 1 {
		return s.fail(fmt.Errorf("provider returned %d vectors for one input", len(vectors)))
	}

	vec := vectors[0]
	if s.cfg.Dimension > 0 && len(vec) != s.cfg.Dimension {
		err := fmt.Errorf("%w: %s returned %d, deployment expects %d", ErrDimensionMismatch, s.embedder.Name(), len(vec), s.cfg.Dimension)
		s.logger.WithError(err).Error("embedding provider dimension does not match deployment")
		return models.Failure[[]float32](err)
	}
	return models.Success(vec)
}

func (s *Service) fail(err error) models.Result[[]float32] {
	s.logger.WithError(err).WithField("provider", s.embedder.Name()).Warn("embedding failed")
	return models.Failure[[]float32](fmt.Errorf("failed to embed: %w", err))
}
