package describe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dpolishuk/codesense/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var ErrDisabled = errors.New("no description provider configured")

const maxPromptSource = 4000

type ServiceConfig struct {
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

type Service struct {
	describer Describer
	cfg       ServiceConfig
	limiter   *rate.Limiter
	logger    logrus.FieldLogger
}

// NewService wraps describer; a nil describer makes every call fail with
// ErrDisabled.
func NewService(describer Describer, cfg ServiceConfig, logger logrus.FieldLogger) *Service {
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
		describer: describer,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, cfg.Burst),
		logger:    logger.WithField("component", "describe"),
	}
}

func (s *Service) Provider() string {
	if s.describer == nil {
		return "none"
	}
	return s.describer.Name()
}

// Describe asks the provider for a description of e. Failures and empty
// answers are returned as a failed Result; see Fallback.
func (s *Service) Describe(ctx context.Context, e *models.Entity) models.Result[string] {
	if s.describer == nil {
		return models.Failure[string](ErrDisabled)
	}
	text, err := s.complete(ctx, Prompt(e))
	if err != nil {
		return s.fail(e, err)
	}
	return models.Success(text)
}

// Ask sends a free-form prompt to the provider, sharing the rate limit and
// timeout of Describe. There is no fallback answer.
func (s *Service) Ask(ctx context.Context, prompt string) models.Result[string] {
	if s.describer == nil {
		return models.Failure[string](ErrDisabled)
	}
	text, err := s.complete(ctx, prompt)
	if err != nil {
		s.logger.WithError(err).WithField("provider", s.describer.Name()).Warn("prompt failed")
		return models.Failure[string](fmt.Errorf("failed to get an answer: %w", err))
	}
	return models.Success(text)
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	text, err := s.describer.Describe(ctx, prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("provider returned an empty answer")
	}
	return text, nil
}

func (s *Service) fail(e *models.Entity, err error) models.Result[string] {
	s.logger.WithError(err).WithFields(logrus.Fields{
		"provider": s.describer.Name(),
		"entity":   e.Key(),
	}).Warn("description failed")
	return models.Failure[string](fmt.Errorf("failed to describe %s: %w", e.Key(), err))
}

// Fallback is the deterministic description used when no provider answer is
// available.
func Fallback(e *models.Entity) string {
	return fmt.Sprintf("A %s that renders a %s element", e.Kind, e.Name)
}

// Prompt renders the request sent to the provider.
func Prompt(e *models.Entity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Describe the %s %q defined in %s.\n", e.Kind, e.Name, e.FilePath)
	if len(e.Props) > 0 {
		fmt.Fprintf(&b, "Props: %s\n", strings.Join(e.Props, ", "))
	}
	if len(e.Methods) > 0 {
		names := make([]string, len(e.Methods))
		for i, m := range e.Methods {
			names[i] = m.Name
		}
		fmt.Fprintf(&b, "Methods: %s\n", strings.Join(names, ", "))
	}
	src := e.SourceCode
	if len(src) > maxPromptSource {
		n := maxPromptSource
		for n > 0 && !utf8.RuneStart(src[n]) {
			n--
		}
		src = src[:n]
	}
	if src != "" {
		fmt.Fprintf(&b, "Source:\n%s\n", src)
	}
	return b.String()
}
