package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dpolishuk/codesense/internal/models"
	"github.com/dpolishuk/codesense/pkg/treesitter"
	"github.com/sirupsen/logrus"
)

// DefaultWorkers bounds how many files are parsed at once.
const DefaultWorkers = 4

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".codesense":   true,
}

// FileLister enumerates the files of a version-controlled work tree, e.g.
// honoring its ignore rules.
type FileLister interface {
	IsRepository(dir string) bool
	ListFiles(ctx context.Context, dir string) ([]string, error)
}

// Scanner walks a source tree and extracts the raw entity forest of every
// supported file.
type Scanner struct {
	workers int
	lister  FileLister
	logger  logrus.FieldLogger
}

type ScannerOption func(*Scanner)

// WithFileLister lists files of repositories through l instead of walking
// the directory.
func WithFileLister(l FileLister) ScannerOption {
	return func(s *Scanner) { s.lister = l }
}

// ScanResult is the outcome of one directory scan. Entities are ordered by
// file path, then by position within the file.
type ScanResult struct {
	Root           string
	FilesProcessed int
	Entities       []models.RawEntity
	Errors         []string
}

func NewScanner(workers int, logger logrus.FieldLogger, opts ...ScannerOption) *Scanner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	s := &Scanner{
		workers: workers,
		logger:  logger.WithField("component", "scanner"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type fileResult struct {
	entities []models.RawEntity
	err      error
}

func (s *Scanner) ScanDirectory(ctx context.Context, dirPath string) (*ScanResult, error) {
	files, err := s.listFiles(ctx, dirPath)
	if err != nil {
		return nil, err
	}

	results := make([]fileResult, len(files))
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)

	for i, relPath := range files {
		wg.Add(1)
		go func(i int, relPath string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i].err = ctx.Err()
				return
			}
			defer func() { <-sem }()

			// parsers are not goroutine safe
			extractor := NewExtractor()
			defer extractor.Close()
			results[i].entities, results[i].err = s.processFile(ctx, extractor, dirPath, relPath)
		}(i, relPath)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &ScanResult{Root: dirPath}
	for i, r := range results {
		if r.err != nil {
			s.logger.WithError(r.err).WithField("file", files[i]).Warn("Skipping file")
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", files[i], r.err))
			continue
		}
		result.FilesProcessed++
		result.Entities = append(result.Entities, r.entities...)
	}

	s.logger.WithFields(logrus.Fields{
		"files":    result.FilesProcessed,
		"entities": len(result.Entities),
		"errors":   len(result.Errors),
	}).Info("Scan complete")
	return result, nil
}

// listFiles returns the supported files under dirPath as sorted,
// slash-separated relative paths.
func (s *Scanner) listFiles(ctx context.Context, dirPath string) ([]string, error) {
	if s.lister != nil && s.lister.IsRepository(dirPath) {
		listed, err := s.lister.ListFiles(ctx, dirPath)
		if err == nil {
			return supported(listed), nil
		}
		s.logger.WithError(err).Warn("Falling back to directory walk")
	}

	var files []string
	err := filepath.WalkDir(dirPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dirPath && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if treesitter.DetectLanguage(p) == "" {
			return nil
		}
		relPath, err := filepath.Rel(dirPath, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(relPath))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func supported(paths []string) []string {
	var files []string
outer:
	for _, p := range paths {
		if treesitter.DetectLanguage(p) == "" {
			continue
		}
		for _, dir := range strings.Split(path.Dir(p), "/") {
			if skipDirs[dir] {
				continue outer
			}
		}
		files = append(files, p)
	}
	sort.Strings(files)
	return files
}

func (s *Scanner) processFile(ctx context.Context, extractor *Extractor, dirPath, relPath string) ([]models.RawEntity, error) {
	content, err := os.ReadFile(filepath.Join(dirPath, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	entities, err := extractor.Extract(ctx, content, treesitter.DetectLanguage(relPath), relPath)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	return entities, nil
}
