// Package git checks out remote repositories for analysis and lists the
// files git tracks in a work tree.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

type Checkouts struct {
	basePath string
	logger   logrus.FieldLogger
}

func NewCheckouts(basePath string, logger logrus.FieldLogger) *Checkouts {
	return &Checkouts{basePath: basePath, logger: logger.WithField("component", "git")}
}

// Checkout clones url under the base path, or fast-forwards an existing
// clone, and returns the work tree path.
func (s *Checkouts) Checkout(ctx context.Context, url, branch string) (string, error) {
	repoPath := filepath.Join(s.basePath, RepoName(url))

	if s.IsRepository(repoPath) {
		s.logger.WithField("path", repoPath).Info("Updating checkout")
		return repoPath, s.Pull(ctx, repoPath)
	}

	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return "", fmt.Errorf("failed to create repos directory: %w", err)
	}

	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, repoPath)

	s.logger.WithFields(logrus.Fields{"url": url, "branch": branch}).Info("Cloning repository")
	if out, err := s.git(ctx, "", args...); err != nil {
		return "", fmt.Errorf("git clone failed: %w: %s", err, out)
	}
	return repoPath, nil
}

func (s *Checkouts) Pull(ctx context.Context, repoPath string) error {
	if out, err := s.git(ctx, repoPath, "pull", "--ff-only"); err != nil {
		return fmt.Errorf("git pull failed: %w: %s", err, out)
	}
	return nil
}

// Head returns the commit hash checked out in repoPath.
func (s *Checkouts) Head(ctx context.Context, repoPath string) (string, error) {
	out, err := s.git(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get commit hash: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// IsRepository reports whether dir is the root of a git work tree.
func (s *Checkouts) IsRepository(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// ListFiles returns tracked and untracked, non-ignored files of the work tree
// at repoPath, slash-separated and relative to it.
func (s *Checkouts) ListFiles(ctx context.Context, repoPath string) ([]string, error) {
	out, err := s.git(ctx, repoPath, "ls-files", "-z", "--cached", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var files []string
	for _, name := range bytes.Split(out, []byte{0}) {
		if len(name) > 0 {
			files = append(files, string(name))
		}
	}
	return files, nil
}

func (s *Checkouts) git(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return bytes.TrimSpace(stderr.Bytes()), err
	}
	return out, nil
}

// RepoName extracts the repository name from an HTTPS or SSH url.
func RepoName(url string) string {
	url = strings.TrimSuffix(strings.TrimSuffix(url, "/"), ".git")

	if strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://") {
		parts := strings.Split(url, "/")
		return parts[len(parts)-1]
	}

	// git@github.com:owner/repo
	if _, path, ok := strings.Cut(url, ":"); ok {
		parts := strings.Split(path, "/")
		return parts[len(parts)-1]
	}

	return url
}
