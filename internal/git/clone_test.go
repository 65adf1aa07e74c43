package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

func TestRepoName(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://github.com/owner/repo", "repo"},
		{"https://github.com/owner/repo.git", "repo"},
		{"https://github.com/owner/repo/", "repo"},
		{"git@github.com:owner/repo.git", "repo"},
		{"http://gitlab.com/group/project", "project"},
		{"local", "local"},
	}

	for _, tt := range tests {
		got := RepoName(tt.url)
		if got != tt.expected {
			t.Errorf("RepoName(%s) = %s, want %s", tt.url, got, tt.expected)
		}
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-q")

	files := map[string]string{
		".gitignore":     "generated/\n",
		"main.go":        "package main\n",
		"pkg/util.go":    "package pkg\n",
		"generated/x.go": "package generated\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	run("add", ".gitignore", "main.go")
	return dir
}

func TestListFiles(t *testing.T) {
	dir := initRepo(t)
	logger, _ := test.NewNullLogger()
	checkouts := NewCheckouts(t.TempDir(), logger)

	if !checkouts.IsRepository(dir) {
		t.Fatal("expected a git work tree")
	}

	files, err := checkouts.ListFiles(context.Background(), dir)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	sort.Strings(files)

	want := []string{".gitignore", "main.go", "pkg/util.go"}
	if len(files) != len(want) {
		t.Fatalf("ListFiles = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("file %d = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestIsRepository(t *testing.T) {
	logger, _ := test.NewNullLogger()
	if NewCheckouts("", logger).IsRepository(t.TempDir()) {
		t.Error("plain directory reported as repository")
	}
}

func TestCheckout(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	logger, _ := test.NewNullLogger()
	checkouts := NewCheckouts(t.TempDir(), logger)

	repoPath, err := checkouts.Checkout(context.Background(), "https://github.com/kelseyhightower/nocode", "master")
	if err != nil {
		t.Fatalf("Failed to clone: %v", err)
	}

	if _, err := os.Stat(filepath.Join(repoPath, "README.md")); os.IsNotExist(err) {
		t.Error("Expected README.md to exist")
	}

	head, err := checkouts.Head(context.Background(), repoPath)
	if err != nil || len(head) != 40 {
		t.Errorf("Head = %q, %v", head, err)
	}

	// second checkout pulls
	if _, err := checkouts.Checkout(context.Background(), "https://github.com/kelseyhightower/nocode", "master"); err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
}
