package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScanDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	writeFile(t, filepath.Join(tmpDir, "main.go"), `package main

func main() {
	println("Hello")
}

func helper() int {
	return 42
}
`)
	writeFile(t, filepath.Join(tmpDir, "utils", "utils.py"), `def greet(name):
    return f"Hello, {name}"

class Helper:
    def run(self):
        pass
`)
	writeFile(t, filepath.Join(tmpDir, "README.md"), "# readme\n")

	logger, _ := test.NewNullLogger()
	result, err := NewScanner(2, logger).ScanDirectory(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("ScanDirectory failed: %v", err)
	}

	if result.FilesProcessed != 2 {
		t.Errorf("Expected 2 files processed, got %d", result.FilesProcessed)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Unexpected errors: %v", result.Errors)
	}

	var names, paths []string
	for _, e := range result.Entities {
		names = append(names, e.Name)
		paths = append(paths, e.FilePath)
	}
	want := []string{"main", "helper", "greet", "Helper"}
	if len(names) != len(want) {
		t.Fatalf("Expected entities %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entity %d: expected %s, got %s", i, want[i], names[i])
		}
	}
	if paths[0] != "main.go" || paths[2] != "utils/utils.py" {
		t.Errorf("Expected relative slash paths, got %v", paths)
	}
}

func TestSkipIgnoredDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	writeFile(t, filepath.Join(tmpDir, "node_modules", "pkg", "index.js"), "function ignored() {}\n")
	writeFile(t, filepath.Join(tmpDir, "vendor", "lib.go"), "package lib\nfunc Ignored() {}\n")
	writeFile(t, filepath.Join(tmpDir, "app.js"), "function app() {}\n")

	logger, _ := test.NewNullLogger()
	result, err := NewScanner(0, logger).ScanDirectory(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("ScanDirectory failed: %v", err)
	}

	if result.FilesProcessed != 1 {
		t.Errorf("Expected 1 file processed (node_modules and vendor skipped), got %d", result.FilesProcessed)
	}
	if len(result.Entities) != 1 || result.Entities[0].Name != "app" {
		t.Errorf("Expected only app, got %+v", result.Entities)
	}
}

func TestScanDirectoryDeterministic(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"c.go", "a.go", "b.go", "d.go", "e.go"} {
		writeFile(t, filepath.Join(tmpDir, name), "package x\nfunc F() {}\n")
	}

	logger, _ := test.NewNullLogger()
	scanner := NewScanner(4, logger)
	for run := 0; run < 3; run++ {
		result, err := scanner.ScanDirectory(context.Background(), tmpDir)
		if err != nil {
			t.Fatal(err)
		}
		for i, want := range []string{"a.go", "b.go", "c.go", "d.go", "e.go"} {
			if result.Entities[i].FilePath != want {
				t.Fatalf("run %d: entity %d from %s, want %s", run, i, result.Entities[i].FilePath, want)
			}
		}
	}
}

func TestScanDirectoryMissing(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := NewScanner(1, logger).ScanDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestScanDirectoryCancelled(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "a.go"), "package x\nfunc F() {}\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	logger, _ := test.NewNullLogger()
	if _, err := NewScanner(1, logger).ScanDirectory(ctx, tmpDir); err == nil {
		t.Fatal("expected context error")
	}
}

type fakeLister struct {
	files []string
	err   error
}

func (f *fakeLister) IsRepository(dir string) bool { return true }

func (f *fakeLister) ListFiles(ctx context.Context, dir string) ([]string, error) {
	return f.files, f.err
}

func TestScanDirectoryUsesFileLister(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "tracked.go"), "package x\nfunc Tracked() {}\n")
	writeFile(t, filepath.Join(tmpDir, "ignored.go"), "package x\nfunc Ignored() {}\n")
	writeFile(t, filepath.Join(tmpDir, "vendor", "dep.go"), "package dep\nfunc Dep() {}\n")

	logger, _ := test.NewNullLogger()
	lister := &fakeLister{files: []string{"vendor/dep.go", "tracked.go", "notes.txt"}}
	result, err := NewScanner(2, logger, WithFileLister(lister)).ScanDirectory(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("ScanDirectory failed: %v", err)
	}
	if len(result.Entities) != 1 || result.Entities[0].Name != "Tracked" {
		t.Errorf("Expected only Tracked, got %+v", result.Entities)
	}
}

func TestScanDirectoryListerFailureFallsBack(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "a.go"), "package x\nfunc A() {}\n")

	logger, hook := test.NewNullLogger()
	lister := &fakeLister{err: os.ErrPermission}
	result, err := NewScanner(1, logger, WithFileLister(lister)).ScanDirectory(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("ScanDirectory failed: %v", err)
	}
	if result.FilesProcessed != 1 {
		t.Errorf("Expected walk fallback to find a.go, got %d files", result.FilesProcessed)
	}
	if len(hook.AllEntries()) == 0 {
		t.Error("Expected a warning for the lister failure")
	}
}
