package desccache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dpolishuk/codesense/internal/models"
	"github.com/dpolishuk/codesense/internal/persist"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openCache(t *testing.T, path string, flushEvery int) *Cache {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return Open(path, flushEvery, logger)
}

func button() models.Entity {
	return models.Entity{
		Name:       "Button",
		FilePath:   "src/Button.jsx",
		Kind:       models.KindComponent,
		Props:      []string{"label", "onClick"},
		SourceCode: "function Button({label}){return <button>{label}</button>}",
	}
}

func TestContentHashTracksEveryAttribute(t *testing.T) {
	base := button()
	h := ContentHash(&base)
	assert.Equal(t, h, ContentHash(&base))

	mutations := map[string]func(e *models.Entity){
		FieldName:     func(e *models.Entity) { e.Name = "Btn" },
		FieldFilePath: func(e *models.Entity) { e.FilePath = "src/Btn.jsx" },
		FieldProps:    func(e *models.Entity) { e.Props = append(e.Props, "disabled") },
		FieldSource:   func(e *models.Entity) { e.SourceCode += " " },
	}
	for field, mutate := range mutations {
		t.Run(field, func(t *testing.T) {
			e := button()
			mutate(&e)
			assert.NotEqual(t, h, ContentHash(&e))
			assert.Equal(t, []string{field}, ChangedFields(FieldHashes(&base), FieldHashes(&e)))
		})
	}

	e := button()
	e.Description = "ignored"
	assert.Equal(t, h, ContentHash(&e), "description is output, not input")
}

func TestContentHashFieldBoundaries(t *testing.T) {
	a := models.Entity{Name: "ab", FilePath: "c"}
	b := models.Entity{Name: "a", FilePath: "bc"}
	assert.NotEqual(t, ContentHash(&a), ContentHash(&b))

	p1 := models.Entity{Name: "x", Props: []string{"a", "b"}}
	p2 := models.Entity{Name: "x", Props: []string{"ab"}}
	assert.NotEqual(t, ContentHash(&p1), ContentHash(&p2))
}

func TestGetMissesOnChangedContent(t *testing.T) {
	c := openCache(t, "", 0)
	e := button()
	h1 := ContentHash(&e)
	c.Put(Key(&e), h1, "D1", FieldHashes(&e))

	desc, fields, ok := c.Get(Key(&e), h1)
	require.True(t, ok)
	assert.Equal(t, "D1", desc)
	assert.Equal(t, FieldHashes(&e), fields)

	e.SourceCode = "function Button(){return null}"
	h2 := ContentHash(&e)
	desc, _, ok = c.Get(Key(&e), h2)
	assert.False(t, ok)
	assert.Empty(t, desc, "stale description must never be returned")

	rec, found := c.Record(Key(&e))
	require.True(t, found, "a miss does not delete the record")
	assert.Equal(t, h1, rec.ContentHash)
}

func TestPutOnlyInvalidatesOneKey(t *testing.T) {
	c := openCache(t, "", 0)
	c.Put("A:a.js", "h-a", "desc a", nil)
	c.Put("B:b.js", "h-b", "desc b", nil)

	c.Put("A:a.js", "h-a2", "desc a2", nil)

	_, _, ok := c.Get("A:a.js", "h-a")
	assert.False(t, ok)
	desc, _, ok := c.Get("B:b.js", "h-b")
	assert.True(t, ok)
	assert.Equal(t, "desc b", desc)
}

func TestFlushBatching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := openCache(t, path, 3)

	c.Put("a", "1", "A", nil)
	c.Put("b", "2", "B", nil)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no write before the batch is full")

	c.Put("c", "3", "C", nil)
	var onDisk map[string]models.CacheRecord
	require.NoError(t, persist.ReadJSON(path, &onDisk))
	assert.Len(t, onDisk, 3)

	c.Put("d", "4", "D", nil)
	require.NoError(t, c.Flush())

	reopened := openCache(t, path, 3)
	assert.Equal(t, 4, reopened.Len())
	desc, _, ok := reopened.Get("d", "4")
	assert.True(t, ok)
	assert.Equal(t, "D", desc)
}

func TestOpenMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`["not", "a", "map"]`), 0o644))

	logger, hook := test.NewNullLogger()
	c := Open(path, 1, logger)

	assert.Zero(t, c.Len())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	c.Put("a", "1", "A", nil)
	reopened := openCache(t, path, 1)
	assert.Equal(t, 1, reopened.Len(), "the malformed document is replaced on the next flush")
}

func TestFlushFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	logger, hook := test.NewNullLogger()
	c := Open(filepath.Join(blocker, "cache.json"), 1, logger)

	c.Put("a", "1", "A", nil)

	desc, _, ok := c.Get("a", "1")
	assert.True(t, ok)
	assert.Equal(t, "A", desc)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Error(t, c.Flush(), "pending writes are retried")
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := openCache(t, path, 1)
	c.Put("a", "1", "A", nil)

	require.NoError(t, c.Clear())
	assert.Zero(t, c.Len())
	assert.Zero(t, openCache(t, path, 1).Len())
}

func TestLockSerializesSameKey(t *testing.T) {
	c := openCache(t, "", 1000)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  = map[string]int{}
		maxSeen = map[string]int{}
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			unlock := c.Lock(key)
			defer unlock()

			mu.Lock()
			inside[key]++
			maxSeen[key] = max(maxSeen[key], inside[key])
			mu.Unlock()

			if _, _, ok := c.Get(key, "h"); !ok {
				c.Put(key, "h", key, nil)
			}

			mu.Lock()
			inside[key]--
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	for key, n := range maxSeen {
		assert.Equal(t, 1, n, key)
	}
	assert.Equal(t, 4, c.Len())
}
