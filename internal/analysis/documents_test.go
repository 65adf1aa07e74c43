package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/dpolishuk/codesense/internal/describe"
	"github.com/dpolishuk/codesense/internal/embedding"
	"github.com/dpolishuk/codesense/internal/models"
	"github.com/dpolishuk/codesense/internal/persist"
	"github.com/dpolishuk/codesense/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDocument(t *testing.T) {
	f := newFixture(t, &keywordEmbedder{}, nil, nil)

	entry, err := f.pipeline.AddDocument(context.Background(), Document{
		ID:       "users/fetch",
		Content:  "function fetchUser(id){return http.get(id)}",
		FilePath: "docs/users.js",
	})
	require.NoError(t, err)
	assert.Equal(t, vectorstore.EntryID("users/fetch"), entry.ID)
	assert.Equal(t, "users/fetch", entry.ComponentName, "name defaults to the id")

	stored, ok := f.store.Get(entry.ID)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0}, stored.Embedding)

	var saved []models.VectorEntry
	require.NoError(t, persist.ReadJSON(f.pipeline.cfg.VectorPath, &saved))
	assert.Len(t, saved, 1)

	results, err := f.pipeline.Search(context.Background(), "fetch a user", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, entry.ID, results[0].Entry.ID)
}

func TestAddDocumentErrors(t *testing.T) {
	f := newFixture(t, &keywordEmbedder{}, nil, nil)
	_, err := f.pipeline.AddDocument(context.Background(), Document{ID: "x"})
	assert.ErrorIs(t, err, ErrInvalidDocument)

	f = newFixture(t, nil, nil, nil)
	_, err = f.pipeline.AddDocument(context.Background(), Document{ID: "x", Content: "fetch"})
	assert.ErrorIs(t, err, embedding.ErrDisabled)

	f = newFixture(t, &keywordEmbedder{err: errors.New("down")}, nil, nil)
	_, err = f.pipeline.AddDocument(context.Background(), Document{ID: "x", Content: "fetch"})
	assert.Error(t, err)
	assert.Zero(t, f.store.Len(), "no fallback vector is stored for documents")
}

func TestAddDocumentsSkipsFailures(t *testing.T) {
	f := newFixture(t, &keywordEmbedder{}, nil, nil)

	added, err := f.pipeline.AddDocuments(context.Background(), []Document{
		{ID: "a", Content: "fetch users"},
		{ID: "b", Content: "render list"},
		{ID: "", Content: "no id"},
		{ID: "c", Content: "   "},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, f.store.Len())
}

func TestAddDocumentsCancelled(t *testing.T) {
	f := newFixture(t, &keywordEmbedder{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.AddDocuments(ctx, []Document{{ID: "a", Content: "fetch"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.store.Len())
}

func TestChatUsesStoredCode(t *testing.T) {
	desc := &fakeDescriber{}
	f := newFixture(t, &keywordEmbedder{}, desc, nil)
	_, err := f.pipeline.AddDocuments(context.Background(), []Document{
		{ID: "loader", Name: "loadUser", Content: "function loadUser(){return fetch('/user')}", FilePath: "src/user.js"},
		{ID: "view", Name: "View", Content: "function View(){return render()}", FilePath: "src/view.js"},
	})
	require.NoError(t, err)

	answer, err := f.pipeline.Chat(context.Background(), "how do we fetch the user?", "")
	require.NoError(t, err)
	assert.Equal(t, "Generated description.", answer.Response)
	assert.NotEmpty(t, answer.SessionID)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "loadUser", answer.Sources[0].Name)

	prompt := *desc.prompt.Load()
	assert.Contains(t, prompt, "### loadUser (src/user.js)")
	assert.Contains(t, prompt, "Question: how do we fetch the user?")
	assert.NotContains(t, prompt, "function View")

	again, err := f.pipeline.Chat(context.Background(), "and render?", answer.SessionID)
	require.NoError(t, err)
	assert.Equal(t, answer.SessionID, again.SessionID)
}

func TestChatWithoutEmbeddings(t *testing.T) {
	desc := &fakeDescriber{}
	f := newFixture(t, nil, desc, nil)

	answer, err := f.pipeline.Chat(context.Background(), "what is this repo?", "s1")
	require.NoError(t, err)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, "what is this repo?", *desc.prompt.Load())
}

func TestChatWithoutDescriber(t *testing.T) {
	f := newFixture(t, &keywordEmbedder{}, nil, nil)
	_, err := f.pipeline.Chat(context.Background(), "hi", "")
	assert.ErrorIs(t, err, describe.ErrDisabled)
}

func TestClipKeepsRunes(t *testing.T) {
	assert.Equal(t, "ab", clip("ab", 5))
	assert.Equal(t, "a", clip("aé", 2))
	assert.Equal(t, "aé", clip("aéz", 3))
}
