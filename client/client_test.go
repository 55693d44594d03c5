package client

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trix/internal/api"
	trixerrors "trix/internal/errors"
	"trix/internal/repository"
	"trix/internal/safe"
)

type fixture struct {
	client *Client
	first  safe.Hash
	second safe.Hash
}

func setupTestServer(t *testing.T) *fixture {
	root := t.TempDir()
	require.NoError(t, repository.Init(root))

	repo, err := repository.Open(root, nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	path := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))
	_, err = repo.Add(path)
	require.NoError(t, err)
	first, err := repo.Commit("first")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("hello2"), 0644))
	_, err = repo.Add(path)
	require.NoError(t, err)
	second, err := repo.Commit("second")
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewHistoryHandler(repo, nil).Routes())
	t.Cleanup(srv.Close)

	return &fixture{client: New(srv.URL + "/"), first: first, second: second}
}

func TestHealth(t *testing.T) {
	f := setupTestServer(t)
	assert.NoError(t, f.client.Health())
}

func TestLog(t *testing.T) {
	f := setupTestServer(t)

	commits, err := f.client.Log(0)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, f.second, commits[0].Hash)
	assert.Equal(t, f.first, commits[0].Parent)
	assert.Equal(t, "first", commits[1].Message)
	assert.True(t, commits[1].Parent.IsZero())

	commits, err = f.client.Log(1)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "second", commits[0].Message)
}

func TestCommit(t *testing.T) {
	f := setupTestServer(t)

	t.Run("first commit carries content", func(t *testing.T) {
		report, err := f.client.Commit(string(f.first))
		require.NoError(t, err)
		require.Len(t, report.Files, 1)
		assert.Equal(t, "first commit", report.Files[0].Classification)
		assert.Equal(t, "hello", report.Files[0].Content)
	})

	t.Run("modified file carries hunks", func(t *testing.T) {
		report, err := f.client.Commit("HEAD")
		require.NoError(t, err)
		assert.Equal(t, f.second, report.Commit.Hash)
		require.Len(t, report.Files, 1)
		assert.Equal(t, "modified", report.Files[0].Classification)
		assert.Equal(t, []api.HunkView{
			{Kind: "removed", Text: "hello"},
			{Kind: "added", Text: "hello2"},
		}, report.Files[0].Hunks)
	})

	t.Run("unknown commit", func(t *testing.T) {
		_, err := f.client.Commit("abcdef")
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, trixerrors.ErrNotFound), "got %v", err)
		assert.Equal(t, http.StatusNotFound, trixerrors.StatusCode(err))
	})
}

func TestObject(t *testing.T) {
	f := setupTestServer(t)

	data, err := f.client.Object(string(safe.HashContent([]byte("hello2"))))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello2"), data)

	_, err = f.client.Object("not-a-hash")
	assert.True(t, stderrors.Is(err, trixerrors.ErrValidation), "got %v", err)
}

func TestDecodeErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := New(srv.URL).Health()
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, trixerrors.ErrLocked), "got %v", err)
	assert.Contains(t, err.Error(), "503")
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Log(0)
	assert.True(t, stderrors.Is(err, trixerrors.ErrIOFailure), "got %v", err)
}
