package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadwalk/internal/store"
	"github.com/ibeckermayer/threadwalk/internal/types"
)

func newTestArchive(t *testing.T, limit int) (*Archive, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, limit), s
}

func tweets(n int) []types.Tweet {
	out := make([]types.Tweet, n)
	for i := range out {
		out[i] = types.Tweet{TweetID: fmt.Sprint(1000 + i), ScreenName: "user", RetweetCount: "1"}
	}
	return out
}

func TestMergeUpdatesByIDOrAppends(t *testing.T) {
	a, s := newTestArchive(t, 500)

	require.NoError(t, a.Merge([]types.Tweet{
		{TweetID: "1", LikeCount: "5"},
		{TweetID: "2", LikeCount: "7"},
	}))
	require.NoError(t, a.Merge([]types.Tweet{
		{TweetID: "2", LikeCount: "70"},
		{TweetID: "3", LikeCount: "1"},
	}))

	saved, err := s.SavedTweets()
	require.NoError(t, err)
	require.Len(t, saved, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{saved[0].TweetID, saved[1].TweetID, saved[2].TweetID})
	assert.Equal(t, "70", saved[1].LikeCount, "engagement refreshed on re-crawl")
}

func TestIsNeedDownloadBoundary(t *testing.T) {
	a, _ := newTestArchive(t, 500)

	require.NoError(t, a.Merge(tweets(500)))
	need, err := a.IsNeedDownload()
	require.NoError(t, err)
	assert.False(t, need, "exactly at the limit")

	require.NoError(t, a.Merge([]types.Tweet{{TweetID: "extra"}}))
	need, err = a.IsNeedDownload()
	require.NoError(t, err)
	assert.True(t, need, "one past the limit")
}

func TestExportAndClear(t *testing.T) {
	a, _ := newTestArchive(t, 2)
	require.NoError(t, a.Merge(tweets(3)))
	dir := t.TempDir()

	exp, err := a.ExportAndClear(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, exp.Count)
	assert.FileExists(t, exp.JSONPath)
	assert.FileExists(t, exp.ReportPath)

	raw, err := os.ReadFile(exp.JSONPath)
	require.NoError(t, err)
	var exported []types.Tweet
	require.NoError(t, json.Unmarshal(raw, &exported))
	assert.Len(t, exported, 3)

	n, err := a.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExportEmptyArchiveWritesNothing(t *testing.T) {
	a, _ := newTestArchive(t, 2)
	dir := t.TempDir()

	exp, err := a.ExportAndClear(dir)
	require.NoError(t, err)
	assert.Zero(t, exp.Count)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLookup(t *testing.T) {
	a, _ := newTestArchive(t, 10)
	require.NoError(t, a.Merge([]types.Tweet{{TweetID: "42", URL: "https://x.com/a/status/42"}}))

	tw, ok, err := a.Lookup("42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://x.com/a/status/42", tw.URL)

	_, ok, err = a.Lookup("43")
	require.NoError(t, err)
	assert.False(t, ok)
}
