package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadwalk/internal/auth"
	"github.com/ibeckermayer/threadwalk/internal/browser/browsertest"
	"github.com/ibeckermayer/threadwalk/internal/config"
	"github.com/ibeckermayer/threadwalk/internal/logging"
	"github.com/ibeckermayer/threadwalk/internal/pages"
	"github.com/ibeckermayer/threadwalk/internal/scheduler"
	"github.com/ibeckermayer/threadwalk/internal/scraper"
	"github.com/ibeckermayer/threadwalk/internal/store"
	"github.com/ibeckermayer/threadwalk/internal/types"
)

func newTestApp(t *testing.T) (*App, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "store.db"))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Crawl.PacingDelay = 0
	authManager := auth.NewManager(auth.NewCookieStore(filepath.Join(dir, "cookies.json")), "", logging.Discard())

	a := New(cfg, st, authManager, filepath.Join(dir, "exports"), "1.0.0", logging.Discard())
	t.Cleanup(func() { a.Close() })
	return a, st
}

func TestStatsAndReset(t *testing.T) {
	a, st := newTestApp(t)
	require.NoError(t, st.SetWaitingTweets([]string{"1", "2"}))
	require.NoError(t, st.SetCheckedTweets([]string{"3"}))
	require.NoError(t, st.SetSavedTweets([]types.Tweet{{TweetID: "1"}}))

	stats, err := a.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Waiting: 2, Checked: 1, Archived: 1}, stats)

	require.NoError(t, a.ResetQueue(context.Background()))
	stats, err = a.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Waiting)
	assert.Equal(t, 1, stats.Checked)
}

func TestExportThenOpenLatest(t *testing.T) {
	a, st := newTestApp(t)
	assert.Error(t, a.OpenLatestReport(), "nothing exported yet")

	require.NoError(t, st.SetSavedTweets([]types.Tweet{{TweetID: "1", ScreenName: "alice", RetweetCount: "120"}}))
	exp, err := a.Export()
	require.NoError(t, err)
	assert.Equal(t, 1, exp.Count)
	assert.FileExists(t, exp.JSONPath)
	assert.FileExists(t, exp.ReportPath)

	latest, err := store.LatestExport(a.exportDir, "report", ".html")
	require.NoError(t, err)
	assert.Equal(t, exp.ReportPath, latest)
}

func TestOnlyHomeFlag(t *testing.T) {
	a, st := newTestApp(t)

	v, err := a.OnlyHome()
	require.NoError(t, err)
	assert.False(t, v, "config default")

	require.NoError(t, a.SetOnlyHome(true))
	v, err = a.OnlyHome()
	require.NoError(t, err)
	assert.True(t, v)

	var raw string
	_, err = st.Get(store.KeyOnlyHome, &raw)
	require.NoError(t, err)
	assert.Equal(t, "true", raw)
}

func TestNotAuthenticatedWithoutCookies(t *testing.T) {
	a, _ := newTestApp(t)
	assert.False(t, a.IsAuthenticated())
	assert.NoError(t, a.TriggerLogout())
	assert.False(t, a.Running())
	a.Stop()
}

func TestCrawlerFactoryWiresQueue(t *testing.T) {
	a, st := newTestApp(t)
	page := browsertest.New("https://x.com/home")
	page.SetHTML(scraper.TweetArticle, `<article data-testid="tweet">
  <a href="/alice/status/77"><time>2h</time></a>
  <button data-testid="reply" aria-label="10 Replies. Reply"></button>
  <button data-testid="retweet" aria-label="100 reposts. Repost"></button>
</article>`)

	sched := scheduler.New(logging.Discard())
	t.Cleanup(sched.Stop)

	c := a.newCrawler(page, sched, logging.Discard())
	require.NoError(t, c.Tick(context.Background()))

	waiting, err := st.WaitingTweets()
	require.NoError(t, err)
	assert.Equal(t, []string{"77"}, waiting)
	assert.EqualValues(t, 1, c.Count())
}

func TestRoutesIncludeOperatorPages(t *testing.T) {
	a, _ := newTestApp(t)
	d := a.newDispatcher()

	idx, ok := d.Routes().Resolve(a.handlers.OperatorURL(pages.PathNotifyUpdate))
	require.True(t, ok)
	assert.Equal(t, pages.RouteNotifyUpdate, d.Routes()[idx].Name)
	assert.Equal(t, time.Second, a.cfg.Timing.WatchdogInterval.D())
}

func TestStatsString(t *testing.T) {
	assert.Equal(t, "3 waiting · 10 checked · 42 archived", Stats{Waiting: 3, Checked: 10, Archived: 42}.String())
}
