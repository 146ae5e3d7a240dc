package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadwalk/internal/browser"
	"github.com/ibeckermayer/threadwalk/internal/browser/browsertest"
	"github.com/ibeckermayer/threadwalk/internal/crawler"
	"github.com/ibeckermayer/threadwalk/internal/logging"
	"github.com/ibeckermayer/threadwalk/internal/types"
)

const (
	pageA   = "https://x.com/a"
	pageB   = "https://x.com/b"
	tabPage = "https://x.com/tab"
)

func closeHandler(context.Context, *Session) (Transition, error) { return Close(), nil }

func newDispatcher(routes Table) *Dispatcher {
	return New(routes, Options{Watchdog: time.Second, ReloadWait: 10 * time.Millisecond}, nil, logging.Discard())
}

// runWithTimeout drives page and fails the test if the driver does not stop.
func runWithTimeout(t *testing.T, d *Dispatcher, page browser.Page, timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	require.NoError(t, d.Run(ctx, page))
	require.NoError(t, ctx.Err(), "driver did not finish in time")
}

func TestResolveFirstMatchWins(t *testing.T) {
	table := Table{
		{Name: "home", Match: Prefix("https://x.com/home")},
		{Name: "tweet", Match: MustPattern(`^https://x\.com/[^/]+/status/\d+`)},
		{Name: "catch-all", Match: Prefix("https://x.com/")},
	}

	tests := []struct {
		url  string
		want int
		ok   bool
	}{
		{"https://x.com/home", 0, true},
		{"https://x.com/home?tab=following", 0, true},
		{"https://x.com/alice/status/123", 1, true},
		{"https://x.com/alice", 2, true},
		{"https://example.com/", -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			idx, ok := table.Resolve(tt.url)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, idx)
		})
	}
}

func TestRunAppliesTransitions(t *testing.T) {
	page := browsertest.New(pageA)
	d := newDispatcher(Table{
		{Name: "a", Match: Prefix(pageA), Handle: func(context.Context, *Session) (Transition, error) {
			return Navigate(pageB), nil
		}},
		{Name: "b", Match: Prefix(pageB), Handle: closeHandler},
	})

	runWithTimeout(t, d, page, 5*time.Second)

	assert.Equal(t, []string{"navigate " + pageB, "close"}, page.Calls())
	assert.True(t, page.Closed())
}

func TestRunReloadsAfterHandlerFailure(t *testing.T) {
	for name, fail := range map[string]func() (Transition, error){
		"error": func() (Transition, error) { return Stay(), errors.New("tab strip missing") },
		"panic": func() (Transition, error) { panic("nil element") },
	} {
		t.Run(name, func(t *testing.T) {
			page := browsertest.New(pageA)
			var visits atomic.Int32
			d := newDispatcher(Table{
				{Name: "a", Match: Prefix(pageA), Handle: func(context.Context, *Session) (Transition, error) {
					if visits.Add(1) == 1 {
						return fail()
					}
					return Close(), nil
				}},
			})

			runWithTimeout(t, d, page, 5*time.Second)

			assert.EqualValues(t, 2, visits.Load())
			assert.Equal(t, []string{"reload", "close"}, page.Calls())
		})
	}
}

func TestNextKeepsSession(t *testing.T) {
	page := browsertest.New(pageA)
	var ids []string
	var routes []string
	record := func(s *Session) {
		ids = append(ids, s.ID)
		routes = append(routes, s.Route())
	}

	second := func(_ context.Context, s *Session) (Transition, error) {
		record(s)
		return Close(), nil
	}
	d := newDispatcher(Table{
		{Name: "a", Match: Prefix(pageA), Handle: func(_ context.Context, s *Session) (Transition, error) {
			record(s)
			return Next("only-open", second), nil
		}},
	})

	runWithTimeout(t, d, page, 5*time.Second)

	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, []string{"a", "only-open"}, routes)
}

func TestSessionEndRunsHooksInReverse(t *testing.T) {
	page := browsertest.New(pageA)
	var order []string
	d := newDispatcher(Table{
		{Name: "a", Match: Prefix(pageA), Handle: func(_ context.Context, s *Session) (Transition, error) {
			s.OnClose(func() { order = append(order, "first") })
			s.OnClose(func() { order = append(order, "second") })
			return Close(), nil
		}},
	})

	runWithTimeout(t, d, page, 5*time.Second)
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestWatchdogReloadsOnRouteChange(t *testing.T) {
	page := browsertest.New(pageA)
	d := newDispatcher(Table{
		{Name: "a", Match: Prefix(pageA), Handle: func(context.Context, *Session) (Transition, error) {
			// Client-side navigation the driver is not told about.
			page.SetURL(pageB)
			return Stay(), nil
		}},
		{Name: "b", Match: Prefix(pageB), Handle: closeHandler},
	})

	runWithTimeout(t, d, page, 10*time.Second)
	assert.Equal(t, []string{"reload", "close"}, page.Calls())
}

func TestWatchdogCancelsRunningHandler(t *testing.T) {
	page := browsertest.New(pageA)
	cancelled := make(chan error, 1)
	d := newDispatcher(Table{
		{Name: "a", Match: Prefix(pageA), Handle: func(ctx context.Context, s *Session) (Transition, error) {
			page.SetURL(pageB)
			<-ctx.Done()
			cancelled <- context.Cause(ctx)
			return Stay(), ctx.Err()
		}},
		{Name: "b", Match: Prefix(pageB), Handle: closeHandler},
	})

	runWithTimeout(t, d, page, 10*time.Second)

	assert.ErrorIs(t, <-cancelled, errRouteChanged)
	assert.Equal(t, []string{"reload", "close"}, page.Calls(), "no error cool-down for a route change")
}

func TestSessionOpenDrivesNewTab(t *testing.T) {
	page := browsertest.New(pageA)
	var opened sync.WaitGroup
	opened.Add(1)
	d := newDispatcher(Table{
		{Name: "a", Match: Prefix(pageA), Handle: func(ctx context.Context, s *Session) (Transition, error) {
			defer opened.Done()
			return Close(), s.Open(ctx, tabPage)
		}},
		{Name: "tab", Match: Prefix(tabPage), Handle: closeHandler},
	})

	runWithTimeout(t, d, page, 5*time.Second)
	opened.Wait()
	d.Wait()

	tabs := page.Tabs()
	require.Len(t, tabs, 1)
	assert.True(t, tabs[0].Closed())
	assert.Equal(t, []string{"open " + tabPage, "close"}, page.Calls())
}

func TestUnmatchedPageIsIgnored(t *testing.T) {
	page := browsertest.New("https://example.com/")
	d := newDispatcher(Table{{Name: "a", Match: Prefix(pageA), Handle: closeHandler}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, d.Run(ctx, page))
	assert.Empty(t, page.Calls())
}

type nopExtractor struct{ cleared atomic.Int32 }

func (e *nopExtractor) Extract(context.Context) ([]types.Tweet, error) { return nil, nil }
func (e *nopExtractor) ClearCache() { e.cleared.Add(1) }

func TestSessionCrawlerIsPerSession(t *testing.T) {
	ext := &nopExtractor{}
	var built atomic.Int32
	factory := func(page browser.Page, sched crawler.Scheduler, log *logrus.Entry) *crawler.Crawler {
		built.Add(1)
		return crawler.New(ext, nil, nil, sched, time.Hour, crawler.Thresholds{}, log)
	}

	page := browsertest.New(pageA)
	var running bool
	d := New(Table{
		{Name: "a", Match: Prefix(pageA), Handle: func(_ context.Context, s *Session) (Transition, error) {
			require.NoError(t, s.Crawler().Start())
			require.NoError(t, s.Crawler().Start())
			running = s.Crawler().Running()
			return Close(), nil
		}},
	}, Options{Watchdog: time.Second}, factory, logging.Discard())

	runWithTimeout(t, d, page, 5*time.Second)

	assert.True(t, running)
	assert.EqualValues(t, 1, built.Load())
	assert.EqualValues(t, 1, ext.cleared.Load(), "crawl loop stopped with the session")
}

func TestTransitionString(t *testing.T) {
	assert.Equal(t, "navigate https://x.com/home", Navigate("https://x.com/home").String())
	assert.Equal(t, "reload after 1m0s", ReloadAfter(time.Minute).String())
	assert.Equal(t, "next only-open", Next("only-open", closeHandler).String())
	assert.Equal(t, "stay", Stay().String())
}

func TestOpenedTabKeepsItsRouteAfterRedirect(t *testing.T) {
	const lockedPage = "https://x.com/account/access"

	page := browsertest.New(pageA)
	// The site sends every load of a locked account to the lock page.
	page.OnOpen = func(tab *browsertest.Page) { tab.SetURL(lockedPage) }

	var lockedRuns, tabRuns atomic.Int32
	var opened sync.WaitGroup
	opened.Add(1)
	d := newDispatcher(Table{
		{Name: "a", Match: Prefix(pageA), Handle: func(ctx context.Context, s *Session) (Transition, error) {
			defer opened.Done()
			return Close(), s.Open(ctx, tabPage)
		}},
		{Name: "locked", Match: Prefix(lockedPage), Handle: func(ctx context.Context, s *Session) (Transition, error) {
			lockedRuns.Add(1)
			return Close(), s.Open(ctx, tabPage)
		}},
		{Name: "tab", Match: Prefix(tabPage), Handle: func(context.Context, *Session) (Transition, error) {
			tabRuns.Add(1)
			return Close(), nil
		}},
	})

	runWithTimeout(t, d, page, 5*time.Second)
	opened.Wait()
	d.Wait()

	assert.Equal(t, int32(1), tabRuns.Load())
	assert.Zero(t, lockedRuns.Load(), "the lock handler must not run in the opened tab")
	tabs := page.Tabs()
	require.Len(t, tabs, 1)
	assert.True(t, tabs[0].Closed())
	assert.Empty(t, tabs[0].Tabs())
}

func TestOpenedTabKeepsItsRouteAcrossReloads(t *testing.T) {
	const lockedPage = "https://x.com/account/access"

	page := browsertest.New(pageA)
	page.OnOpen = func(tab *browsertest.Page) { tab.SetURL(lockedPage) }

	var tabRuns, lockedRuns atomic.Int32
	d := newDispatcher(Table{
		{Name: "a", Match: Prefix(pageA), Handle: func(ctx context.Context, s *Session) (Transition, error) {
			return Close(), s.Open(ctx, tabPage)
		}},
		{Name: "locked", Match: Prefix(lockedPage), Handle: func(context.Context, *Session) (Transition, error) {
			lockedRuns.Add(1)
			return Close(), nil
		}},
		{Name: "tab", Match: Prefix(tabPage), Handle: func(context.Context, *Session) (Transition, error) {
			if tabRuns.Add(1) == 1 {
				return Stay(), errors.New("store write failed")
			}
			return Close(), nil
		}},
	})

	runWithTimeout(t, d, page, 5*time.Second)
	d.Wait()

	assert.Equal(t, int32(2), tabRuns.Load(), "the reload runs the opened route again")
	assert.Zero(t, lockedRuns.Load())
}

func TestSessionScrollerIsShared(t *testing.T) {
	d := newDispatcher(nil)
	page := browsertest.New(pageA)
	s := d.NewSession(context.Background(), page, pageA)
	defer s.End()

	var built int
	build := func(p browser.Page, log *logrus.Entry) *browser.Scroller {
		built++
		return browser.NewScroller(p, time.Millisecond, 1, nil, log)
	}

	first := s.Scroller(build)
	assert.Same(t, first, s.Scroller(build))
	assert.Equal(t, 1, built)

	other := d.NewSession(context.Background(), page, pageA)
	defer other.End()
	assert.NotSame(t, first, other.Scroller(build), "each page load scrolls afresh")
}
