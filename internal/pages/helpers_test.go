package pages

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadwalk/internal/archive"
	"github.com/ibeckermayer/threadwalk/internal/browser"
	"github.com/ibeckermayer/threadwalk/internal/browser/browsertest"
	"github.com/ibeckermayer/threadwalk/internal/config"
	"github.com/ibeckermayer/threadwalk/internal/crawler"
	"github.com/ibeckermayer/threadwalk/internal/dispatcher"
	"github.com/ibeckermayer/threadwalk/internal/logging"
	"github.com/ibeckermayer/threadwalk/internal/notifier"
	"github.com/ibeckermayer/threadwalk/internal/notifier/providers"
	"github.com/ibeckermayer/threadwalk/internal/queue"
	"github.com/ibeckermayer/threadwalk/internal/scraper"
	"github.com/ibeckermayer/threadwalk/internal/store"
)

// assertTransition compares transitions by what the driver would do with them.
func assertTransition(t *testing.T, want, got dispatcher.Transition) {
	t.Helper()
	assert.Equal(t, want.String(), got.String())
}

type sent struct {
	message string
	opts    int
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
	resp *providers.Response
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, message string, opts ...notifier.Option) (*providers.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{message: message, opts: len(opts)})
	return f.resp, f.err
}

func (f *fakeNotifier) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.message)
	}
	return out
}

type env struct {
	cfg      *config.Config
	h        *Handlers
	store    *store.Store
	queue    *queue.Manager
	archive  *archive.Archive
	notifier *fakeNotifier
	d        *dispatcher.Dispatcher
	ctx      context.Context
	export   string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	cfg := config.Default()
	cfg.Crawl.Interval = config.Duration(time.Hour)
	cfg.Timing.PollInterval = config.Duration(time.Millisecond)
	cfg.Timing.ElementWait = config.Duration(20 * time.Millisecond)
	cfg.Timing.ScrollInterval = config.Duration(time.Millisecond)
	cfg.Timing.MaxFailScrollCount = 2
	cfg.Timing.TabScrollSteps = 2
	cfg.Timing.TabScrollWait = 0
	cfg.Timing.LockedRedirectDelay = config.Duration(20 * time.Millisecond)
	cfg.Timing.LockedCheckInterval = config.Duration(time.Hour)

	st, err := store.New(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	q := queue.New(st, 0)
	a := archive.New(st, cfg.Crawl.SavedTweetsLimit)
	n := &fakeNotifier{resp: &providers.Response{StatusCode: 204, Status: "204 No Content"}}
	exportDir := t.TempDir()

	h := New(cfg, st, q, a, n, exportDir, "1.2.0")
	h.randIntN = func(n int) int { return n - 1 }

	thresholds := crawler.Thresholds{Retweets: cfg.Crawl.RetweetThreshold, Replies: cfg.Crawl.ReplyThreshold}
	factory := func(page browser.Page, sched crawler.Scheduler, log *logrus.Entry) *crawler.Crawler {
		return crawler.New(scraper.New(page), q, a, sched, cfg.Crawl.Interval.D(), thresholds, log)
	}
	d := dispatcher.New(h.Routes(), dispatcher.Options{Watchdog: time.Second, ReloadWait: time.Millisecond}, factory, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		d.Wait()
	})

	return &env{cfg: cfg, h: h, store: st, queue: q, archive: a, notifier: n, d: d, ctx: ctx, export: exportDir}
}

// session starts a visit of page at its current address.
func (e *env) session(t *testing.T, page *browsertest.Page) *dispatcher.Session {
	t.Helper()
	url, err := page.Location(e.ctx)
	require.NoError(t, err)
	s := e.d.NewSession(e.ctx, page, url)
	t.Cleanup(s.End)
	return s
}

func articleHTML(user, id string) string {
	return fmt.Sprintf(`<article data-testid="tweet">
  <a href="/%s/status/%s"><time datetime="2024-05-01T10:00:00.000Z">1h</time></a>
  <div data-testid="tweetText"><span>reply body</span></div>
  <button data-testid="reply" aria-label="250 Replies. Reply"></button>
  <button data-testid="retweet" aria-label="1,500 reposts. Repost"></button>
</article>`, user, id)
}
