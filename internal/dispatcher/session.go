package dispatcher

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/threadwalk/internal/browser"
	"github.com/ibeckermayer/threadwalk/internal/crawler"
	"github.com/ibeckermayer/threadwalk/internal/scheduler"
)

// Session is one page load of one tab. Everything it starts (its scheduler
// jobs, the crawl loop, OnClose hooks) ends with it.
type Session struct {
	ID        string
	URL       string
	Page      browser.Page
	Scheduler *scheduler.Scheduler

	d    *Dispatcher
	root context.Context
	base *logrus.Entry

	mu       sync.Mutex
	route    string
	log      *logrus.Entry
	crawler  *crawler.Crawler
	scroller *browser.Scroller
	onClose  []func()
	ended    bool
}

// NewSession starts a session for page at url. ctx bounds the tabs the
// session opens. Callers must End it.
func (d *Dispatcher) NewSession(ctx context.Context, page browser.Page, url string) *Session {
	id := uuid.NewString()
	base := d.log.WithFields(logrus.Fields{"session": id, "url": url})
	s := &Session{
		ID:        id,
		URL:       url,
		Page:      page,
		Scheduler: scheduler.New(base),
		d:         d,
		root:      ctx,
		base:      base,
		log:       base,
	}
	s.Scheduler.Start()
	return s
}

// Log returns the session logger tagged with the active route
func (s *Session) Log() *logrus.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}

// Route returns the name of the handler currently running
func (s *Session) Route() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.route
}

func (s *Session) setRoute(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route = name
	s.log = s.base.WithField("route", name)
}

// Crawler returns the crawl loop of this page load, creating it on first use.
func (s *Session) Crawler() *crawler.Crawler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.crawler == nil {
		s.crawler = s.d.newCrawler(s.Page, s.Scheduler, s.log)
	}
	return s.crawler
}

// Scroller returns the scroller of this page load. build creates it on the
// first call; later calls get the same one, so concurrent Exhaust calls on
// the page share one guard.
func (s *Session) Scroller(build func(page browser.Page, log *logrus.Entry) *browser.Scroller) *browser.Scroller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scroller == nil {
		s.scroller = build(s.Page, s.log)
	}
	return s.scroller
}

// OnClose registers fn to run when the session ends. Hooks run in reverse order.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, fn)
}

// Open loads url in a new tab driven by its own driver. The tab lives until
// its handler closes it or the dispatcher stops.
func (s *Session) Open(ctx context.Context, url string) error {
	if err := s.d.Open(ctx, s.root, s.Page, url); err != nil {
		return err
	}
	s.Log().WithField("tab_url", url).Info("Opened tab")
	return nil
}

// End stops the crawl loop and scheduler and runs the OnClose hooks.
func (s *Session) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	c := s.crawler
	hooks := slices.Clone(s.onClose)
	s.mu.Unlock()

	if c != nil {
		c.Stop()
	}
	s.Scheduler.Stop()
	for _, fn := range slices.Backward(hooks) {
		fn()
	}
}
