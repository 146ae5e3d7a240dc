// Package app wires the crawler components together and owns the browser
// session lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pkgbrowser "github.com/pkg/browser"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/threadwalk/internal/archive"
	"github.com/ibeckermayer/threadwalk/internal/auth"
	"github.com/ibeckermayer/threadwalk/internal/browser"
	"github.com/ibeckermayer/threadwalk/internal/config"
	"github.com/ibeckermayer/threadwalk/internal/crawler"
	"github.com/ibeckermayer/threadwalk/internal/dispatcher"
	"github.com/ibeckermayer/threadwalk/internal/notifier"
	"github.com/ibeckermayer/threadwalk/internal/pages"
	"github.com/ibeckermayer/threadwalk/internal/queue"
	"github.com/ibeckermayer/threadwalk/internal/scraper"
	"github.com/ibeckermayer/threadwalk/internal/store"
)

// ErrRunning is returned by Start while a crawl is already running
var ErrRunning = errors.New("crawler already running")

// App holds the application state.
type App struct {
	cfg       *config.Config
	log       *logrus.Entry
	store     *store.Store
	queue     *queue.Manager
	archive   *archive.Archive
	notifier  *notifier.Notifier
	handlers  *pages.Handlers
	auth      *auth.Manager
	exportDir string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Stats is a point-in-time view of the persisted collections
type Stats struct {
	Waiting  int
	Checked  int
	Archived int
}

// Open opens the store in its default location and builds the App.
func Open(cfg *config.Config, version string, log *logrus.Entry) (*App, error) {
	storePath, err := config.StorePath()
	if err != nil {
		return nil, err
	}
	st, err := store.New(storePath)
	if err != nil {
		return nil, err
	}

	cookiePath, err := auth.DefaultCookieStorePath()
	if err != nil {
		st.Close()
		return nil, err
	}
	authManager := auth.NewManager(auth.NewCookieStore(cookiePath), cfg.Browser.UserDataDir, log)

	exportDir, err := config.ExportDir()
	if err != nil {
		st.Close()
		return nil, err
	}
	return New(cfg, st, authManager, exportDir, version, log), nil
}

// New creates a new App instance.
func New(cfg *config.Config, st *store.Store, authManager *auth.Manager, exportDir, version string, log *logrus.Entry) *App {
	q := queue.New(st, cfg.Crawl.PacingDelay.D())
	a := archive.New(st, cfg.Crawl.SavedTweetsLimit)
	n := notifier.NewFromConfig(cfg.Notify, log)
	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		queue:     q,
		archive:   a,
		notifier:  n,
		handlers:  pages.New(cfg, st, q, a, n, exportDir, version),
		auth:      authManager,
		exportDir: exportDir,
	}
}

// Close stops a running crawl and closes the store
func (a *App) Close() error {
	a.Stop()
	return a.store.Close()
}

func (a *App) newCrawler(page browser.Page, sched crawler.Scheduler, log *logrus.Entry) *crawler.Crawler {
	th := crawler.Thresholds{Retweets: a.cfg.Crawl.RetweetThreshold, Replies: a.cfg.Crawl.ReplyThreshold}
	return crawler.New(scraper.New(page), a.queue, a.archive, sched, a.cfg.Crawl.Interval.D(), th, log)
}

func (a *App) newDispatcher() *dispatcher.Dispatcher {
	opts := dispatcher.Options{
		Watchdog:   a.cfg.Timing.WatchdogInterval.D(),
		ReloadWait: a.cfg.Timing.ReloadWait.D(),
	}
	return dispatcher.New(a.handlers.Routes(), opts, a.newCrawler, a.log)
}

// Run launches the browser and crawls until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	page, err := browser.Launch(ctx, a.cfg.Browser.Headless, a.cfg.Browser.UserDataDir)
	if err != nil {
		return err
	}
	defer page.Close()

	if a.auth.IsAuthenticated() {
		cookies, err := a.auth.Cookies()
		if err != nil {
			return fmt.Errorf("failed to load cookies: %w", err)
		}
		if err := page.InjectCookies(ctx, cookies); err != nil {
			return fmt.Errorf("failed to inject cookies: %w", err)
		}
	} else {
		a.log.Warn("No stored session, X will ask for a login")
	}

	d := a.newDispatcher()
	defer func() {
		cancel()
		d.Wait()
	}()

	changed, err := a.handlers.CheckVersion()
	if err != nil {
		a.log.WithError(err).Error("Version check failed")
	}
	if changed {
		if err := d.Open(ctx, ctx, page, a.handlers.OperatorURL(pages.PathNotifyUpdate)); err != nil {
			a.log.WithError(err).Error("Failed to open update notification")
		}
	}

	if err := page.Navigate(ctx, a.cfg.Navigation.HomeURL); err != nil {
		return fmt.Errorf("failed to open home timeline: %w", err)
	}
	a.log.Info("Crawler started")
	return d.Run(ctx, page)
}

// Start runs the crawler in the background
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.cancel, a.done = cancel, done

	go func() {
		defer close(done)
		if err := a.Run(ctx); err != nil {
			a.log.WithError(err).Error("Crawler stopped")
		}
		a.mu.Lock()
		if a.done == done {
			a.cancel, a.done = nil, nil
		}
		a.mu.Unlock()
		cancel()
	}()
	return nil
}

// Stop cancels a background crawl and waits for it to exit
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	a.log.Info("Crawler stopped")
}

// Running reports whether a background crawl is active
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

func (a *App) Stats() (Stats, error) {
	qs, err := a.queue.Stats()
	if err != nil {
		return Stats{}, err
	}
	n, err := a.archive.Len()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Waiting: qs.Waiting, Checked: qs.Checked, Archived: n}, nil
}

// ResetQueue empties the waiting queue
func (a *App) ResetQueue(ctx context.Context) error {
	if err := a.queue.ResetWaiting(ctx); err != nil {
		return err
	}
	a.log.Info("Waiting queue cleared")
	return nil
}

// Export writes and clears the archive
func (a *App) Export() (*archive.Export, error) {
	exp, err := a.archive.ExportAndClear(a.exportDir)
	if err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{"count": exp.Count, "path": exp.JSONPath}).Info("Archive exported")
	return exp, nil
}

// OpenLatestReport opens the newest export report
func (a *App) OpenLatestReport() error {
	path, err := store.LatestExport(a.exportDir, "report", ".html")
	if err != nil {
		return fmt.Errorf("no report found: %w", err)
	}
	return pkgbrowser.OpenFile(path)
}

// SetOnlyHome switches between crawling home only and home plus explore
func (a *App) SetOnlyHome(v bool) error {
	return a.store.SetFlag(store.KeyOnlyHome, v)
}

func (a *App) OnlyHome() (bool, error) {
	return a.store.Flag(store.KeyOnlyHome, a.cfg.Navigation.OnlyHome)
}

// IsAuthenticated checks if X.com credentials are stored.
func (a *App) IsAuthenticated() bool {
	return a.auth.IsAuthenticated()
}

// TriggerLogin starts the X.com login flow.
func (a *App) TriggerLogin(ctx context.Context) error {
	a.log.Info("Opening browser for X login")
	if err := a.auth.Login(ctx); err != nil {
		a.log.WithError(err).Error("Login failed")
		return err
	}
	return nil
}

// TriggerLogout clears stored X.com credentials.
func (a *App) TriggerLogout() error {
	if err := a.auth.Logout(); err != nil {
		a.log.WithError(err).Error("Logout failed")
		return err
	}
	a.log.Info("Logged out, cookies cleared")
	return nil
}

func (s Stats) String() string {
	return fmt.Sprintf("%d waiting · %d checked · %d archived", s.Waiting, s.Checked, s.Archived)
}
