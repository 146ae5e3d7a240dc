// Package pages implements the handler for every page type the crawler
// visits, plus the operator pages that trigger one-shot side effects.
package pages

import (
	"context"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/threadwalk/internal/archive"
	"github.com/ibeckermayer/threadwalk/internal/browser"
	"github.com/ibeckermayer/threadwalk/internal/config"
	"github.com/ibeckermayer/threadwalk/internal/dispatcher"
	"github.com/ibeckermayer/threadwalk/internal/notifier"
	"github.com/ibeckermayer/threadwalk/internal/notifier/providers"
	"github.com/ibeckermayer/threadwalk/internal/poll"
	"github.com/ibeckermayer/threadwalk/internal/queue"
	"github.com/ibeckermayer/threadwalk/internal/store"
)

// Route names
const (
	RouteNotifyLogin    = "notify-login"
	RouteNotifyLocked   = "notify-locked"
	RouteNotifyUnlocked = "notify-unlocked"
	RouteNotifyUpdate   = "notify-update"
	RouteExport         = "export"
	RouteReset          = "reset"
	RouteHome           = "home"
	RouteExplore        = "explore"
	RouteSearch         = "search"
	RouteCompose        = "compose"
	RouteLocked         = "locked"
	RouteLogin          = "login"
	RouteTweet          = "tweet"
	RouteTweetOnlyOpen  = "tweet-only-open"
)

// Notifier sends operator messages
type Notifier interface {
	Notify(ctx context.Context, message string, opts ...notifier.Option) (*providers.Response, error)
}

// Handlers holds what the page handlers share.
type Handlers struct {
	store     *store.Store
	queue     *queue.Manager
	archive   *archive.Archive
	notifier  Notifier
	nav       config.NavigationConfig
	timing    config.TimingConfig
	exportDir string
	version   string

	randIntN func(n int) int
}

func New(cfg *config.Config, st *store.Store, q *queue.Manager, a *archive.Archive, n Notifier, exportDir, version string) *Handlers {
	return &Handlers{
		store:     st,
		queue:     q,
		archive:   a,
		notifier:  n,
		nav:       cfg.Navigation,
		timing:    cfg.Timing,
		exportDir: exportDir,
		version:   version,
		randIntN:  rand.IntN,
	}
}

// OperatorURL returns the address of an operator page
func (h *Handlers) OperatorURL(path string) string {
	return joinOperator(h.nav.OperatorURL, path)
}

// Routes returns the dispatcher table. Operator pages come first so the
// generic X patterns never shadow them.
func (h *Handlers) Routes() dispatcher.Table {
	return dispatcher.Table{
		{Name: RouteNotifyLogin, Match: dispatcher.Prefix(h.OperatorURL(PathNotifyLogin)), Handle: h.notifyPage(loginMessage, store.KeyLoginNotified, true)},
		{Name: RouteNotifyLocked, Match: dispatcher.Prefix(h.OperatorURL(PathNotifyLocked)), Handle: h.notifyPage(lockedMessage, store.KeyLockedNotified, true)},
		{Name: RouteNotifyUnlocked, Match: dispatcher.Prefix(h.OperatorURL(PathNotifyUnlocked)), Handle: h.notifyPage(unlockedMessage, "", false)},
		{Name: RouteNotifyUpdate, Match: dispatcher.Prefix(h.OperatorURL(PathNotifyUpdate)), Handle: h.notifyUpdate},
		{Name: RouteExport, Match: dispatcher.Prefix(h.OperatorURL(PathExport)), Handle: h.Export},
		{Name: RouteReset, Match: dispatcher.Prefix(h.OperatorURL(PathReset)), Handle: h.Reset},
		{Name: RouteHome, Match: dispatcher.Prefix(h.nav.HomeURL), Handle: h.Home},
		{Name: RouteExplore, Match: dispatcher.Prefix(ExploreURL), Handle: h.Explore},
		{Name: RouteSearch, Match: dispatcher.MustPattern(searchExpr), Handle: h.Search},
		{Name: RouteCompose, Match: dispatcher.Prefix(ComposeURL), Handle: h.Compose},
		{Name: RouteLocked, Match: dispatcher.Prefix(LockedURL), Handle: h.Locked},
		{Name: RouteLogin, Match: dispatcher.MustPattern(loginExpr), Handle: h.Login},
		{Name: RouteTweet, Match: dispatcher.MustPattern(tweetExpr), Handle: h.Tweet},
	}
}

func (h *Handlers) elementWait() poll.Options {
	return poll.Within(h.timing.ElementWait.D(), h.timing.PollInterval.D())
}

// scroller is the session's reply scroller for tweet pages
func (h *Handlers) scroller(s *dispatcher.Session) *browser.Scroller {
	return s.Scroller(func(page browser.Page, log *logrus.Entry) *browser.Scroller {
		return browser.NewScroller(page, h.timing.ScrollInterval.D(), h.timing.MaxFailScrollCount, expandTargets, log)
	})
}

func (h *Handlers) reloadWait() dispatcher.Transition {
	return dispatcher.ReloadAfter(h.timing.ReloadWait.D())
}

// resetNotificationState runs on every page that proves the account works.
// A pending lock notification is answered with an unlock one.
func (h *Handlers) resetNotificationState(ctx context.Context, s *dispatcher.Session) error {
	locked, err := h.store.Bool(store.KeyLockedNotified)
	if err != nil {
		return err
	}
	login, err := h.store.Bool(store.KeyLoginNotified)
	if err != nil {
		return err
	}

	if locked {
		if err := s.Open(ctx, h.OperatorURL(PathNotifyUnlocked)); err != nil {
			return err
		}
		if err := h.store.SetBool(store.KeyLockedNotified, false); err != nil {
			return err
		}
	}
	if login {
		return h.store.SetBool(store.KeyLoginNotified, false)
	}
	return nil
}

// failedPage reports whether the page shows the load-failure retry screen
func (h *Handlers) failedPage(ctx context.Context, page browser.Page) bool {
	ok, err := page.Exists(ctx, RetryButton)
	if err != nil || !ok {
		return false
	}
	text, err := page.Text(ctx, PrimaryColumn)
	return err == nil && failedPattern.MatchString(text)
}

// giveUp logs a wait that timed out and schedules a reload.
func (h *Handlers) giveUp(ctx context.Context, s *dispatcher.Session, what string, err error) dispatcher.Transition {
	log := s.Log().WithError(err)
	if h.failedPage(ctx, s.Page) {
		log.Error("Page failed to load")
	}
	log.WithField("retry_in", h.timing.ReloadWait.String()).Warn(what + " not found, reloading later")
	return h.reloadWait()
}

// scrollSteps scrolls a fixed number of viewports with a pause after each.
func (h *Handlers) scrollSteps(ctx context.Context, page browser.Page) error {
	for range h.timing.TabScrollSteps {
		if err := page.ScrollByViewport(ctx); err != nil {
			return err
		}
		if err := poll.Sleep(ctx, h.timing.TabScrollWait.D()); err != nil {
			return err
		}
	}
	return nil
}
