// Package dispatcher drives browser tabs through the page handlers. Each
// tab runs a driver loop: resolve the route for the current address, run
// its handler inside a session, apply the returned transition, repeat.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/threadwalk/internal/browser"
	"github.com/ibeckermayer/threadwalk/internal/crawler"
	"github.com/ibeckermayer/threadwalk/internal/poll"
)

const watchdogJob = "watchdog"

var errRouteChanged = errors.New("route changed")

// Handler runs one page type. It returns what the driver does next.
type Handler func(ctx context.Context, s *Session) (Transition, error)

// CrawlerFactory builds the crawl loop for a session
type CrawlerFactory func(page browser.Page, sched crawler.Scheduler, log *logrus.Entry) *crawler.Crawler

type Options struct {
	// Watchdog is how often the active route is re-resolved.
	Watchdog time.Duration
	// ReloadWait is the cool-down before reloading after a failed handler.
	ReloadWait time.Duration
}

// Dispatcher owns the route table and every tab driver started from it.
type Dispatcher struct {
	routes     Table
	opts       Options
	newCrawler CrawlerFactory
	log        *logrus.Entry

	tabs sync.WaitGroup
}

func New(routes Table, opts Options, newCrawler CrawlerFactory, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		routes:     routes,
		opts:       opts,
		newCrawler: newCrawler,
		log:        log.WithField("component", "dispatcher"),
	}
}

// Routes returns the route table
func (d *Dispatcher) Routes() Table { return d.routes }

// Run drives page until ctx is cancelled or a handler closes the tab.
func (d *Dispatcher) Run(ctx context.Context, page browser.Page) error {
	return d.drive(ctx, page, "")
}

// drive is Run with visits routed by opened instead of the loaded address
// until a handler moves the tab somewhere else.
func (d *Dispatcher) drive(ctx context.Context, page browser.Page, opened string) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		tr := d.visit(ctx, page, opened)
		if tr.kind != kindReload {
			opened = ""
		}
		if ctx.Err() != nil {
			return nil
		}

		done, err := d.apply(ctx, page, tr)
		if done {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.log.WithError(err).WithField("transition", tr.String()).Error("Transition failed")
			if err := poll.Sleep(ctx, d.opts.ReloadWait); err != nil {
				return nil
			}
			if err := page.Reload(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("tab unusable: %w", err)
			}
		}
	}
}

// Wait blocks until every tab opened through Session.Open has finished.
func (d *Dispatcher) Wait() { d.tabs.Wait() }

// Open loads url in a new tab of from and drives it until its handler
// closes it or root is cancelled. ctx bounds only the tab creation.
//
// The first visit of the tab runs the route of url even when the site
// redirected the load elsewhere, and it is not watched for route changes.
// A locked or logged-out account is redirected from every address, and the
// notification pages have to run regardless.
func (d *Dispatcher) Open(ctx, root context.Context, from browser.Page, url string) error {
	tab, err := from.OpenTab(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	d.spawn(root, tab, url)
	return nil
}

func (d *Dispatcher) spawn(ctx context.Context, tab browser.Page, url string) {
	d.tabs.Add(1)
	go func() {
		defer d.tabs.Done()
		if err := d.drive(ctx, tab, url); err != nil {
			d.log.WithError(err).Error("Tab driver stopped")
		}
		if ctx.Err() != nil {
			tab.Close()
		}
	}()
}

// visit runs one page load and returns the transition to apply after it.
// A routable opened address pins the route for this visit.
func (d *Dispatcher) visit(ctx context.Context, page browser.Page, opened string) Transition {
	var (
		idx     int
		matched bool
	)
	if opened != "" {
		idx, matched = d.routes.Resolve(opened)
	}
	pinned := matched

	url := opened
	if !pinned {
		var err error
		if url, err = page.Location(ctx); err != nil {
			if ctx.Err() == nil {
				d.log.WithError(err).Error("Failed to read page address")
			}
			return ReloadAfter(d.opts.ReloadWait)
		}
		idx, matched = d.routes.Resolve(url)
	}

	s := d.NewSession(ctx, page, url)
	defer s.End()

	visitCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if !pinned {
		if err := s.Scheduler.AddEvery(watchdogJob, d.opts.Watchdog, d.watchdog(page, idx, cancel, s.base)); err != nil {
			s.base.WithError(err).Error("Failed to arm watchdog")
		}
	}

	if !matched {
		s.base.Warn("No route matches page")
		<-visitCtx.Done()
		return d.afterCancel(visitCtx)
	}

	route := d.routes[idx]
	tr, err := d.runHandler(visitCtx, s, route.Name, route.Handle)
	for err == nil && tr.kind == kindNext {
		s.Log().WithField("next", tr.name).Debug("Handing off")
		tr, err = d.runHandler(visitCtx, s, tr.name, tr.handler)
	}

	if visitCtx.Err() != nil {
		return d.afterCancel(visitCtx)
	}
	if err != nil {
		s.Log().WithError(err).WithField("retry_in", d.opts.ReloadWait.String()).Error("Page handler failed")
		return ReloadAfter(d.opts.ReloadWait)
	}
	if tr.kind == kindStay {
		<-visitCtx.Done()
		return d.afterCancel(visitCtx)
	}

	s.Log().WithField("transition", tr.String()).Debug("Handler done")
	return tr
}

// afterCancel turns a cancelled visit into a transition. A route change
// reloads immediately; anything else means the driver is stopping.
func (d *Dispatcher) afterCancel(visitCtx context.Context) Transition {
	if errors.Is(context.Cause(visitCtx), errRouteChanged) {
		return ReloadAfter(0)
	}
	return Stay()
}

func (d *Dispatcher) runHandler(ctx context.Context, s *Session, name string, h Handler) (tr Transition, err error) {
	s.setRoute(name)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %s panicked: %v", name, r)
		}
	}()
	return h(ctx, s)
}

// watchdog cancels the visit once the page address resolves to a
// different route than the one the visit started on.
func (d *Dispatcher) watchdog(page browser.Page, active int, cancel context.CancelCauseFunc, log *logrus.Entry) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		url, err := page.Location(ctx)
		if err != nil {
			return err
		}
		if idx, _ := d.routes.Resolve(url); idx != active {
			log.WithField("new_url", url).Info("Route changed, reloading")
			cancel(errRouteChanged)
		}
		return nil
	}
}

// apply performs tr on page. done is true once the tab is closed.
func (d *Dispatcher) apply(ctx context.Context, page browser.Page, tr Transition) (done bool, err error) {
	switch tr.kind {
	case kindNavigate:
		return false, page.Navigate(ctx, tr.url)
	case kindReload:
		if err := poll.Sleep(ctx, tr.wait); err != nil {
			return false, err
		}
		return false, page.Reload(ctx)
	case kindBack:
		return false, page.Back(ctx)
	case kindClose:
		return true, page.Close()
	default:
		return false, nil
	}
}
