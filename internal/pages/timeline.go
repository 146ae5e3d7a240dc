package pages

import (
	"context"
	"fmt"

	"github.com/ibeckermayer/threadwalk/internal/browser"
	"github.com/ibeckermayer/threadwalk/internal/dispatcher"
	"github.com/ibeckermayer/threadwalk/internal/scraper"
	"github.com/ibeckermayer/threadwalk/internal/store"
)

// Home crawls every timeline tab, then moves on to explore (or home again
// when only the home timeline is crawled).
func (h *Handlers) Home(ctx context.Context, s *dispatcher.Session) (dispatcher.Transition, error) {
	if err := h.resetNotificationState(ctx, s); err != nil {
		return dispatcher.Stay(), err
	}
	if err := s.Crawler().Start(); err != nil {
		return dispatcher.Stay(), err
	}

	if err := browser.WaitFor(ctx, s.Page, TimelineTabList, h.elementWait()); err != nil {
		if ctx.Err() != nil {
			return dispatcher.Stay(), err
		}
		return h.giveUp(ctx, s, "Timeline tabs", err), nil
	}

	tabs, err := s.Page.Count(ctx, TimelineTab)
	if err != nil {
		return dispatcher.Stay(), err
	}

	for i := range tabs {
		log := s.Log().WithField("tab", i)
		if err := s.Page.Click(ctx, TimelineTab, i); err != nil {
			log.WithError(err).Warn("Failed to open timeline tab")
			continue
		}
		if err := browser.WaitFor(ctx, s.Page, scraper.TweetArticle, h.elementWait()); err != nil {
			if ctx.Err() != nil {
				return dispatcher.Stay(), err
			}
			if h.failedPage(ctx, s.Page) {
				return h.giveUp(ctx, s, "Tweets", err), nil
			}
			log.WithError(err).Warn("No tweets on tab, skipping")
			continue
		}
		if err := h.scrollSteps(ctx, s.Page); err != nil {
			return dispatcher.Stay(), err
		}
	}

	onlyHome, err := h.store.Flag(store.KeyOnlyHome, h.nav.OnlyHome)
	if err != nil {
		return dispatcher.Stay(), err
	}
	if onlyHome {
		return dispatcher.Navigate(h.nav.HomeURL), nil
	}
	return dispatcher.Navigate(h.nav.ExploreURL), nil
}

// Explore opens one trend at random. The search page it leads to is
// picked up by the route watchdog.
func (h *Handlers) Explore(ctx context.Context, s *dispatcher.Session) (dispatcher.Transition, error) {
	if err := h.resetNotificationState(ctx, s); err != nil {
		return dispatcher.Stay(), err
	}

	if err := browser.WaitFor(ctx, s.Page, Trend, h.elementWait()); err != nil {
		if ctx.Err() != nil {
			return dispatcher.Stay(), err
		}
		return h.giveUp(ctx, s, "Trends", err), nil
	}

	n, err := s.Page.Count(ctx, Trend)
	if err != nil {
		return dispatcher.Stay(), err
	}
	if n == 0 {
		return h.reloadWait(), nil
	}

	pick := h.randIntN(n)
	s.Log().WithField("trend", pick).Info("Opening trend")
	if err := s.Page.Click(ctx, Trend, pick); err != nil {
		return dispatcher.Stay(), fmt.Errorf("failed to open trend: %w", err)
	}
	return dispatcher.Stay(), nil
}

// Search switches to latest results, crawls them briefly and then starts
// visiting queued tweets.
func (h *Handlers) Search(ctx context.Context, s *dispatcher.Session) (dispatcher.Transition, error) {
	if err := h.resetNotificationState(ctx, s); err != nil {
		return dispatcher.Stay(), err
	}

	live, changed, err := liveSearch(s.URL)
	if err != nil {
		return dispatcher.Stay(), err
	}
	if changed {
		return dispatcher.Navigate(live), nil
	}

	if err := s.Crawler().Start(); err != nil {
		return dispatcher.Stay(), err
	}
	if err := browser.WaitFor(ctx, s.Page, scraper.TweetArticle, h.elementWait()); err != nil {
		if ctx.Err() != nil {
			return dispatcher.Stay(), err
		}
		return h.giveUp(ctx, s, "Tweets", err), nil
	}
	if err := h.scrollSteps(ctx, s.Page); err != nil {
		return dispatcher.Stay(), err
	}
	return dispatcher.Next(RouteTweetOnlyOpen, h.TweetOnlyOpen), nil
}
