package pages

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/threadwalk/internal/browser"
	"github.com/ibeckermayer/threadwalk/internal/dispatcher"
	"github.com/ibeckermayer/threadwalk/internal/poll"
	"github.com/ibeckermayer/threadwalk/internal/scraper"
)

// errDecided stops the other tweet page tasks once one has picked the
// transition.
var errDecided = errors.New("tweet page decided")

// TweetOnlyOpen opens the next queued tweet without crawling the current page.
func (h *Handlers) TweetOnlyOpen(ctx context.Context, s *dispatcher.Session) (dispatcher.Transition, error) {
	need, err := h.archive.IsNeedDownload()
	if err != nil {
		return dispatcher.Stay(), err
	}
	if need {
		s.Log().Info("Archive full, exporting")
		return dispatcher.Navigate(h.OperatorURL(PathExport)), nil
	}

	id, ok, err := h.queue.NextWaiting()
	if err != nil {
		return dispatcher.Stay(), err
	}
	if !ok {
		s.Log().Debug("Queue empty")
		return dispatcher.Navigate(h.nav.FallbackURL), nil
	}

	target := TweetURL(id)
	if t, found, err := h.archive.Lookup(id); err == nil && found && t.URL != "" {
		target = t.URL
	}
	s.Log().WithField("tweet_id", id).Info("Opening queued tweet")
	return dispatcher.Navigate(target), nil
}

// Tweet crawls a tweet page and its replies. Two watchers run alongside
// and skip the tweet when the page reports it removed; whichever task
// decides first cancels the others.
func (h *Handlers) Tweet(ctx context.Context, s *dispatcher.Session) (dispatcher.Transition, error) {
	if err := h.resetNotificationState(ctx, s); err != nil {
		return dispatcher.Stay(), err
	}
	if err := s.Crawler().Start(); err != nil {
		return dispatcher.Stay(), err
	}

	id, ok := tweetID(s.URL)
	if !ok {
		return h.TweetOnlyOpen(ctx, s)
	}
	log := s.Log().WithField("tweet_id", id)

	var (
		once   sync.Once
		result dispatcher.Transition
	)
	decide := func(tr dispatcher.Transition) error {
		once.Do(func() { result = tr })
		return errDecided
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := poll.Every(gctx, h.timing.PollInterval.D(), func(ctx context.Context) (bool, error) {
			return h.deletedDialog(ctx, s.Page)
		})
		if err != nil {
			return nil
		}
		log.Info("Tweet deleted, skipping")
		return h.skip(gctx, s, id, decide)
	})
	g.Go(func() error {
		err := poll.Every(gctx, h.timing.PollInterval.D(), func(ctx context.Context) (bool, error) {
			return h.unprocessable(ctx, s.Page)
		})
		if err != nil {
			return nil
		}
		log.Info("Tweet unavailable, skipping")
		return h.skip(gctx, s, id, decide)
	})
	g.Go(func() error {
		tr, err := h.crawlTweet(gctx, s, id, log)
		if err != nil {
			return err
		}
		return decide(tr)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errDecided) {
		return dispatcher.Stay(), err
	}
	return result, nil
}

// skip marks id done and moves on to the next queued tweet.
func (h *Handlers) skip(ctx context.Context, s *dispatcher.Session, id string, decide func(dispatcher.Transition) error) error {
	if err := h.queue.MarkChecked(ctx, id); err != nil {
		return err
	}
	s.Crawler().ResetCount()
	return decide(dispatcher.Next(RouteTweetOnlyOpen, h.TweetOnlyOpen))
}

func (h *Handlers) crawlTweet(ctx context.Context, s *dispatcher.Session, id string, log *logrus.Entry) (dispatcher.Transition, error) {
	if err := browser.WaitFor(ctx, s.Page, scraper.TweetArticle, h.elementWait()); err != nil {
		if ctx.Err() != nil {
			return dispatcher.Stay(), err
		}
		if h.failedPage(ctx, s.Page) {
			log.WithError(err).Error("Page failed to load")
		}

		retry, err := h.store.RetryCount()
		if err != nil {
			return dispatcher.Stay(), err
		}
		if retry >= h.timing.MaxRetry {
			log.WithField("retries", retry).Warn("Tweet never loaded, skipping")
			if err := h.store.SetRetryCount(0); err != nil {
				return dispatcher.Stay(), err
			}
			if err := h.queue.MarkChecked(ctx, id); err != nil {
				return dispatcher.Stay(), err
			}
			return dispatcher.Next(RouteTweetOnlyOpen, h.TweetOnlyOpen), nil
		}

		if err := h.store.SetRetryCount(retry + 1); err != nil {
			return dispatcher.Stay(), err
		}
		log.WithFields(logrus.Fields{"retry": retry + 1, "retry_in": h.timing.ReloadWait.String()}).Warn("Tweet not found, reloading later")
		return h.reloadWait(), nil
	}

	if err := h.store.SetRetryCount(0); err != nil {
		return dispatcher.Stay(), err
	}

	if err := h.scroller(s).Exhaust(ctx); err != nil {
		return dispatcher.Stay(), err
	}

	// Pick up replies loaded since the last crawl tick.
	if err := s.Crawler().Tick(ctx); err != nil {
		log.WithError(err).Warn("Final crawl failed")
	}

	if s.Crawler().Count() == 0 {
		log.Warn("No tweets seen on page")
		return dispatcher.Navigate(h.nav.FallbackURL), nil
	}

	if err := h.queue.MarkChecked(ctx, id); err != nil {
		return dispatcher.Stay(), err
	}
	s.Crawler().ResetCount()
	log.Info("Tweet done")
	return dispatcher.Next(RouteTweetOnlyOpen, h.TweetOnlyOpen), nil
}

func (h *Handlers) deletedDialog(ctx context.Context, page browser.Page) (bool, error) {
	ok, err := page.Exists(ctx, ErrorDialog)
	if err != nil || !ok {
		return false, err
	}
	text, err := page.Text(ctx, ErrorDialog)
	if err != nil {
		return false, err
	}
	return deletedPattern.MatchString(text), nil
}

func (h *Handlers) unprocessable(ctx context.Context, page browser.Page) (bool, error) {
	text, err := page.Text(ctx, ArticleBody)
	if err != nil {
		return false, err
	}
	return unprocessablePattern.MatchString(text), nil
}
