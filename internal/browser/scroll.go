package browser

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ExpandTarget is one "show more replies" style control clicked on every
// scroll tick.
type ExpandTarget struct {
	Selector string
	Pattern  string
}

// Scroller scrolls a page until it stops growing.
type Scroller struct {
	page     Page
	interval time.Duration
	maxFail  int
	expand   []ExpandTarget
	log      *logrus.Entry

	running atomic.Bool
}

func NewScroller(page Page, interval time.Duration, maxFail int, expand []ExpandTarget, log *logrus.Entry) *Scroller {
	return &Scroller{page: page, interval: interval, maxFail: maxFail, expand: expand, log: log}
}

// Exhaust scrolls one viewport per tick, clicks the expand targets and
// compares the document height with the previous tick. It returns after
// maxFail consecutive ticks without growth. A call made while another is
// running returns nil immediately.
func (s *Scroller) Exhaust(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	defer s.running.Store(false)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var lastHeight int64 = -1
	failCount := 0

	for failCount < s.maxFail {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := s.page.ScrollByViewport(ctx); err != nil {
			return err
		}
		for _, t := range s.expand {
			if _, err := s.page.ClickByText(ctx, t.Selector, t.Pattern); err != nil {
				s.log.WithError(err).Debug("Expand click failed")
			}
		}

		height, err := s.page.ScrollHeight(ctx)
		if err != nil {
			return err
		}

		if height == lastHeight {
			failCount++
			s.log.WithFields(logrus.Fields{"height": height, "fail_count": failCount}).Warn("Scroll height unchanged")
		} else {
			failCount = 0
			s.log.WithField("height", height).Info("Scroll loaded more content")
		}
		lastHeight = height
	}

	s.log.WithField("fail_count", failCount).Info("Scroll exhausted")
	return nil
}

// Running reports whether Exhaust is in progress
func (s *Scroller) Running() bool { return s.running.Load() }
