// Package crawler runs the periodic extract, archive and enqueue loop for one
// page load.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/threadwalk/internal/queue"
	"github.com/ibeckermayer/threadwalk/internal/scraper"
	"github.com/ibeckermayer/threadwalk/internal/types"
)

// JobName is the scheduler job the crawl loop runs as.
const JobName = "crawl"

// Extractor reads tweets off the current page.
type Extractor interface {
	Extract(ctx context.Context) ([]types.Tweet, error)
	ClearCache()
}

// Queue is the subset of the queue manager the loop writes to.
type Queue interface {
	IsChecked(id string) (bool, error)
	IsWaiting(id string) (bool, error)
	Enqueue(ctx context.Context, ids []string) (int, error)
	Stats() (queue.Stats, error)
}

type Archive interface {
	Merge(tweets []types.Tweet) error
}

// Scheduler runs the loop on a timer.
type Scheduler interface {
	AddEvery(name string, interval time.Duration, job func(ctx context.Context) error) error
	Has(name string) bool
	RemoveJob(name string)
}

// Thresholds are the inclusive minimum counts a tweet needs to be queued.
type Thresholds struct {
	Retweets int
	Replies  int
}

// Pass reports whether t meets both thresholds
func (th Thresholds) Pass(t types.Tweet) bool {
	return t.Retweets() >= th.Retweets && t.Replies() >= th.Replies
}

// Crawler is the crawl loop of one page load.
type Crawler struct {
	extractor  Extractor
	queue      Queue
	archive    Archive
	sched      Scheduler
	interval   time.Duration
	thresholds Thresholds
	log        *logrus.Entry

	mu    sync.Mutex
	count atomic.Int64
}

func New(e Extractor, q Queue, a Archive, sched Scheduler, interval time.Duration, th Thresholds, log *logrus.Entry) *Crawler {
	return &Crawler{
		extractor:  e,
		queue:      q,
		archive:    a,
		sched:      sched,
		interval:   interval,
		thresholds: th,
		log:        log.WithField("component", "crawler"),
	}
}

// Start schedules the loop. Calling it while the loop is scheduled does nothing.
func (c *Crawler) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sched.Has(JobName) {
		return nil
	}
	if err := c.sched.AddEvery(JobName, c.interval, c.Tick); err != nil {
		return fmt.Errorf("failed to start crawl loop: %w", err)
	}
	c.log.WithField("every", c.interval.String()).Debug("Crawl loop started")
	return nil
}

// Stop removes the loop so a later Start schedules it again. The parse
// cache is dropped along with it.
func (c *Crawler) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sched.RemoveJob(JobName)
	c.extractor.ClearCache()
}

// Running reports whether the loop is scheduled
func (c *Crawler) Running() bool { return c.sched.Has(JobName) }

// Count returns the tweets seen since the last ResetCount.
func (c *Crawler) Count() int64 { return c.count.Load() }

func (c *Crawler) ResetCount() { c.count.Store(0) }

// Tick runs one iteration of the loop.
func (c *Crawler) Tick(ctx context.Context) error {
	tweets, err := c.extractor.Extract(ctx)
	if err != nil {
		if errors.Is(err, scraper.ErrNotFound) {
			c.log.Debug("Skipping tick, tweet without permalink on page")
		} else {
			c.log.WithError(err).Debug("Skipping tick, extraction failed")
		}
		return nil
	}
	if len(tweets) == 0 {
		c.log.Debug("No tweets found")
		return nil
	}
	c.count.Add(int64(len(tweets)))

	if err := c.archive.Merge(tweets); err != nil {
		return fmt.Errorf("failed to archive tweets: %w", err)
	}

	var ids []string
	for _, t := range tweets {
		if !c.thresholds.Pass(t) {
			continue
		}
		known, err := c.known(t.TweetID)
		if err != nil {
			return err
		}
		if !known {
			ids = append(ids, t.TweetID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	added, err := c.queue.Enqueue(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to enqueue tweets: %w", err)
	}
	if added == 0 {
		return nil
	}

	stats, err := c.queue.Stats()
	if err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{"added": added, "waiting": stats.Waiting}).Info("Queued tweets")
	return nil
}

func (c *Crawler) known(id string) (bool, error) {
	checked, err := c.queue.IsChecked(id)
	if err != nil || checked {
		return checked, err
	}
	return c.queue.IsWaiting(id)
}
