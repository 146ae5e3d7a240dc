// Package archive keeps every extracted tweet record until it is exported.
package archive

import (
	"fmt"
	"sync"
	"time"

	"github.com/ibeckermayer/threadwalk/internal/digest"
	"github.com/ibeckermayer/threadwalk/internal/store"
	"github.com/ibeckermayer/threadwalk/internal/types"
)

// Store is the persistence the archive needs.
type Store interface {
	SavedTweets() ([]types.Tweet, error)
	SetSavedTweets(tweets []types.Tweet) error
}

var _ Store = (*store.Store)(nil)

// Archive is the saved-tweets map, persisted in insertion order.
type Archive struct {
	mu    sync.Mutex
	store Store
	limit int
	now   func() time.Time
}

// New creates an archive that needs exporting once it holds more than limit tweets.
func New(s Store, limit int) *Archive {
	return &Archive{store: s, limit: limit, now: time.Now}
}

// Export describes the files written by ExportAndClear
type Export struct {
	JSONPath   string
	ReportPath string
	Count      int
}

// Merge updates tweets already archived by id and appends the rest.
func (a *Archive) Merge(tweets []types.Tweet) error {
	if len(tweets) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	saved, err := a.store.SavedTweets()
	if err != nil {
		return fmt.Errorf("failed to load saved tweets: %w", err)
	}

	index := make(map[string]int, len(saved))
	for i, t := range saved {
		index[t.TweetID] = i
	}
	for _, t := range tweets {
		if i, ok := index[t.TweetID]; ok {
			saved[i] = t
			continue
		}
		index[t.TweetID] = len(saved)
		saved = append(saved, t)
	}

	if err := a.store.SetSavedTweets(saved); err != nil {
		return fmt.Errorf("failed to save tweets: %w", err)
	}
	return nil
}

// Lookup returns the archived record for id
func (a *Archive) Lookup(id string) (types.Tweet, bool, error) {
	saved, err := a.store.SavedTweets()
	if err != nil {
		return types.Tweet{}, false, err
	}
	for _, t := range saved {
		if t.TweetID == id {
			return t, true, nil
		}
	}
	return types.Tweet{}, false, nil
}

func (a *Archive) Len() (int, error) {
	saved, err := a.store.SavedTweets()
	if err != nil {
		return 0, err
	}
	return len(saved), nil
}

// IsNeedDownload reports whether the archive grew past its limit.
func (a *Archive) IsNeedDownload() (bool, error) {
	n, err := a.Len()
	if err != nil {
		return false, err
	}
	return n > a.limit, nil
}

// ExportAndClear writes the archive as JSON plus an HTML report into dir,
// then empties it. An empty archive writes nothing.
func (a *Archive) ExportAndClear(dir string) (*Export, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	saved, err := a.store.SavedTweets()
	if err != nil {
		return nil, fmt.Errorf("failed to load saved tweets: %w", err)
	}
	if len(saved) == 0 {
		return &Export{}, nil
	}

	now := a.now()
	jsonPath, err := store.SaveExport(dir, "saved-tweets", saved, now)
	if err != nil {
		return nil, err
	}

	html, err := digest.Build(saved, now)
	if err != nil {
		return nil, err
	}
	reportPath, err := store.SaveExportText(dir, "report", html, ".html", now)
	if err != nil {
		return nil, err
	}

	if err := a.store.SetSavedTweets(nil); err != nil {
		return nil, fmt.Errorf("failed to clear saved tweets: %w", err)
	}

	return &Export{JSONPath: jsonPath, ReportPath: reportPath, Count: len(saved)}, nil
}
