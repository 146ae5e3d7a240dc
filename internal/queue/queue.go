// Package queue tracks which tweets are waiting for a visit and which have
// already been processed.
package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ibeckermayer/threadwalk/internal/poll"
	"github.com/ibeckermayer/threadwalk/internal/store"
)

// Store is the persistence the manager needs.
type Store interface {
	CheckedTweets() ([]string, error)
	SetCheckedTweets(ids []string) error
	WaitingTweets() ([]string, error)
	SetWaitingTweets(ids []string) error
}

var _ Store = (*store.Store)(nil)

// Manager maintains the checked set and the FIFO waiting queue.
//
// Membership checks use sets built from the stored arrays. The sets are
// rebuilt after any write made through the manager.
type Manager struct {
	store  Store
	pacing time.Duration

	mu         sync.Mutex
	checkedSet map[string]struct{}
	waitingSet map[string]struct{}
}

// New creates a manager. pacing is slept after every write.
func New(s Store, pacing time.Duration) *Manager {
	return &Manager{store: s, pacing: pacing}
}

// Stats holds collection sizes
type Stats struct {
	Waiting int
	Checked int
}

func (m *Manager) IsChecked(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadChecked(); err != nil {
		return false, err
	}
	_, ok := m.checkedSet[id]
	return ok, nil
}

func (m *Manager) IsWaiting(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadWaiting(); err != nil {
		return false, err
	}
	_, ok := m.waitingSet[id]
	return ok, nil
}

// Enqueue appends ids to the waiting queue. Ids that are already checked,
// already waiting, or repeated within ids are dropped. It returns how many
// ids were added. When nothing is added no write happens.
func (m *Manager) Enqueue(ctx context.Context, ids []string) (int, error) {
	m.mu.Lock()
	added, err := m.enqueueLocked(ids)
	m.mu.Unlock()
	if err != nil || added == 0 {
		return added, err
	}

	return added, poll.Sleep(ctx, m.pacing)
}

func (m *Manager) enqueueLocked(ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := m.loadChecked(); err != nil {
		return 0, err
	}

	waiting, err := m.store.WaitingTweets()
	if err != nil {
		return 0, fmt.Errorf("failed to load waiting tweets: %w", err)
	}
	seen := toSet(waiting)

	added := 0
	for _, id := range ids {
		if _, ok := m.checkedSet[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		waiting = append(waiting, id)
		added++
	}
	if added == 0 {
		m.waitingSet = seen
		return 0, nil
	}

	if err := m.store.SetWaitingTweets(waiting); err != nil {
		m.waitingSet = nil
		return 0, fmt.Errorf("failed to save waiting tweets: %w", err)
	}
	m.waitingSet = seen
	return added, nil
}

// NextWaiting peeks at the oldest waiting id. ok is false when the queue is empty.
func (m *Manager) NextWaiting() (id string, ok bool, err error) {
	waiting, err := m.store.WaitingTweets()
	if err != nil {
		return "", false, fmt.Errorf("failed to load waiting tweets: %w", err)
	}
	if len(waiting) == 0 {
		return "", false, nil
	}
	return waiting[0], true, nil
}

// MarkChecked adds id to the checked set and removes it from the waiting queue.
func (m *Manager) MarkChecked(ctx context.Context, id string) error {
	m.mu.Lock()
	err := m.markCheckedLocked(id)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return poll.Sleep(ctx, m.pacing)
}

func (m *Manager) markCheckedLocked(id string) error {
	checked, err := m.store.CheckedTweets()
	if err != nil {
		return fmt.Errorf("failed to load checked tweets: %w", err)
	}
	waiting, err := m.store.WaitingTweets()
	if err != nil {
		return fmt.Errorf("failed to load waiting tweets: %w", err)
	}

	// Drop the cached sets before writing so a failed write never leaves a stale view.
	m.checkedSet, m.waitingSet = nil, nil

	if !slices.Contains(checked, id) {
		checked = append(checked, id)
		if err := m.store.SetCheckedTweets(checked); err != nil {
			return fmt.Errorf("failed to save checked tweets: %w", err)
		}
	}

	if slices.Contains(waiting, id) {
		waiting = slices.DeleteFunc(waiting, func(w string) bool { return w == id })
		if err := m.store.SetWaitingTweets(waiting); err != nil {
			return fmt.Errorf("failed to save waiting tweets: %w", err)
		}
	}
	return nil
}

// ResetWaiting empties the waiting queue.
func (m *Manager) ResetWaiting(ctx context.Context) error {
	m.mu.Lock()
	m.waitingSet = nil
	err := m.store.SetWaitingTweets([]string{})
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to reset waiting tweets: %w", err)
	}
	return poll.Sleep(ctx, m.pacing)
}

func (m *Manager) Stats() (Stats, error) {
	waiting, err := m.store.WaitingTweets()
	if err != nil {
		return Stats{}, err
	}
	checked, err := m.store.CheckedTweets()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Waiting: len(waiting), Checked: len(checked)}, nil
}

func (m *Manager) loadChecked() error {
	if m.checkedSet != nil {
		return nil
	}
	checked, err := m.store.CheckedTweets()
	if err != nil {
		return fmt.Errorf("failed to load checked tweets: %w", err)
	}
	m.checkedSet = toSet(checked)
	return nil
}

func (m *Manager) loadWaiting() error {
	if m.waitingSet != nil {
		return nil
	}
	waiting, err := m.store.WaitingTweets()
	if err != nil {
		return fmt.Errorf("failed to load waiting tweets: %w", err)
	}
	m.waitingSet = toSet(waiting)
	return nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
