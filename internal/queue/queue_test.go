package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadwalk/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, 0), s
}

func TestMarkCheckedMovesFromWaiting(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		waiting []string
		checked []string
	}{
		{"waiting", []string{"1", "2"}, nil},
		{"already checked", nil, []string{"1"}},
		{"unknown", []string{"2"}, nil},
		{"both", []string{"1"}, []string{"1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, s := newTestManager(t)
			require.NoError(t, s.SetWaitingTweets(tc.waiting))
			require.NoError(t, s.SetCheckedTweets(tc.checked))

			require.NoError(t, m.MarkChecked(ctx, "1"))

			checked, err := m.IsChecked("1")
			require.NoError(t, err)
			assert.True(t, checked)

			waiting, err := m.IsWaiting("1")
			require.NoError(t, err)
			assert.False(t, waiting)

			ids, err := s.CheckedTweets()
			require.NoError(t, err)
			assert.Equal(t, 1, countOf(ids, "1"), "checked set holds the id once")
		})
	}
}

func TestEnqueueEmptyIsNoop(t *testing.T) {
	m, s := newTestManager(t)
	require.NoError(t, s.SetWaitingTweets([]string{"5"}))

	added, err := m.Enqueue(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, added)

	ids, err := s.WaitingTweets()
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, ids)
}

func TestEnqueueIsFIFOAndSkipsKnownIDs(t *testing.T) {
	ctx := context.Background()
	m, s := newTestManager(t)
	require.NoError(t, s.SetCheckedTweets([]string{"3"}))

	added, err := m.Enqueue(ctx, []string{"1", "2", "3", "2"})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = m.Enqueue(ctx, []string{"2", "4"})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	ids, err := s.WaitingTweets()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "4"}, ids)

	next, ok, err := m.NextWaiting()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", next)

	// Peek does not consume.
	next, _, _ = m.NextWaiting()
	assert.Equal(t, "1", next)

	require.NoError(t, m.MarkChecked(ctx, "1"))
	next, ok, err = m.NextWaiting()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", next)
}

func TestNextWaitingOnEmptyQueue(t *testing.T) {
	m, _ := newTestManager(t)

	id, ok, err := m.NextWaiting()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestResetWaiting(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)
	_, err := m.Enqueue(ctx, []string{"1", "2"})
	require.NoError(t, err)

	require.NoError(t, m.ResetWaiting(ctx))

	waiting, err := m.IsWaiting("1")
	require.NoError(t, err)
	assert.False(t, waiting)

	stats, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Waiting: 0, Checked: 0}, stats)
}

func TestMembershipCacheSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	waiting, err := m.IsWaiting("9")
	require.NoError(t, err)
	assert.False(t, waiting)

	_, err = m.Enqueue(ctx, []string{"9"})
	require.NoError(t, err)

	waiting, err = m.IsWaiting("9")
	require.NoError(t, err)
	assert.True(t, waiting)
}

type failingStore struct{}

func (failingStore) CheckedTweets() ([]string, error) { return nil, errors.New("disk gone") }
func (failingStore) SetCheckedTweets([]string) error { return errors.New("disk gone") }
func (failingStore) WaitingTweets() ([]string, error) { return nil, errors.New("disk gone") }
func (failingStore) SetWaitingTweets([]string) error { return errors.New("disk gone") }

func TestStoreErrorsAreReturned(t *testing.T) {
	m := New(failingStore{}, 0)

	_, err := m.IsChecked("1")
	assert.ErrorContains(t, err, "disk gone")

	_, _, err = m.NextWaiting()
	assert.ErrorContains(t, err, "disk gone")

	err = m.MarkChecked(context.Background(), "1")
	assert.ErrorContains(t, err, "disk gone")
}

func countOf(ids []string, id string) int {
	n := 0
	for _, v := range ids {
		if v == id {
			n++
		}
	}
	return n
}
