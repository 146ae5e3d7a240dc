package store

import (
	"fmt"
	"strconv"

	"github.com/ibeckermayer/threadwalk/internal/types"
)

// Persisted keys. The names are part of the stored format.
const (
	KeyCheckedTweets  = "checkedTweets"
	KeyWaitingTweets  = "waitingTweets"
	KeySavedTweets    = "savedTweets"
	KeyLoginNotified  = "isLoginNotified"
	KeyLockedNotified = "isLockedNotified"
	KeyRetryCount     = "retryCount"
	KeyStoredVersion  = "storedVersion"
	KeyOnlyHome       = "isOnlyHome"
)

func (s *Store) CheckedTweets() ([]string, error) {
	return GetOr(s, KeyCheckedTweets, []string{})
}

func (s *Store) SetCheckedTweets(ids []string) error {
	return s.Set(KeyCheckedTweets, nonNil(ids))
}

func (s *Store) WaitingTweets() ([]string, error) {
	return GetOr(s, KeyWaitingTweets, []string{})
}

func (s *Store) SetWaitingTweets(ids []string) error {
	return s.Set(KeyWaitingTweets, nonNil(ids))
}

func (s *Store) SavedTweets() ([]types.Tweet, error) {
	return GetOr(s, KeySavedTweets, []types.Tweet{})
}

func (s *Store) SetSavedTweets(tweets []types.Tweet) error {
	if tweets == nil {
		tweets = []types.Tweet{}
	}
	return s.Set(KeySavedTweets, tweets)
}

func (s *Store) Bool(key string) (bool, error) {
	return GetOr(s, key, false)
}

func (s *Store) SetBool(key string, v bool) error {
	return s.Set(key, v)
}

func (s *Store) RetryCount() (int, error) {
	return GetOr(s, KeyRetryCount, 0)
}

func (s *Store) SetRetryCount(n int) error {
	return s.Set(KeyRetryCount, n)
}

func (s *Store) StoredVersion() (string, error) {
	return GetOr(s, KeyStoredVersion, "")
}

func (s *Store) SetStoredVersion(v string) error {
	return s.Set(KeyStoredVersion, v)
}

// Flag reads a boolean persisted as the string "true" or "false".
func (s *Store) Flag(key string, def bool) (bool, error) {
	raw, err := GetOr(s, key, strconv.FormatBool(def))
	if err != nil {
		return def, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("invalid flag %s=%q: %w", key, raw, err)
	}
	return v, nil
}

// SetFlag persists a boolean as the string "true" or "false".
func (s *Store) SetFlag(key string, v bool) error {
	return s.Set(key, strconv.FormatBool(v))
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
