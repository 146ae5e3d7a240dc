package auth

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/ibeckermayer/threadwalk/internal/config"
)

// Cookies an X session cannot work without
var requiredCookies = []string{"auth_token", "ct0"}

// CookieStore persists the X session cookies captured at login
type CookieStore struct {
	path string
}

// StoredCookies is the on-disk cookie file
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

// DefaultCookieStorePath returns cookies.json in the config directory
func DefaultCookieStorePath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cookies.json"), nil
}

// Save writes cookies to disk. The session expires with the earliest of the
// required cookies.
func (cs *CookieStore) Save(cookies []*network.Cookie, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(cs.path), 0700); err != nil {
		return err
	}

	var expires time.Time
	for _, c := range cookies {
		if !slices.Contains(requiredCookies, c.Name) || c.Expires <= 0 {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0)
		if expires.IsZero() || exp.Before(expires) {
			expires = exp
		}
	}

	data, err := json.MarshalIndent(StoredCookies{
		Cookies:    cookies,
		CapturedAt: now,
		ExpiresAt:  expires,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cs.path, data, 0600)
}

func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}
	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// Valid reports whether a stored session exists, has the required cookies
// and has not expired at now. A zero expiry means session cookies only.
func (cs *CookieStore) Valid(now time.Time) bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}
	if !stored.ExpiresAt.IsZero() && now.After(stored.ExpiresAt) {
		return false
	}

	found := 0
	for _, name := range requiredCookies {
		for _, c := range stored.Cookies {
			if c.Name == name && c.Value != "" {
				found++
				break
			}
		}
	}
	return found == len(requiredCookies)
}

// Clear removes the stored session. Clearing twice is not an error.
func (cs *CookieStore) Clear() error {
	err := os.Remove(cs.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// XCookies returns the stored cookies scoped to x.com
func (cs *CookieStore) XCookies() ([]*network.Cookie, error) {
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}
	var out []*network.Cookie
	for _, c := range stored.Cookies {
		if strings.TrimPrefix(c.Domain, ".") == "x.com" {
			out = append(out, c)
		}
	}
	return out, nil
}
