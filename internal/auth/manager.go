package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/threadwalk/internal/browser"
	"github.com/ibeckermayer/threadwalk/internal/poll"
)

const (
	LoginURL = "https://x.com/i/flow/login"
	homeURL  = "https://x.com/home"

	loginTimeout = 5 * time.Minute
	loginPoll    = 2 * time.Second
)

// CookieSource is a browser tab that can report its cookies
type CookieSource interface {
	Location(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]*network.Cookie, error)
}

// Manager handles the X session
type Manager struct {
	cookieStore *CookieStore
	userDataDir string
	log         *logrus.Entry
}

func NewManager(cookieStore *CookieStore, userDataDir string, log *logrus.Entry) *Manager {
	return &Manager{cookieStore: cookieStore, userDataDir: userDataDir, log: log.WithField("component", "auth")}
}

// IsAuthenticated checks for a usable stored session
func (m *Manager) IsAuthenticated() bool {
	return m.cookieStore.Valid(time.Now())
}

// Login opens a visible browser on the login flow and waits up to five
// minutes for the operator to reach the home timeline. The session cookies
// are stored on success.
func (m *Manager) Login(ctx context.Context) error {
	page, err := browser.Launch(ctx, false, m.userDataDir)
	if err != nil {
		return err
	}
	defer page.Close()

	if err := page.Navigate(ctx, LoginURL); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}
	m.log.Info("Waiting for login in the browser window")

	cookies, err := m.waitForLogin(ctx, page, poll.Within(loginTimeout, loginPoll))
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := m.cookieStore.Save(cookies, time.Now()); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	m.log.WithField("cookies", len(cookies)).Info("Login successful")
	return nil
}

// waitForLogin polls until the tab shows the home timeline with an
// auth_token cookie set, and returns the cookies at that point.
func (m *Manager) waitForLogin(ctx context.Context, page CookieSource, opts poll.Options) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := poll.Until(ctx, opts, func(ctx context.Context) (bool, error) {
		url, err := page.Location(ctx)
		if err != nil {
			return false, err
		}
		if !strings.HasPrefix(url, homeURL) {
			return false, nil
		}
		all, err := page.Cookies(ctx)
		if err != nil {
			return false, err
		}
		for _, c := range all {
			if c.Name == "auth_token" && c.Value != "" {
				cookies = all
				return true, nil
			}
		}
		return false, nil
	})
	return cookies, err
}

// Logout clears stored credentials
func (m *Manager) Logout() error {
	return m.cookieStore.Clear()
}

// Cookies returns the stored x.com cookies to inject into the crawler browser
func (m *Manager) Cookies() ([]*network.Cookie, error) {
	return m.cookieStore.XCookies()
}
