package browser_test

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/threadwalk/internal/browser"
)

const blankPage = "data:text/html,<title>tab</title>"

func requireChrome(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("launches Chrome")
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no Chrome binary on PATH")
}

func TestOpenTabKeepsTabUsable(t *testing.T) {
	requireChrome(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	page, err := browser.Launch(ctx, true, t.TempDir())
	require.NoError(t, err)
	defer page.Close()

	tab, err := page.OpenTab(ctx, blankPage)
	require.NoError(t, err)
	defer tab.Close()

	// Calls after the opening navigation must still get answers.
	callCtx, callCancel := context.WithTimeout(ctx, 10*time.Second)
	defer callCancel()

	url, err := tab.Location(callCtx)
	require.NoError(t, err)
	assert.Equal(t, blankPage, url)

	ok, err := tab.Exists(callCtx, "title")
	require.NoError(t, err)
	assert.True(t, ok)
}
