package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/ibeckermayer/threadwalk/internal/poll"
)

// ErrElementNotFound is returned when a waited-for element never appeared.
var ErrElementNotFound = errors.New("element not found")

// Page is one browser tab. Selectors are CSS selectors evaluated with
// document.querySelector semantics.
type Page interface {
	// Location returns the full current address.
	Location(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Back(ctx context.Context) error

	Exists(ctx context.Context, selector string) (bool, error)
	Count(ctx context.Context, selector string) (int, error)
	// Click clicks the index-th element matching selector.
	Click(ctx context.Context, selector string, index int) error
	// ClickByText clicks every element matching selector whose text matches
	// the regular expression pattern and returns how many were clicked.
	ClickByText(ctx context.Context, selector, pattern string) (int, error)
	// Text returns the visible text of the first match, or "" when none.
	Text(ctx context.Context, selector string) (string, error)
	// OuterHTML returns the outer HTML of every match in document order.
	OuterHTML(ctx context.Context, selector string) ([]string, error)

	// ScrollByViewport scrolls down by one viewport height.
	ScrollByViewport(ctx context.Context) error
	ScrollHeight(ctx context.Context) (int64, error)

	// OpenTab opens url in a new tab of the same browser.
	OpenTab(ctx context.Context, url string) (Page, error)
	Close() error
}

// WaitFor polls until selector matches an element or the tries run out.
func WaitFor(ctx context.Context, p Page, selector string, opts poll.Options) error {
	err := poll.Until(ctx, opts, func(ctx context.Context) (bool, error) {
		return p.Exists(ctx, selector)
	})
	if errors.Is(err, poll.ErrTimeout) {
		return fmt.Errorf("%w: %s (%d tries every %s)", ErrElementNotFound, selector, opts.Tries, opts.Interval)
	}
	return err
}
