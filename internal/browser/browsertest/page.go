// Package browsertest provides a scripted in-memory browser.Page.
package browsertest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ibeckermayer/threadwalk/internal/browser"
)

// Page is a fake tab. Tests populate its fields (or use the setters while
// the page is in use) and inspect Calls afterwards. The zero value is not
// usable; call New.
type Page struct {
	mu sync.Mutex

	url     string
	history []string

	counts  map[string]int
	texts   map[string]string
	html    map[string][]string
	heights []int64
	height  int

	// appearAfter makes a selector exist only after it was checked n times.
	appearAfter map[string]int
	checks      map[string]int

	calls  []string
	tabs   []*Page
	closed bool

	textClicks map[string]int

	// OnNavigate runs after every Navigate, Reload or Back with the new address.
	OnNavigate func(p *Page, url string)
	// OnClick runs after every successful Click.
	OnClick func(p *Page, selector string, index int)
	// OnOpen runs on every tab OpenTab creates, before it is returned.
	OnOpen func(tab *Page)
}

var _ browser.Page = (*Page)(nil)

func New(url string) *Page {
	return &Page{
		url:         url,
		counts:      map[string]int{},
		texts:       map[string]string{},
		html:        map[string][]string{},
		appearAfter: map[string]int{},
		checks:      map[string]int{},
		textClicks:  map[string]int{},
	}
}

// SetURL changes the address without recording a navigation, like an SPA route change.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// SetCount sets how many elements match selector
func (p *Page) SetCount(selector string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[selector] = n
}

// AppearAfter makes selector match once Exists was asked n times
func (p *Page) AppearAfter(selector string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.appearAfter[selector] = n
	p.counts[selector] = 0
}

func (p *Page) SetText(selector, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts[selector] = text
	if p.counts[selector] == 0 {
		p.counts[selector] = 1
	}
}

func (p *Page) SetHTML(selector string, html ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html[selector] = html
	p.counts[selector] = len(html)
}

// SetHeights scripts successive ScrollHeight results; the last value repeats.
func (p *Page) SetHeights(heights ...int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heights = heights
	p.height = 0
}

// Calls returns the recorded actions, e.g. "navigate https://x.com/home".
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

// CallCount counts recorded actions equal to call
func (p *Page) CallCount(call string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (p *Page) Tabs() []*Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.tabs)
}

func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// TextClicks returns how often ClickByText was called for selector
func (p *Page) TextClicks(selector string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.textClicks[selector]
}

func (p *Page) record(format string, args ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *Page) Location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.history = append(p.history, p.url)
	p.url = url
	p.record("navigate %s", url)
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.record("reload")
	url := p.url
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *Page) Back(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.record("back")
	if n := len(p.history); n > 0 {
		p.url = p.history[n-1]
		p.history = p.history[:n-1]
	}
	url := p.url
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.checks[selector]++
	if n, ok := p.appearAfter[selector]; ok && p.checks[selector] >= n {
		delete(p.appearAfter, selector)
		if p.counts[selector] == 0 {
			p.counts[selector] = 1
		}
	}
	return p.counts[selector] > 0, nil
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[selector], nil
}

func (p *Page) Click(ctx context.Context, selector string, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if index >= p.counts[selector] {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s[%d]", browser.ErrElementNotFound, selector, index)
	}
	p.record("click %s[%d]", selector, index)
	hook := p.OnClick
	p.mu.Unlock()

	if hook != nil {
		hook(p, selector, index)
	}
	return nil
}

func (p *Page) ClickByText(ctx context.Context, selector, pattern string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.textClicks[selector]++
	return 0, nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.texts[selector], nil
}

func (p *Page) OuterHTML(ctx context.Context, selector string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.html[selector]), nil
}

func (p *Page) ScrollByViewport(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("scroll")
	return nil
}

func (p *Page) ScrollHeight(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.heights) == 0 {
		return 0, nil
	}
	h := p.heights[min(p.height, len(p.heights)-1)]
	p.height++
	return h, nil
}

func (p *Page) OpenTab(ctx context.Context, url string) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tab := New(url)
	p.mu.Lock()
	tab.OnNavigate = p.OnNavigate
	p.tabs = append(p.tabs, tab)
	p.record("open %s", url)
	hook := p.OnOpen
	p.mu.Unlock()

	if hook != nil {
		hook(tab)
	}
	return tab, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.record("close")
	return nil
}
