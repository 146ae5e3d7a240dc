package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// ChromePage drives a Chrome tab through chromedp.
type ChromePage struct {
	ctx    context.Context // chromedp target context
	cancel context.CancelFunc
}

var _ Page = (*ChromePage)(nil)

// Launch starts a browser and returns its first tab. Closing the returned
// page shuts the whole browser down, as does cancelling ctx.
func Launch(ctx context.Context, headless bool, userDataDir string) (*ChromePage, error) {
	opts := Options(headless)
	if userDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(userDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &ChromePage{
		ctx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}, nil
}

// run executes actions on the tab, aborting early when ctx is done.
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *ChromePage) eval(ctx context.Context, js string, res any) error {
	return p.run(ctx, chromedp.Evaluate(js, res))
}

func (p *ChromePage) Location(ctx context.Context) (string, error) {
	var url string
	err := p.run(ctx, chromedp.Location(&url))
	return url, err
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *ChromePage) Reload(ctx context.Context) error {
	return p.run(ctx, chromedp.Reload())
}

func (p *ChromePage) Back(ctx context.Context) error {
	return p.run(ctx, chromedp.NavigateBack())
}

func (p *ChromePage) Exists(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := p.eval(ctx, fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector)), &ok)
	return ok, err
}

func (p *ChromePage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	err := p.eval(ctx, fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector)), &n)
	return n, err
}

func (p *ChromePage) Click(ctx context.Context, selector string, index int) error {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelectorAll(%s)[%d];
		if (!el) return false;
		el.click();
		return true;
	})()`, jsString(selector), index)

	var clicked bool
	if err := p.eval(ctx, js, &clicked); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: %s[%d]", ErrElementNotFound, selector, index)
	}
	return nil
}

func (p *ChromePage) ClickByText(ctx context.Context, selector, pattern string) (int, error) {
	js := fmt.Sprintf(`(() => {
		const re = new RegExp(%s);
		let n = 0;
		document.querySelectorAll(%s).forEach(el => {
			if (re.test(el.innerText || '')) { el.click(); n++; }
		});
		return n;
	})()`, jsString(pattern), jsString(selector))

	var n int
	err := p.eval(ctx, js, &n)
	return n, err
}

func (p *ChromePage) Text(ctx context.Context, selector string) (string, error) {
	var text string
	js := fmt.Sprintf(`document.querySelector(%s)?.innerText ?? ""`, jsString(selector))
	err := p.eval(ctx, js, &text)
	return text, err
}

func (p *ChromePage) OuterHTML(ctx context.Context, selector string) ([]string, error) {
	var html []string
	js := fmt.Sprintf(`Array.from(document.querySelectorAll(%s), el => el.outerHTML)`, jsString(selector))
	err := p.eval(ctx, js, &html)
	return html, err
}

func (p *ChromePage) ScrollByViewport(ctx context.Context) error {
	return p.eval(ctx, `window.scrollBy(0, window.innerHeight)`, nil)
}

func (p *ChromePage) ScrollHeight(ctx context.Context) (int64, error) {
	var h float64
	err := p.eval(ctx, `document.documentElement.scrollHeight`, &h)
	return int64(h), err
}

func (p *ChromePage) OpenTab(ctx context.Context, url string) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(p.ctx)

	// The first Run attaches the target and ties its event loop to the
	// context it is given, so it has to run on tabCtx and not on the
	// short-lived context run derives per call.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create tab: %w", err)
	}

	tab := &ChromePage{ctx: tabCtx, cancel: cancel}
	if err := tab.Navigate(ctx, url); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open %s: %w", url, err)
	}
	return tab, nil
}

func (p *ChromePage) Close() error {
	p.cancel()
	return nil
}

// InjectCookies sets cookies in the browser before the first navigation
func (p *ChromePage) InjectCookies(ctx context.Context, cookies []*network.Cookie) error {
	return p.run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				err := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly).
					WithSameSite(c.SameSite).
					Do(ctx)

				if err != nil {
					return err
				}
			}
			return nil
		}),
	)
}

// Cookies returns every cookie the browser holds
func (p *ChromePage) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
