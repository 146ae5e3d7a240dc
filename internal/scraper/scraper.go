package scraper

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"

	"github.com/ibeckermayer/threadwalk/internal/types"
)

// ErrNotFound means a tweet element had no permalink. The whole batch is
// discarded when that happens.
var ErrNotFound = errors.New("tweet permalink not found")

var (
	permalinkPattern = regexp.MustCompile(`^https://(?:x|twitter)\.com/([^/]+)/status/(\d+)`)
	// First number in labels like "1,234 Replies. Reply"
	labelCountPattern = regexp.MustCompile(`\d[\d,]*`)
)

// Source yields the outer HTML of every element matching a selector on the live page.
type Source interface {
	OuterHTML(ctx context.Context, selector string) ([]string, error)
}

// parsed is a cached per-element result.
type parsed struct {
	tweet     types.Tweet
	permalink bool // false: element had no permalink anchor
	matched   bool // false: permalink did not look like a status url
}

// Scraper extracts tweets from the current page. Parse results are cached
// per element HTML until ClearCache, so elements that stay on screen across
// ticks are parsed once.
type Scraper struct {
	source Source

	mu    sync.Mutex
	cache map[uint64]parsed
}

// New creates a new scraper
func New(source Source) *Scraper {
	return &Scraper{source: source, cache: make(map[uint64]parsed)}
}

// Extract parses every tweet element on the page. It returns ErrNotFound if
// any element lacks its permalink. An empty, non-nil slice means the page has
// no tweets.
func (s *Scraper) Extract(ctx context.Context) ([]types.Tweet, error) {
	elements, err := s.source.OuterHTML(ctx, TweetArticle)
	if err != nil {
		return nil, fmt.Errorf("failed to read tweets from DOM: %w", err)
	}
	return s.Parse(elements)
}

// Parse converts raw article HTML into tweets. After a complete batch the
// cache only keeps the elements of that batch, so it stays the size of the
// rendered timeline.
func (s *Scraper) Parse(elements []string) ([]types.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tweets := make([]types.Tweet, 0, len(elements))
	seen := make(map[uint64]struct{}, len(elements))
	for _, el := range elements {
		key := xxhash.Sum64String(el)
		seen[key] = struct{}{}
		p, err := s.parseCached(key, el)
		if err != nil {
			return nil, err
		}
		if !p.permalink {
			return nil, ErrNotFound
		}
		if !p.matched {
			continue
		}
		tweets = append(tweets, p.tweet)
	}

	maps.DeleteFunc(s.cache, func(key uint64, _ parsed) bool {
		_, ok := seen[key]
		return !ok
	})
	return tweets, nil
}

// ClearCache drops all cached element results
func (s *Scraper) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.cache)
}

func (s *Scraper) parseCached(key uint64, elementHTML string) (parsed, error) {
	if p, ok := s.cache[key]; ok {
		return p, nil
	}
	p, err := parseElement(elementHTML)
	if err != nil {
		return parsed{}, err
	}
	s.cache[key] = p
	return p, nil
}

func parseElement(elementHTML string) (parsed, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(elementHTML))
	if err != nil {
		return parsed{}, fmt.Errorf("failed to parse tweet element: %w", err)
	}

	link := doc.Find(TweetPermalink).First()
	href, ok := link.Attr("href")
	if link.Length() == 0 || !ok {
		return parsed{}, nil
	}

	permalink := absoluteURL(href)
	m := permalinkPattern.FindStringSubmatch(permalink)
	if m == nil {
		return parsed{permalink: true}, nil
	}

	tweet := types.Tweet{
		URL:          permalink,
		ElementHTML:  elementHTML,
		ScreenName:   m[1],
		TweetID:      m[2],
		ReplyCount:   labelCount(doc, ReplyButton),
		RetweetCount: labelCount(doc, RetweetButton),
		LikeCount:    labelCount(doc, LikeButton),
	}

	if textEl := doc.Find(TweetText).First(); textEl.Length() > 0 {
		text := textEl.Text()
		tweet.TweetText = &text
		if inner, err := textEl.Html(); err == nil {
			tweet.TweetHTML = &inner
		}
	}

	return parsed{tweet: tweet, permalink: true, matched: true}, nil
}

// labelCount reads the number out of a control's aria-label, "0" when the
// control or its label is missing.
func labelCount(doc *goquery.Document, selector string) string {
	label, ok := doc.Find(selector).First().Attr("aria-label")
	if !ok {
		return "0"
	}
	n := labelCountPattern.FindString(label)
	if n == "" {
		return "0"
	}
	return strings.ReplaceAll(n, ",", "")
}

func absoluteURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return u.String()
	}
	base, _ := url.Parse(BaseURL)
	return base.ResolveReference(u).String()
}
