package scraper

// X.com DOM selectors
// These are isolated here because X changes their DOM frequently
// Update these when scraping breaks

const (
	// Tweet selectors
	TweetArticle = `article[data-testid="tweet"]`
	TweetText    = `[data-testid="tweetText"]`
	// The permalink is the anchor wrapping the timestamp
	TweetPermalink = `a[href*="/status/"]:has(time)`

	// Engagement selectors
	ReplyButton   = `[data-testid="reply"]`
	RetweetButton = `[data-testid="retweet"]`
	LikeButton    = `[data-testid="like"]`
)

// BaseURL resolves relative permalinks
const BaseURL = "https://x.com"
