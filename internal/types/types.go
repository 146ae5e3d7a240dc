package types

import (
	"strconv"
	"strings"
)

// Tweet represents a tweet extracted from a timeline or tweet page.
// JSON keys match the persisted savedTweets records.
type Tweet struct {
	URL          string  `json:"url"`
	TweetText    *string `json:"tweetText"`
	TweetHTML    *string `json:"tweetHtml"`
	ElementHTML  string  `json:"elementHtml"`
	ScreenName   string  `json:"screenName"`
	TweetID      string  `json:"tweetId"`
	ReplyCount   string  `json:"replyCount"`
	RetweetCount string  `json:"retweetCount"`
	LikeCount    string  `json:"likeCount"`
}

// Replies returns the reply count as an integer
func (t Tweet) Replies() int { return ParseCount(t.ReplyCount) }

// Retweets returns the retweet count as an integer
func (t Tweet) Retweets() int { return ParseCount(t.RetweetCount) }

// Likes returns the like count as an integer
func (t Tweet) Likes() int { return ParseCount(t.LikeCount) }

// Text returns the tweet text, or "" when the page had none.
func (t Tweet) Text() string {
	if t.TweetText == nil {
		return ""
	}
	return *t.TweetText
}

// ParseCount converts a stored decimal count string to an integer.
// Malformed values count as zero.
func ParseCount(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
