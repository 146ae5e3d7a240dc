package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"time"

	"github.com/ibeckermayer/threadwalk/internal/types"
)

var reportTemplate = template.Must(template.New("report").Parse(defaultTemplate))

// ReportData is the template data structure
type ReportData struct {
	Title  string
	Date   string
	Tweets []TweetData
	Stats  StatsData
}

// TweetData represents a tweet row in the report
type TweetData struct {
	ScreenName string
	Text       string
	Replies    int
	Retweets   int
	Likes      int
	URL        string
}

// StatsData contains report statistics
type StatsData struct {
	TotalTweets  int
	TotalReplies int
}

// Build renders an HTML report of archived tweets, most retweeted first.
func Build(tweets []types.Tweet, now time.Time) (string, error) {
	sorted := make([]types.Tweet, len(tweets))
	copy(sorted, tweets)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Retweets() != sorted[j].Retweets() {
			return sorted[i].Retweets() > sorted[j].Retweets()
		}
		return sorted[i].Replies() > sorted[j].Replies()
	})

	data := ReportData{
		Title:  "Archived tweets",
		Date:   now.Format("Monday, January 2 2006 15:04"),
		Tweets: make([]TweetData, len(sorted)),
		Stats:  StatsData{TotalTweets: len(sorted)},
	}

	for i, t := range sorted {
		data.Tweets[i] = TweetData{
			ScreenName: t.ScreenName,
			Text:       truncate(t.Text(), 280),
			Replies:    t.Replies(),
			Retweets:   t.Retweets(),
			Likes:      t.Likes(),
			URL:        t.URL,
		}
		data.Stats.TotalReplies += t.Replies()
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 640px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .container { background: white; border-radius: 8px; padding: 20px; }
        h1 { color: #1da1f2; margin-bottom: 5px; }
        .date { color: #666; margin-bottom: 20px; }
        .tweet { border-bottom: 1px solid #eee; padding: 15px 0; }
        .tweet:last-child { border-bottom: none; }
        .handle { font-weight: bold; color: #333; }
        .content { margin: 10px 0; line-height: 1.4; white-space: pre-wrap; }
        .metrics { color: #666; font-size: 13px; }
        .link { color: #1da1f2; text-decoration: none; }
        .footer { margin-top: 20px; padding-top: 15px; border-top: 1px solid #eee; color: #999; font-size: 12px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="date">{{.Date}}</div>

        {{range .Tweets}}
        <div class="tweet">
            <div class="handle">@{{.ScreenName}}</div>
            <div class="content">{{.Text}}</div>
            <div class="metrics">{{.Replies}} replies · {{.Retweets}} reposts · {{.Likes}} likes</div>
            <a href="{{.URL}}" class="link">View on X →</a>
        </div>
        {{end}}

        <div class="footer">
            {{.Stats.TotalTweets}} tweets · {{.Stats.TotalReplies}} replies in total · exported by threadwalk
        </div>
    </div>
</body>
</html>`
