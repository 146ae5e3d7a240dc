package pages

import (
	"net/url"
	"strings"
)

const (
	BaseURL    = "https://x.com"
	ExploreURL = BaseURL + "/explore"
	ComposeURL = BaseURL + "/compose/post"
	LockedURL  = BaseURL + "/account/access"
)

const (
	searchExpr = `^https://x\.com/search\?`
	tweetExpr  = `^https://x\.com/[^/]+/status/\d+`
	loginExpr  = `^https://x\.com/(i/flow/)?login`
)

// Operator page paths below the operator base URL.
const (
	PathNotifyLogin    = "notify/login"
	PathNotifyLocked   = "notify/locked"
	PathNotifyUnlocked = "notify/unlocked"
	PathNotifyUpdate   = "notify/update"
	PathExport         = "export"
	PathReset          = "reset"
)

// TweetURL is the address used to open a queued id.
func TweetURL(id string) string { return BaseURL + "/i/status/" + id }

// tweetID extracts the status id from a tweet address
func tweetID(address string) (string, bool) {
	m := statusIDPattern.FindStringSubmatch(address)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// liveSearch returns address with the latest-results filter added. ok is
// false when the filter is already set.
func liveSearch(address string) (string, bool, error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", false, err
	}
	q := u.Query()
	if q.Get("f") == "live" {
		return address, false, nil
	}
	q.Set("f", "live")
	u.RawQuery = q.Encode()
	return u.String(), true, nil
}

func joinOperator(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + path
}
