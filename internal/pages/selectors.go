package pages

import (
	"regexp"

	"github.com/ibeckermayer/threadwalk/internal/browser"
)

// DOM selectors for the X web app.
const (
	TimelineTabList = `[data-testid="ScrollSnap-List"]`
	TimelineTab     = `[data-testid="ScrollSnap-List"] [role="tab"]`
	Trend           = `[data-testid="trend"]`
	PrimaryColumn   = `[data-testid="primaryColumn"]`
	RetryButton     = `[data-testid="primaryColumn"] [role="button"]`
	ErrorDialog     = `[role="alertdialog"]`
	ArticleBody     = `[data-testid="primaryColumn"] article`
	ComposeClose    = `[data-testid="app-bar-close"]`
	ReplyCellButton = `[data-testid="cellInnerDiv"] [role="button"]`
)

var (
	// Dismissal dialog shown for removed posts.
	deletedPattern = regexp.MustCompile(`(?i)(this post (is unavailable|was deleted)|doesn.t exist|このポストは(削除されました|表示できません)|このページは存在しません)`)
	// Tombstones rendered in place of the article.
	unprocessablePattern = regexp.MustCompile(`(?i)(this post (violated|violates) the x rules|this post was deleted by the post author|このポストはXルールに違反|このポストはポスト作成者によって削除)`)
	failedPattern        = regexp.MustCompile(`(?i)(something went wrong|問題が発生しました)`)
	statusIDPattern      = regexp.MustCompile(`/status/(\d+)`)
)

var expandTargets = []browser.ExpandTarget{
	{Selector: ReplyCellButton, Pattern: `^(Show more replies|返信をさらに表示)$`},
	{Selector: ReplyCellButton, Pattern: `^(Show probable spam|Show additional replies.*|スパムの可能性がある返信を表示)$`},
}
