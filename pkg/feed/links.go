package feed

import (
	"strings"

	"github.com/mmcdole/gofeed"
	textUtils "github.com/shouni/go-utils/text"
)

// LinkSource は、リンクアイテムのリストを提供できる任意の型を表します。
type LinkSource interface {
	GetLinks() []string
}

// FeedAdapter は gofeed.Feed を LinkSource に適合させるためのアダプターです。
type FeedAdapter struct {
	*gofeed.Feed
}

// NewFeedAdapter は gofeed.Feed から新しいアダプターを作成します。
func NewFeedAdapter(feed *gofeed.Feed) *FeedAdapter {
	return &FeedAdapter{Feed: feed}
}

// GetLinks は LinkSource インターフェースを満たし、gofeed.Feed からリンクを抽出します。
// 空白を取り除いた結果が空のリンクと、重複したリンクは除外します。
func (a *FeedAdapter) GetLinks() []string {
	if a.Feed == nil || len(a.Items) == 0 {
		return []string{}
	}

	seen := make(map[string]bool, len(a.Items))
	urls := make([]string, 0, len(a.Items))
	for _, item := range a.Items {
		if item == nil {
			continue
		}
		link := CleanLink(item.Link)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		urls = append(urls, link)
	}
	return urls
}

// GetAllLinks は LinkSource インターフェースを満たすオブジェクトからリンクを抽出する汎用関数です。
func GetAllLinks(source LinkSource) []string {
	if source == nil {
		return []string{}
	}
	return source.GetLinks()
}

// CleanLink はフィードや入力行に含まれる改行・空白を取り除きます。
func CleanLink(s string) string {
	return strings.TrimSpace(textUtils.NormalizeText(s))
}
