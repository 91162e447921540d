package feed

import (
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
)

// MockLinkSource は LinkSource インターフェースを満たすテスト用のモックです。
type MockLinkSource struct {
	Links []string
}

func (m *MockLinkSource) GetLinks() []string {
	return m.Links
}

func TestFeedAdapter_GetLinks(t *testing.T) {
	tests := []struct {
		name     string
		feed     *gofeed.Feed
		expected []string
	}{
		{
			name: "正常ケース_複数のリンクを含む",
			feed: &gofeed.Feed{
				Items: []*gofeed.Item{
					{Link: "http://example.com/a"},
					{Link: "http://example.com/b"},
					{Link: ""}, // 空リンクは無視されるべき
					{Link: "http://example.com/a"},
					nil,
					{Link: "http://example.com/c"},
				},
			},
			expected: []string{
				"http://example.com/a",
				"http://example.com/b",
				"http://example.com/c",
			},
		},
		{
			name:     "エッジケース_アイテムが空",
			feed:     &gofeed.Feed{Items: []*gofeed.Item{}},
			expected: []string{},
		},
		{
			name:     "エッジケース_フィードがnil",
			feed:     nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewFeedAdapter(tt.feed).GetLinks())
		})
	}
}

func TestGetAllLinks(t *testing.T) {
	assert.Equal(t, []string{"http://x.example"}, GetAllLinks(&MockLinkSource{Links: []string{"http://x.example"}}))
	assert.Equal(t, []string{}, GetAllLinks(nil))
}

func TestCleanLink(t *testing.T) {
	assert.Equal(t, "http://example.com/a", CleanLink("  http://example.com/a \n"))
	assert.Equal(t, "", CleanLink(" \t "))
}
