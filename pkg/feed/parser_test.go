package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockFetcher はテスト対象の Parser.client が依存する Fetcher インターフェースのモックです。
type MockFetcher struct {
	FetchBytesFunc func(ctx context.Context, url string) ([]byte, error)
}

func (m *MockFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	return m.FetchBytesFunc(ctx, url)
}

const testURL = "http://example.com/feed"

// 最小限の有効なRSS XML
const validRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Phishing Reports</title>
    <link>http://example.com/</link>
    <item>
      <title>Report 1</title>
      <link>http://login-example.test/verify</link>
    </item>
    <item>
      <title>Report 2</title>
      <link>http://bit.ly/abc</link>
    </item>
    <item>
      <title>Duplicate</title>
      <link>http://bit.ly/abc</link>
    </item>
  </channel>
</rss>`

func TestFetchAndParse(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		mockFetchFunc func(ctx context.Context, url string) ([]byte, error)
		expectedTitle string
		errorContains string
	}{
		{
			name: "成功ケース_有効なRSS",
			mockFetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				assert.Equal(t, testURL, url)
				return []byte(validRSS), nil
			},
			expectedTitle: "Phishing Reports",
		},
		{
			name: "エラーケース_フィード取得失敗",
			mockFetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				return nil, errors.New("HTTPエラー: 500 Internal Server Error")
			},
			errorContains: "フィードの取得失敗",
		},
		{
			name: "エラーケース_パース失敗",
			mockFetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				return []byte(`<invalid><tag>`), nil
			},
			errorContains: "RSSフィードのパース失敗",
		},
		{
			name: "エッジケース_空ボディ",
			mockFetchFunc: func(ctx context.Context, url string) ([]byte, error) {
				return []byte(""), nil
			},
			errorContains: "RSSフィードのパース失敗",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(&MockFetcher{FetchBytesFunc: tt.mockFetchFunc})

			feed, err := p.FetchAndParse(ctx, testURL)

			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, feed)
			assert.Equal(t, tt.expectedTitle, feed.Title)
		})
	}
}

func TestFetchLinks(t *testing.T) {
	p := NewParser(&MockFetcher{FetchBytesFunc: func(ctx context.Context, url string) ([]byte, error) {
		return []byte(validRSS), nil
	}})

	links, err := p.FetchLinks(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://login-example.test/verify", "http://bit.ly/abc"}, links)

	_, err = NewParser(&MockFetcher{FetchBytesFunc: func(ctx context.Context, url string) ([]byte, error) {
		return nil, errors.New("timeout")
	}}).FetchLinks(context.Background(), testURL)
	assert.Error(t, err)
}
