package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/spf13/cobra"

	"github.com/shouni/go-phish-features/pkg/feed"
	"github.com/shouni/go-phish-features/pkg/urlnorm"
)

// フィードURLを保持するフラグ変数
var feedURL string

// フィードの全体処理のタイムアウト設定
const overallFeedTimeoutFactor = 2 // クライアントタイムアウトの2倍

// runParsePipeline は、フィードの取得とパースを実行するメインロジックです。
func runParsePipeline(ctx context.Context, url string, parser *feed.Parser, overallTimeout time.Duration) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, overallTimeout)
	defer cancel()

	parsedFeed, err := parser.FetchAndParse(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得およびパースエラー (URL: %s): %w", url, err)
	}
	return parsedFeed, nil
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "RSS/Atomフィードを取得し、解析対象となるURLを一覧表示します",
	Long:  `指定されたURLからRSSまたはAtomフィードを取得し、scraper コマンドの --feed で解析されるURLの一覧 (重複と空リンクを除外) を表示します。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := GetPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		target := urlnorm.Normalize(feed.CleanLink(feedURL))
		overallTimeout := p.Config.HTTP.Timeout() * overallFeedTimeoutFactor * time.Duration(p.Config.HTTP.MaxRetries+1)

		p.Logger.Info().Str("feed_url", target).Dur("overall_timeout", overallTimeout).Msg("フィードを取得します")

		parsedFeed, err := runParsePipeline(cmd.Context(), target, p.Feed, overallTimeout)
		if err != nil {
			return fmt.Errorf("フィード解析パイプラインの実行エラー: %w", err)
		}

		out := cmd.OutOrStdout()
		links := feed.GetAllLinks(feed.NewFeedAdapter(parsedFeed))

		fmt.Fprintf(out, "--- フィード解析結果 ---\n")
		fmt.Fprintf(out, "フィードタイトル: %s\n", parsedFeed.Title)
		if parsedFeed.Link != "" {
			fmt.Fprintf(out, "リンク: %s\n", parsedFeed.Link)
		}
		fmt.Fprintf(out, "記事数: %d (解析対象URL: %d)\n", len(parsedFeed.Items), len(links))
		fmt.Fprintln(out, "-----------------------")

		for i, link := range links {
			fmt.Fprintf(out, "[%d] %s\n", i+1, link)
		}
		fmt.Fprintln(out)

		return nil
	},
}

func init() {
	parseCmd.Flags().StringVarP(&feedURL, "url", "u", "", "解析対象のフィード (RSS/Atom) URL")
	parseCmd.MarkFlagRequired("url")
}
