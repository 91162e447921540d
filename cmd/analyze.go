package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shouni/go-phish-features/pkg/analyzer"
	"github.com/shouni/go-phish-features/pkg/feed"
)

var analyzeURL string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [URL]",
	Short: "URLを取得して特徴量を計算し、モデルの予測結果をJSONで出力します",
	Long:  `--url フラグ、位置引数、または標準入力の1行目からURLを受け取り、30個の特徴量と特徴ベクトル、読み込み済みモデルの予測結果をJSONで出力します。コンテンツを取得できなかった場合は結果を出力したうえで終了コード1を返します。`,
	Args:  cobra.MaximumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := GetPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		// 1. 処理対象URLの決定 (フラグ優先)
		rawURL := analyzeURL
		if rawURL == "" && len(args) == 1 {
			rawURL = args[0]
		}
		if rawURL == "" {
			p.Logger.Info().Msg("URLが指定されていないため、標準入力からURLを読み込みます...")
			scanner := bufio.NewScanner(os.Stdin)
			if scanner.Scan() {
				rawURL = scanner.Text()
			} else if err := scanner.Err(); err != nil {
				return fmt.Errorf("標準入力の読み取りエラー: %w", err)
			}
		}
		rawURL = feed.CleanLink(rawURL)
		if rawURL == "" {
			return analyzer.ErrEmptyURL
		}

		// 2. 全体処理のコンテキストを設定
		ctx, cancel := context.WithTimeout(cmd.Context(), overallTimeout(p.Config))
		defer cancel()

		// 3. 解析の実行
		result, err := p.AnalyzeURL(ctx, rawURL)
		if err != nil {
			return fmt.Errorf("URL %s の解析に失敗しました: %w", rawURL, err)
		}

		// 4. 結果の出力
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("結果の出力に失敗しました: %w", err)
		}

		if !result.Fetched {
			return fmt.Errorf("URL %s のコンテンツを取得できませんでした: %s", rawURL, result.FetchError)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeURL, "url", "u", "", "解析対象のURL")
}
