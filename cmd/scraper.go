package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-phish-features/internal/pipeline"
	"github.com/shouni/go-phish-features/pkg/feed"
	"github.com/shouni/go-phish-features/pkg/types"
)

// コマンドラインフラグ変数を定義
var (
	inputURLs    string // --urls フラグで受け取るカンマ区切りのURLリスト
	inputFeedURL string // --feed フラグで受け取るフィードURL
	concurrency  int    // --concurrency フラグで受け取る並列実行数
	outputJSON   bool   // --json フラグ: 結果をJSON Linesで出力する
)

// runScrapePipeline は、並列解析を実行するメインロジックです。
func runScrapePipeline(ctx context.Context, p *pipeline.Pipeline, urls []string, concurrency int, out io.Writer) error {
	// 1. Scraperの初期化
	s := p.Scraper(concurrency)

	// 2. 全体処理のコンテキストを設定: 1件あたりの上限に、同時実行数で割った件数分の余裕を持たせる
	workers := concurrency
	if workers <= 0 {
		workers = p.Config.Scraper.Concurrency
	}
	batches := (len(urls) + workers - 1) / workers
	timeout := overallTimeout(p.Config)*time.Duration(batches) + p.Config.Scraper.RateLimit()*time.Duration(len(urls))
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p.Logger.Info().
		Int("urls", len(urls)).
		Int("concurrency", workers).
		Dur("overall_timeout", timeout).
		Msg("並列解析を開始します")

	// 3. メインロジックの実行
	results := s.ScrapeInParallel(runCtx, urls)

	// 解析の期限切れで履歴保存まで失敗しないよう、保存は呼び出し元のコンテキストで行う
	for _, res := range results {
		p.Save(ctx, res.Result)
	}

	// 4. 結果の出力
	if outputJSON {
		return writeJSONLines(out, results)
	}
	writeSummary(out, results)
	return nil
}

func writeJSONLines(out io.Writer, results []types.URLResult) error {
	enc := json.NewEncoder(out)
	for _, res := range results {
		line := struct {
			URL    string                `json:"url"`
			Result *types.AnalysisResult `json:"result,omitempty"`
			Error  string                `json:"error,omitempty"`
		}{URL: res.URL, Result: res.Result}
		if res.Error != nil {
			line.Error = res.Error.Error()
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("結果の出力に失敗しました: %w", err)
		}
	}
	return nil
}

func writeSummary(out io.Writer, results []types.URLResult) {
	fmt.Fprintln(out, "--- 並列解析結果 ---")

	successCount := 0
	errorCount := 0

	for i, res := range results {
		if res.Error != nil {
			errorCount++
			fmt.Fprintf(out, "❌ [%d] %s\n", i+1, res.URL)
			fmt.Fprintf(out, "     エラー: %v\n", res.Error)
			continue
		}
		successCount++
		fmt.Fprintf(out, "✅ [%d] %s\n", i+1, res.URL)
		fmt.Fprintf(out, "     特徴ベクトル: %v\n", res.Result.Vector)
		if len(res.Result.Predictions) > 0 {
			fmt.Fprintf(out, "     予測: %v\n", res.Result.Predictions)
		}
	}

	fmt.Fprintln(out, "-------------------------------")
	fmt.Fprintf(out, "完了: 成功 %d 件, 失敗 %d 件\n", successCount, errorCount)
}

// collectURLs は --urls、--feed、標準入力の順に処理対象URLのリストを決定します。
func collectURLs(ctx context.Context, p *pipeline.Pipeline, in io.Reader) ([]string, error) {
	var urls []string

	switch {
	case inputURLs != "":
		urls = strings.Split(inputURLs, ",")
	case inputFeedURL != "":
		links, err := p.Feed.FetchLinks(ctx, inputFeedURL)
		if err != nil {
			return nil, fmt.Errorf("フィードからURLを取得できませんでした: %w", err)
		}
		urls = links
	default:
		p.Logger.Info().Msg("URLが指定されていないため、標準入力からURLを読み込みます (Ctrl+DまたはEOFで終了)...")
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			urls = append(urls, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("標準入力の読み取りエラー: %w", err)
		}
	}

	cleaned := urls[:0]
	for _, u := range urls {
		if u = feed.CleanLink(u); u != "" {
			cleaned = append(cleaned, u)
		}
	}
	return cleaned, nil
}

var scraperCmd = &cobra.Command{
	Use:   "scraper",
	Short: "複数のURLを並列で解析し、特徴ベクトルと予測結果を出力します",
	Long:  `--urls フラグでカンマ区切りのURLリスト、--feed フラグでRSS/Atomフィードを受け取るか、標準入力からURLを一行ずつ読み込み、指定された最大同時実行数で並列解析を実行します。結果は入力と同じ順序で出力します。`,
	Args:  cobra.NoArgs, // 位置引数は取らない

	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 依存性の取得
		p, err := GetPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		// 2. 処理対象URLのリストを決定
		urls, err := collectURLs(cmd.Context(), p, os.Stdin)
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			return fmt.Errorf("処理対象のURLが一つも指定されていません")
		}

		// 3. メインロジックの実行
		return runScrapePipeline(cmd.Context(), p, urls, concurrency, cmd.OutOrStdout())
	},
}

func init() {
	// --urls フラグ: カンマ区切りのURLリスト
	scraperCmd.Flags().StringVarP(&inputURLs, "urls", "u", "",
		"解析対象のカンマ区切りURLリスト (例: url1,url2,url3)")

	// --feed フラグ: URLを取り出すRSS/Atomフィード
	scraperCmd.Flags().StringVarP(&inputFeedURL, "feed", "f", "",
		"解析対象のURLを取り出すフィード (RSS/Atom) のURL")

	// --concurrency フラグ: 並列実行数の指定 (0 なら設定ファイルの値)
	scraperCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0,
		"最大並列実行数 (0 の場合は設定ファイルの scraper.concurrency)")

	scraperCmd.Flags().BoolVar(&outputJSON, "json", false, "結果を1行1件のJSONで出力する")
}
