package scraper

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shouni/go-phish-features/pkg/types"
)

const (
	// DefaultMaxConcurrency は、並列解析のデフォルトの最大同時実行数を定義します。
	DefaultMaxConcurrency = 6
	// DefaultScrapeRateLimit は、解析を開始する間隔のデフォルト値です。
	DefaultScrapeRateLimit = 1000 * time.Millisecond
)

// Analyzer は1つのURLを解析します。*analyzer.Analyzer がこれを満たします。
type Analyzer interface {
	Analyze(ctx context.Context, rawURL string) (*types.AnalysisResult, error)
}

// Scraper は複数のURLを解析する機能を提供するインターフェースです。
type Scraper interface {
	ScrapeInParallel(ctx context.Context, urls []string) []types.URLResult
}

// ParallelScraper は Scraper インターフェースを実装する並列処理構造体です。
type ParallelScraper struct {
	analyzer       Analyzer
	maxConcurrency int           // 最大並列数を保持するフィールド
	rateLimit      time.Duration // 解析開始の最小間隔。0 以下なら制限しない
}

// Option は ParallelScraper の設定を行う関数型です。
type Option func(*ParallelScraper)

// WithRateLimit は解析を開始する最小間隔を設定します。
func WithRateLimit(interval time.Duration) Option {
	return func(s *ParallelScraper) {
		s.rateLimit = interval
	}
}

// NewParallelScraper は ParallelScraper を初期化します。
// 依存性として Analyzer と、最大同時実行数を受け取ります。
func NewParallelScraper(analyzer Analyzer, maxConcurrency int, options ...Option) *ParallelScraper {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	s := &ParallelScraper{
		analyzer:       analyzer,
		maxConcurrency: maxConcurrency,
		rateLimit:      DefaultScrapeRateLimit,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// ScrapeInParallel は Scraper インターフェースのメソッドを実装します。
// 結果は入力と同じ順序で返します。1件の失敗は他のURLの処理を止めません。
func (s *ParallelScraper) ScrapeInParallel(ctx context.Context, urls []string) []types.URLResult {
	results := make([]types.URLResult, len(urls))

	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Every(s.rateLimit), 1)
	}

	// 各ゴルーチンはエラーを返さないため、errgroup は同時実行数の制限と待ち合わせにだけ使う
	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)

	for i, url := range urls {
		g.Go(func() error {
			results[i] = s.scrapeOne(ctx, limiter, url)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *ParallelScraper) scrapeOne(ctx context.Context, limiter *rate.Limiter, url string) types.URLResult {
	// レートリミット間隔が経過するまで待機
	if err := limiter.Wait(ctx); err != nil {
		return types.URLResult{URL: url, Error: err}
	}

	res, err := s.analyzer.Analyze(ctx, url)
	if err != nil {
		return types.URLResult{URL: url, Result: res, Error: fmt.Errorf("URL %s の解析に失敗しました: %w", url, err)}
	}
	if !res.Fetched {
		// コンテンツを取得できなかった場合も特徴量は保持したまま失敗として扱う
		return types.URLResult{URL: url, Result: res, Error: fmt.Errorf("URL %s からコンテンツを取得できませんでした", url)}
	}
	return types.URLResult{URL: url, Result: res}
}
