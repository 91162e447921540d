package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shouni/go-phish-features/pkg/features"
	"github.com/shouni/go-phish-features/pkg/fetch"
	"github.com/shouni/go-phish-features/pkg/types"
	"github.com/shouni/go-phish-features/pkg/urlnorm"
)

// ErrEmptyURL は空のURLが入力されたことを示します。HTTPエンドポイントやCLIで入力検証に使います。
var ErrEmptyURL = errors.New("URL is required")

// PageFetcher はページを取得します。*fetch.Fetcher がこれを満たします。
type PageFetcher interface {
	Fetch(ctx context.Context, p urlnorm.ParsedURL) *fetch.Result
}

// NetworkSignals はネットワーク系特徴量を計算します。*features.NetworkDeriver がこれを満たします。
type NetworkSignals interface {
	Derive(ctx context.Context, in features.NetworkInput) features.Set
}

// Scorer は特徴ベクトルを全モデルで評価します。*model.Registry がこれを満たします。
type Scorer interface {
	PredictAll(vector []int) map[string]int
}

// Analyzer は正規化 → 取得 → 特徴量計算 → ベクトル化 を順に実行します。
// 状態を持たないため、異なるURLの解析を並行して呼び出せます。
type Analyzer struct {
	fetcher PageFetcher
	lexical *features.LexicalDeriver
	network NetworkSignals
	scorer  Scorer
	logger  zerolog.Logger
	now     func() time.Time
}

// Option は Analyzer の設定を行う関数型です。
type Option func(*Analyzer)

// WithShorteners は短縮URLサービスの一覧を差し替えます。
func WithShorteners(shorteners []string) Option {
	return func(a *Analyzer) {
		a.lexical = features.NewLexicalDeriver(shorteners)
	}
}

// WithScorer は予測に使うモデルを設定します。未設定の場合、予測は行いません。
func WithScorer(s Scorer) Option {
	return func(a *Analyzer) {
		a.scorer = s
	}
}

// WithLogger はロガーを設定します。
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithClock は解析時刻の取得方法を差し替えます。
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

func New(fetcher PageFetcher, network NetworkSignals, options ...Option) *Analyzer {
	a := &Analyzer{
		fetcher: fetcher,
		lexical: features.NewLexicalDeriver(nil),
		network: network,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Analyze は1つのURLを解析します。
// 取得や照会の失敗はエラーにせず、Fetched=false や特徴量の既定値で表します。
// エラーを返すのはコンテキストが終了した場合だけで、その時点までの結果も返します。
func (a *Analyzer) Analyze(ctx context.Context, rawURL string) (*types.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := a.now()
	normalized := urlnorm.Normalize(rawURL)
	parsed := urlnorm.Parse(normalized)
	log := a.logger.With().Str("input_url", rawURL).Logger()

	result := &types.AnalysisResult{
		InputURL:   rawURL,
		URL:        normalized,
		AnalyzedAt: start,
	}
	set := features.Set{}

	var fetched *fetch.Result
	if a.fetcher != nil {
		fetched = a.fetcher.Fetch(ctx, parsed)
	}
	if fetched != nil {
		result.Fetched = fetched.OK
		result.Redirects = fetched.RedirectCount()
		if fetched.Response != nil {
			result.StatusCode = fetched.Response.StatusCode
		}
		if fetched.OK {
			result.URL = fetched.URL
			result.FinalURL = fetched.FinalURL
		} else if fetched.Err != nil {
			result.FetchError = fetched.Err.Error()
		}
	}

	set.Merge(a.lexical.Derive(parsed, result.URL))

	if err := ctx.Err(); err != nil {
		return a.finish(result, set, start), err
	}

	if result.Fetched {
		doc, err := features.ParseHTML(fetched.HTML)
		if err != nil {
			log.Warn().Err(err).Msg("HTMLを解析できないため構造系特徴量を省略します")
		} else {
			set.Merge(features.DeriveStructural(doc))
		}
	}

	if a.network != nil {
		set.Merge(a.network.Derive(ctx, features.NetworkInput{
			Host:          parsed.Hostname,
			HasResponse:   fetched.HasResponse(),
			RedirectCount: fetched.RedirectCount(),
		}))
	}

	if err := ctx.Err(); err != nil {
		return a.finish(result, set, start), err
	}

	a.finish(result, set, start)
	if a.scorer != nil {
		result.Predictions = a.scorer.PredictAll(result.Vector)
	}

	log.Info().
		Str("url", result.URL).
		Bool("fetched", result.Fetched).
		Int("features", len(result.Features)).
		Dur("elapsed", result.Elapsed).
		Msg("解析が完了しました")
	return result, nil
}

func (a *Analyzer) finish(result *types.AnalysisResult, set features.Set, start time.Time) *types.AnalysisResult {
	result.Features = set
	result.Vector = set.Vector()
	result.Elapsed = a.now().Sub(start)
	return result
}
