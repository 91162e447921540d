package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shouni/go-http-kit/pkg/httpkit"

	"github.com/shouni/go-phish-features/internal/config"
	"github.com/shouni/go-phish-features/internal/server"
	"github.com/shouni/go-phish-features/internal/store"
	"github.com/shouni/go-phish-features/pkg/analyzer"
	"github.com/shouni/go-phish-features/pkg/features"
	"github.com/shouni/go-phish-features/pkg/feed"
	"github.com/shouni/go-phish-features/pkg/fetch"
	"github.com/shouni/go-phish-features/pkg/httpclient"
	"github.com/shouni/go-phish-features/pkg/lookup"
	"github.com/shouni/go-phish-features/pkg/model"
	"github.com/shouni/go-phish-features/pkg/scraper"
	"github.com/shouni/go-phish-features/pkg/types"
)

// Pipeline は設定から組み立てた依存関係一式です。
type Pipeline struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Client   *httpclient.Client
	Analyzer *analyzer.Analyzer
	Models   *model.Registry
	Feed     *feed.Parser
	Store    *store.Store // store.path が空なら nil
}

// New は設定に従ってクライアント、導出器、モデル、履歴ストアを生成します。
func New(cfg *config.Config, logger zerolog.Logger) (*Pipeline, error) {
	client := httpclient.New(
		cfg.HTTP.Timeout(),
		httpclient.WithUserAgent(cfg.HTTP.UserAgent),
		httpclient.WithMaxBodySize(cfg.HTTP.MaxBodyBytes),
	)

	fetcher := fetch.New(
		client,
		fetch.WithMaxRetries(cfg.HTTP.MaxRetries),
		fetch.WithHeadProbe(cfg.HTTP.HeadProbe),
		fetch.WithBackoff(cfg.HTTP.RetryConfig()),
		fetch.WithLogger(logger.With().Str("component", "fetcher").Logger()),
	)

	network := features.NewNetworkDeriver(
		lookup.NewWhoisClient(cfg.Lookup.WhoisTimeout()),
		lookup.NewTLSProber(cfg.Lookup.TLSTimeout(), lookup.WithPort(cfg.Lookup.TLSPort)),
		features.WithIndependentTLS(cfg.Lookup.IndependentTLS),
		features.WithNetworkLogger(logger.With().Str("component", "network").Logger()),
	)

	// フィードは証明書検証の切り替えもリダイレクト履歴も不要なので httpkit のリトライ付き取得を使う
	feedClient := httpkit.New(
		cfg.HTTP.Timeout(),
		httpkit.WithMaxRetries(uint64(cfg.HTTP.MaxRetries)),
	)

	models := model.LoadRegistry(cfg.Models, logger.With().Str("component", "models").Logger())

	p := &Pipeline{
		Config: cfg,
		Logger: logger,
		Client: client,
		Models: models,
		Feed:   feed.NewParser(feedClient),
		Analyzer: analyzer.New(
			fetcher,
			network,
			analyzer.WithShorteners(cfg.Features.Shorteners),
			analyzer.WithScorer(models),
			analyzer.WithLogger(logger.With().Str("component", "analyzer").Logger()),
		),
	}

	if cfg.Store.Path != "" {
		s, err := store.Open(cfg.Store.Path, logger.With().Str("component", "store").Logger())
		if err != nil {
			return nil, fmt.Errorf("履歴ストアの初期化エラー: %w", err)
		}
		p.Store = s
	}

	return p, nil
}

// Close は保持しているリソースを解放します。
func (p *Pipeline) Close() error {
	if p.Store != nil {
		return p.Store.Close()
	}
	return nil
}

// Scraper は設定に従った並列解析器を返します。
func (p *Pipeline) Scraper(concurrency int) *scraper.ParallelScraper {
	if concurrency <= 0 {
		concurrency = p.Config.Scraper.Concurrency
	}
	return scraper.NewParallelScraper(p.Analyzer, concurrency, scraper.WithRateLimit(p.Config.Scraper.RateLimit()))
}

// Server は解析エンドポイントを提供するサーバーを返します。
func (p *Pipeline) Server(extra ...server.Option) *server.Server {
	opts := []server.Option{
		server.WithModels(p.Models),
		server.WithLogger(p.Logger.With().Str("component", "server").Logger()),
	}
	if p.Store != nil {
		opts = append(opts, server.WithHistory(p.Store))
	}
	opts = append(opts, extra...)
	return server.New(p.Analyzer, opts...)
}

// AnalyzeURL は1つのURLを解析し、履歴ストアがあれば保存します。
func (p *Pipeline) AnalyzeURL(ctx context.Context, rawURL string) (*types.AnalysisResult, error) {
	result, err := p.Analyzer.Analyze(ctx, rawURL)
	if err != nil {
		return result, fmt.Errorf("解析エラー: %w", err)
	}
	p.Save(ctx, result)
	return result, nil
}

// Save は履歴ストアが有効な場合に結果を保存します。保存の失敗はログに記録するだけです。
func (p *Pipeline) Save(ctx context.Context, result *types.AnalysisResult) {
	if p.Store == nil || result == nil {
		return
	}
	if _, err := p.Store.Save(ctx, result); err != nil {
		p.Logger.Warn().Err(err).Str("url", result.URL).Msg("解析結果を保存できませんでした")
	}
}
