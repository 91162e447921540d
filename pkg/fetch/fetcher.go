package fetch

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shouni/go-phish-features/pkg/httpclient"
	"github.com/shouni/go-phish-features/pkg/retry"
	"github.com/shouni/go-phish-features/pkg/urlnorm"
)

// Requester は1回分の HEAD / GET を実行します。*httpclient.Client がこれを満たします。
// Get はステータスが成功範囲外でも、受信できたレスポンスをエラーと一緒に返します。
type Requester interface {
	Head(ctx context.Context, url string, verifyTLS bool) (*httpclient.Response, error)
	Get(ctx context.Context, url string, verifyTLS bool) (*httpclient.Response, error)
}

// Result は1回の解析における取得結果です。作成後に変更されません。
type Result struct {
	OK       bool
	URL      string               // 成功した試行のURL。失敗時は最初の正規化済みURL
	FinalURL string               // リダイレクト追跡後のURL
	HTML     string               // 取得した本文。失敗時は空
	Response *httpclient.Response // 最後に受信したGETレスポンス (失敗した試行のものを含む)
	Trial    retry.Trial          // 成功した試行
	Attempts int                  // 実行した試行の数
	Err      error                // 失敗時の最終エラー
}

// RedirectCount は最後に受信したレスポンスのリダイレクト回数です。
func (r *Result) RedirectCount() int {
	if r == nil {
		return 0
	}
	return r.Response.RedirectCount()
}

// HasResponse はGETレスポンスを1つでも受信したかを返します。
func (r *Result) HasResponse() bool {
	return r != nil && r.Response != nil
}

// Fetcher はスキームのフォールバックとリトライを伴ってページを取得します。
type Fetcher struct {
	client      Requester
	maxRetries  int
	headProbe   bool
	retryConfig retry.Config
	logger      zerolog.Logger
}

// Option は Fetcher の設定を行う関数型です。
type Option func(*Fetcher)

// WithMaxRetries はスキームごとの追加試行回数を設定します (試行回数は maxRetries+1)。
func WithMaxRetries(maxRetries int) Option {
	return func(f *Fetcher) {
		if maxRetries >= 0 {
			f.maxRetries = maxRetries
		}
	}
}

// WithHeadProbe はGETの前に行うHEADリクエストの有無を設定します。
func WithHeadProbe(enabled bool) Option {
	return func(f *Fetcher) {
		f.headProbe = enabled
	}
}

// WithBackoff は試行間の待機を設定します。InitialInterval が 0 なら待機しません。
func WithBackoff(cfg retry.Config) Option {
	return func(f *Fetcher) {
		f.retryConfig = cfg
	}
}

// WithLogger はロガーを設定します。
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New は Fetcher を生成します。
func New(client Requester, options ...Option) *Fetcher {
	f := &Fetcher{
		client:      client,
		maxRetries:  retry.DefaultMaxRetries,
		headProbe:   true,
		retryConfig: retry.DefaultConfig(),
		logger:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Plan はURLに対する試行計画を返します。現在のスキームを先に、もう一方を後に試します。
func (f *Fetcher) Plan(p urlnorm.ParsedURL) []retry.Trial {
	return retry.BuildPlan([]string{p.Scheme, urlnorm.AlternateScheme(p.Scheme)}, f.maxRetries)
}

// Fetch は計画に従って取得を試みます。失敗はエラーではなく Result.OK=false で表します。
func (f *Fetcher) Fetch(ctx context.Context, p urlnorm.ParsedURL) *Result {
	result := &Result{URL: p.String()}
	if f.client == nil {
		result.Err = errors.New("HTTPクライアントが設定されていません")
		return result
	}

	plan := f.Plan(p)
	f.logger.Info().
		Str("url", p.String()).
		Strs("schemes", planSchemes(plan)).
		Msg("取得を開始します")

	var html, finalURL string
	trial, err := retry.Run(ctx, f.retryConfig, plan, func(ctx context.Context, t retry.Trial) error {
		result.Attempts++
		target := p.WithScheme(t.Scheme).String()

		if f.headProbe {
			f.probe(ctx, target, t)
		}

		resp, err := f.client.Get(ctx, target, t.VerifyTLS)
		if resp != nil {
			result.Response = resp
		}
		f.logAttempt(t, target, resp, err)
		if err != nil {
			return err
		}

		html = resp.Body
		finalURL = resp.FinalURL
		return nil
	})
	if err != nil {
		result.Err = err
		f.logger.Warn().Err(err).Str("url", p.String()).Int("attempts", result.Attempts).Msg("すべての試行が失敗しました")
		return result
	}

	result.OK = true
	result.URL = p.WithScheme(trial.Scheme).String()
	result.FinalURL = finalURL
	result.HTML = html
	result.Trial = trial
	f.logger.Info().
		Str("url", result.URL).
		Int("bytes", len(html)).
		Int("redirects", result.RedirectCount()).
		Msg("取得に成功しました")
	return result
}

// probe はサーバーの応答性を確認するだけのHEADリクエストです。結果は制御に影響しません。
func (f *Fetcher) probe(ctx context.Context, url string, t retry.Trial) {
	resp, err := f.client.Head(ctx, url, t.VerifyTLS)
	if err != nil {
		f.logger.Warn().Err(err).Str("url", url).Str("scheme", t.Scheme).Int("attempt", t.Attempt+1).Msg("HEADリクエストに失敗しました")
		return
	}
	f.logger.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Interface("headers", resp.Header).
		Msg("HEADリクエスト")
}

func (f *Fetcher) logAttempt(t retry.Trial, url string, resp *httpclient.Response, err error) {
	level := zerolog.InfoLevel
	if err != nil {
		level = zerolog.WarnLevel
	}
	ev := f.logger.WithLevel(level).
		Str("scheme", t.Scheme).
		Int("attempt", t.Attempt+1).
		Int("max_attempts", t.MaxAttempts).
		Bool("verify_tls", t.VerifyTLS).
		Str("url", url)
	if resp != nil {
		ev = ev.Int("status", resp.StatusCode)
	}
	if err != nil {
		ev = ev.Err(err).Str("error_class", string(httpclient.Classify(err)))
		ev.Msg("GETリクエストに失敗しました")
		return
	}
	ev.Msg("GETリクエストに成功しました")
}

func planSchemes(plan []retry.Trial) []string {
	var schemes []string
	for i, t := range plan {
		if i == 0 || plan[i-1].Scheme != t.Scheme {
			schemes = append(schemes, t.Scheme)
		}
	}
	return schemes
}
