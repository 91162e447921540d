package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

const (
	// HTTPクライアント関連の定数
	DefaultHTTPTimeout = 10 * time.Second
	MaxBodySize        = int64(10 * 1024 * 1024) // 10MB: レスポンスボディの最大読み込みサイズ

	// サイトからのブロックを避けるためのUser-Agent
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// ブラウザと同等のリクエストヘッダー。
// Accept-Encoding は net/http の透過的な gzip 展開を有効にするため明示しません。
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// Doer は、標準の *http.Client.Do()と互換性のあるHTTPクライアントのインターフェースを定義します。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client は証明書を検証する Doer と検証しない Doer を保持し、試行ごとに使い分けます。
type Client struct {
	secure      Doer
	insecure    Doer
	userAgent   string
	maxBodySize int64
}

// Option はClientの設定を行うための関数型です。
type Option func(*Client)

// WithHTTPClient は検証モードにかかわらず同じ Doer を使うよう設定します。主にテスト用です。
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		c.secure = doer
		c.insecure = doer
	}
}

// WithDoers は検証ありと検証なしの Doer を個別に設定します。
func WithDoers(secure, insecure Doer) Option {
	return func(c *Client) {
		c.secure = secure
		c.insecure = insecure
	}
}

// WithUserAgent は User-Agent を上書きします。空文字は無視します。
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxBodySize はボディの最大読み込みサイズを設定します。
func WithMaxBodySize(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxBodySize = limit
		}
	}
}

// New は、新しいClientを生成します。timeout はリクエスト1回ごとの上限です。
func New(timeout time.Duration, options ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	c := &Client{
		secure:      newHTTPClient(timeout, false),
		insecure:    newHTTPClient(timeout, true),
		userAgent:   UserAgent,
		maxBodySize: MaxBodySize,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func newHTTPClient(timeout time.Duration, insecureSkipVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: insecureSkipVerify, //nolint:gosec // 検証なしの再試行は意図された動作
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Response は1回のリクエストで得られたメタデータと本文です。
type Response struct {
	URL        string      // 要求したURL
	FinalURL   string      // リダイレクト追跡後のURL
	StatusCode int         // 最終レスポンスのステータスコード
	Header     http.Header // 最終レスポンスのヘッダー
	Body       string      // UTF-8 に変換済みの本文 (HEAD では空)
	Redirects  []string    // リダイレクトで経由したURL (古い順)
}

// RedirectCount はリダイレクト履歴の件数を返します。
func (r *Response) RedirectCount() int {
	if r == nil {
		return 0
	}
	return len(r.Redirects)
}

// OK はステータスコードが成功範囲 (2xx/3xx) かどうかを返します。
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 400
}

// Head は本文なしの軽量リクエストを送ります。レスポンスのステータスは評価しません。
func (c *Client) Head(ctx context.Context, url string, verifyTLS bool) (*Response, error) {
	resp, err := c.do(ctx, http.MethodHead, url, verifyTLS)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return newResponse(url, resp, ""), nil
}

// Get は本文を取得します。ステータスが成功範囲外の場合、取得できたレスポンスと *StatusError を両方返します。
func (c *Client) Get(ctx context.Context, url string, verifyTLS bool) (*Response, error) {
	resp, err := c.do(ctx, http.MethodGet, url, verifyTLS)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return nil, err
	}

	r := newResponse(url, resp, body)
	if !r.OK() {
		return r, &StatusError{StatusCode: r.StatusCode, URL: r.FinalURL}
	}
	return r, nil
}

func (c *Client) do(ctx context.Context, method, url string, verifyTLS bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%sリクエスト作成に失敗しました: %w", method, err)
	}
	c.addCommonHeaders(req)

	doer := c.insecure
	if verifyTLS {
		doer = c.secure
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP %sリクエストに失敗しました: %w", method, err)
	}
	return resp, nil
}

// addCommonHeaders は共通のHTTPヘッダーを設定します。
func (c *Client) addCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
}

// readBody は最大サイズまで本文を読み、Content-Type や meta の文字コードに従って UTF-8 に変換します。
func (c *Client) readBody(resp *http.Response) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み込みに失敗しました: %w", err)
	}

	decoded, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return string(raw), nil
	}
	text, err := io.ReadAll(decoded)
	if err != nil {
		return string(raw), nil
	}
	return string(text), nil
}

func newResponse(requested string, resp *http.Response, body string) *Response {
	r := &Response{
		URL:        requested,
		FinalURL:   requested,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Redirects:  redirectHistory(resp),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		r.FinalURL = resp.Request.URL.String()
	}
	return r
}

// redirectHistory は最終リクエストから Response.Request を遡り、経由したURLを古い順に返します。
func redirectHistory(resp *http.Response) []string {
	var hops []string
	for req := resp.Request; req != nil && req.Response != nil; req = req.Response.Request {
		prev := req.Response.Request
		if prev == nil || prev.URL == nil {
			break
		}
		hops = append(hops, prev.URL.String())
	}

	for i, j := 0, len(hops)-1; i < j; i, j = i+1, j-1 {
		hops[i], hops[j] = hops[j], hops[i]
	}
	return hops
}

// StatusError は成功範囲外のHTTPステータスを示すエラーです。
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPステータスコードエラー: %d (%s) URL: %s", e.StatusCode, strings.TrimSpace(http.StatusText(e.StatusCode)), e.URL)
}

// IsStatusError は与えられたエラーが *StatusError を含むかを判断します。
func IsStatusError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}
