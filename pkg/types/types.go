package types

import "time"

// AnalysisResult は1つのURLに対する解析結果です。
// Features は計算済みの特徴量のみを含み、Vector は正準順に並べた30個の値です。
type AnalysisResult struct {
	InputURL    string         `json:"input_url"`
	URL         string         `json:"url"`                 // 特徴量計算に使ったURL (取得に成功したURL)
	FinalURL    string         `json:"final_url,omitempty"` // リダイレクト追跡後のURL
	Fetched     bool           `json:"fetched"`
	StatusCode  int            `json:"status_code,omitempty"`
	Redirects   int            `json:"redirects"`
	Features    map[string]int `json:"features"`
	Vector      []int          `json:"vector"`
	Predictions map[string]int `json:"predictions,omitempty"`
	FetchError  string         `json:"fetch_error,omitempty"`
	AnalyzedAt  time.Time      `json:"analyzed_at"`
	Elapsed     time.Duration  `json:"elapsed_ns"`
}

// URLResult は、バッチ処理における1件分の結果、またはその処理中に発生したエラーを保持します。
// Result はコンテンツを取得できなかった場合も、計算できた特徴量を保持します。
type URLResult struct {
	URL    string          // 処理対象のURL
	Result *AnalysisResult // 解析結果
	Error  error           // 処理中に発生したエラー
}
