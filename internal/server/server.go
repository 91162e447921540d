package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shouni/go-phish-features/internal/store"
	"github.com/shouni/go-phish-features/pkg/analyzer"
	"github.com/shouni/go-phish-features/pkg/types"
)

// 取得に失敗した場合にクライアントへ返すメッセージ
const fetchFailedMessage = "Could not fetch website content. The URL may be invalid, the site may be down, or it may be blocking automated requests."

const maxRequestBody = 1 << 20

// Analyzer は1つのURLを解析します。
type Analyzer interface {
	Analyze(ctx context.Context, rawURL string) (*types.AnalysisResult, error)
}

// ModelLister は読み込み済みのモデル名を返します。
type ModelLister interface {
	Names() []string
}

// History は解析結果の保存先です。*store.Store がこれを満たします。
type History interface {
	Save(ctx context.Context, r *types.AnalysisResult) (int64, error)
	Recent(ctx context.Context, limit int) ([]store.Record, error)
}

type Server struct {
	analyzer       Analyzer
	models         ModelLister
	history        History
	requestTimeout time.Duration
	logger         zerolog.Logger
}

type Option func(*Server)

func WithModels(m ModelLister) Option {
	return func(s *Server) { s.models = m }
}

func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithRequestTimeout は1リクエストあたりの解析時間の上限を設定します。0 なら上限なし。
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func New(a Analyzer, options ...Option) *Server {
	s := &Server{analyzer: a, logger: zerolog.Nop()}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Handler はルーティング済みの http.Handler を返します。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /history", s.handleHistory)
	return mux
}

// ListenAndServe は ctx が終了するまでサーバーを実行し、終了時は処理中のリクエストを待ってから停止します。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTPサーバーを起動しました")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーが異常終了しました: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.logger.Info().Msg("HTTPサーバーを停止します")
		return srv.Shutdown(shutdownCtx)
	}
}

type analyzeRequest struct {
	URL string `json:"url"`
}

type analyzeResponse struct {
	Status      string         `json:"status"`
	URL         string         `json:"url"`
	Predictions map[string]int `json:"predictions"`
	Features    map[string]int `json:"features"`
	Vector      []int          `json:"vector"`
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	rawURL, err := readURL(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if rawURL == "" {
		s.writeError(w, http.StatusBadRequest, analyzer.ErrEmptyURL.Error())
		return
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	log := s.logger.With().Str("url", rawURL).Logger()
	log.Info().Msg("解析を開始します")

	result, err := s.analyzer.Analyze(ctx, rawURL)
	if err != nil {
		log.Error().Err(err).Msg("解析中にエラーが発生しました")
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error during analysis: %v", err))
		return
	}
	s.record(ctx, result)

	if !result.Fetched {
		log.Error().Str("fetch_error", result.FetchError).Msg("コンテンツを取得できませんでした")
		s.writeError(w, http.StatusBadRequest, fetchFailedMessage)
		return
	}

	predictions := result.Predictions
	if predictions == nil {
		predictions = map[string]int{}
	}
	s.writeJSON(w, http.StatusOK, analyzeResponse{
		Status:      "success",
		URL:         rawURL,
		Predictions: predictions,
		Features:    result.Features,
		Vector:      result.Vector,
	})
}

// readURL はフォームまたはJSONボディから url を読み取り、前後の空白を取り除きます。
func readURL(r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", fmt.Errorf("invalid JSON body: %v", err)
		}
		return strings.TrimSpace(req.URL), nil
	}

	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("invalid form body: %v", err)
	}
	return strings.TrimSpace(r.FormValue("url")), nil
}

func (s *Server) record(ctx context.Context, result *types.AnalysisResult) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Save(ctx, result); err != nil {
		s.logger.Warn().Err(err).Str("url", result.URL).Msg("解析結果を保存できませんでした")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	models := []string{}
	if s.models != nil {
		models = s.models.Names()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"models": models,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("履歴を取得できませんでした")
		s.writeError(w, http.StatusInternalServerError, "could not read history")
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"records": records,
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Status: "error", Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("レスポンスの書き込みに失敗しました")
	}
}
