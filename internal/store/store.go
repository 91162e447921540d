package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/shouni/go-phish-features/pkg/types"
)

// Record は保存済みの解析結果1件です。
type Record struct {
	ID          int64          `json:"id"`
	InputURL    string         `json:"input_url"`
	URL         string         `json:"url"`
	Fetched     bool           `json:"fetched"`
	Features    map[string]int `json:"features"`
	Vector      []int          `json:"vector"`
	Predictions map[string]int `json:"predictions,omitempty"`
	AnalyzedAt  time.Time      `json:"analyzed_at"`
}

// Store は解析履歴を SQLite に保存します。
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open はデータベースを開き、スキーマを作成します。
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("データベースのディレクトリ作成に失敗しました (%s): %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("データベースを開けませんでした (%s): %w", path, err)
	}
	// 書き込みを直列化する
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug().Str("path", path).Msg("解析履歴データベースを初期化しました")
	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			input_url TEXT NOT NULL,
			url TEXT NOT NULL,
			fetched INTEGER NOT NULL,
			features TEXT NOT NULL,
			vector TEXT NOT NULL,
			predictions TEXT,
			analyzed_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_analyzed_at ON analyses (analyzed_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("スキーマの作成に失敗しました: %w", err)
		}
	}
	return nil
}

// Save は解析結果を1件保存し、採番されたIDを返します。
func (s *Store) Save(ctx context.Context, r *types.AnalysisResult) (int64, error) {
	if r == nil {
		return 0, fmt.Errorf("保存する解析結果がありません")
	}

	featuresJSON, err := json.Marshal(r.Features)
	if err != nil {
		return 0, fmt.Errorf("特徴量のエンコードに失敗しました: %w", err)
	}
	vectorJSON, err := json.Marshal(r.Vector)
	if err != nil {
		return 0, fmt.Errorf("特徴ベクトルのエンコードに失敗しました: %w", err)
	}
	var predictions sql.NullString
	if r.Predictions != nil {
		b, err := json.Marshal(r.Predictions)
		if err != nil {
			return 0, fmt.Errorf("予測結果のエンコードに失敗しました: %w", err)
		}
		predictions = sql.NullString{String: string(b), Valid: true}
	}

	const query = `INSERT INTO analyses (input_url, url, fetched, features, vector, predictions, analyzed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query, r.InputURL, r.URL, r.Fetched, string(featuresJSON), string(vectorJSON), predictions, r.AnalyzedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("解析結果の保存に失敗しました (url: %s): %w", r.URL, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("採番されたIDを取得できませんでした: %w", err)
	}
	s.logger.Debug().Int64("id", id).Str("url", r.URL).Msg("解析結果を保存しました")
	return id, nil
}

// Recent は新しい順に最大 limit 件の履歴を返します。
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `SELECT id, input_url, url, fetched, features, vector, predictions, analyzed_at FROM analyses ORDER BY analyzed_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec                   Record
			featuresJSON, vecJSON string
			predictions           sql.NullString
			analyzedAt            int64
		)
		if err := rows.Scan(&rec.ID, &rec.InputURL, &rec.URL, &rec.Fetched, &featuresJSON, &vecJSON, &predictions, &analyzedAt); err != nil {
			return nil, fmt.Errorf("履歴の読み取りに失敗しました: %w", err)
		}
		if err := json.Unmarshal([]byte(featuresJSON), &rec.Features); err != nil {
			return nil, fmt.Errorf("特徴量のデコードに失敗しました (id: %d): %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(vecJSON), &rec.Vector); err != nil {
			return nil, fmt.Errorf("特徴ベクトルのデコードに失敗しました (id: %d): %w", rec.ID, err)
		}
		if predictions.Valid {
			if err := json.Unmarshal([]byte(predictions.String), &rec.Predictions); err != nil {
				return nil, fmt.Errorf("予測結果のデコードに失敗しました (id: %d): %w", rec.ID, err)
			}
		}
		rec.AnalyzedAt = time.UnixMilli(analyzedAt).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}
