package model

import (
	"errors"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry はプロセス起動時に読み込んだモデルを名前で保持します。
// 読み込み後は複数のリクエストから読み取り専用で共有されます。
type Registry struct {
	mu     sync.RWMutex
	models map[string]Predictor
	logger zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		models: make(map[string]Predictor),
		logger: logger,
	}
}

// Register はモデルを登録します。同名のモデルは置き換えます。
func (r *Registry) Register(name string, p Predictor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[name] = p
}

// Names は登録済みモデル名を昇順で返します。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len は登録済みモデルの数です。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// PredictAll は全モデルで予測します。予測に失敗したモデルのラベルは LabelError です。
func (r *Registry) PredictAll(vector []int) map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	predictions := make(map[string]int, len(r.models))
	for name, m := range r.models {
		label, err := m.Predict(vector)
		if err != nil {
			r.logger.Error().Err(err).Str("model", name).Msg("予測に失敗しました")
			label = LabelError
		}
		predictions[name] = label
	}
	return predictions
}

// LoadRegistry は name → path の対応からモデルを読み込みます。
// 存在しないファイルや読み込めないファイルはログに記録して読み飛ばします。
func LoadRegistry(paths map[string]string, logger zerolog.Logger) *Registry {
	r := NewRegistry(logger)

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := paths[name]
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Str("model", name).Str("path", path).Msg("モデルファイルが見つかりません")
			continue
		}
		m, err := LoadFile(path)
		if err != nil {
			logger.Error().Err(err).Str("model", name).Msg("モデルの読み込みに失敗しました")
			continue
		}
		if m.Name == "" {
			m.Name = name
		}
		r.Register(name, m)
		logger.Info().Str("model", name).Str("path", path).Msg("モデルを読み込みました")
	}

	if r.Len() == 0 {
		logger.Warn().Msg("読み込まれたモデルがありません。予測結果は空になります")
	}
	return r
}
