package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// 分類ラベル。学習データの表記に合わせ、フィッシングを 1、正規サイトを -1 とする。
const (
	LabelPhishing   = 1
	LabelLegitimate = -1
	// LabelError は予測に失敗したモデルに割り当てるラベルです。
	LabelError = -1
)

// Predictor は特徴ベクトルからラベルを予測します。
type Predictor interface {
	Predict(vector []int) (int, error)
}

// LinearModel は重みとバイアスによる線形分類器です。
// score = bias + Σ weights[i]*vector[i] が Threshold 以上なら LabelPhishing を返します。
type LinearModel struct {
	Name      string    `json:"name" yaml:"name"`
	Weights   []float64 `json:"weights" yaml:"weights"`
	Bias      float64   `json:"bias" yaml:"bias"`
	Threshold float64   `json:"threshold" yaml:"threshold"`
}

// Predict は Predictor を実装します。ベクトル長が重みの数と異なる場合はエラーです。
func (m *LinearModel) Predict(vector []int) (int, error) {
	if len(vector) != len(m.Weights) {
		return LabelError, fmt.Errorf("特徴ベクトルの長さが一致しません (model: %s, expected: %d, actual: %d)", m.Name, len(m.Weights), len(vector))
	}
	if m.Score(vector) >= m.Threshold {
		return LabelPhishing, nil
	}
	return LabelLegitimate, nil
}

// Score は閾値判定前の線形スコアです。
func (m *LinearModel) Score(vector []int) float64 {
	score := m.Bias
	for i, x := range vector {
		if i < len(m.Weights) {
			score += m.Weights[i] * float64(x)
		}
	}
	return score
}

// LoadFile はモデルファイルを読み込みます。拡張子が .yaml / .yml なら YAML、それ以外は JSON として扱います。
func LoadFile(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("モデルファイルの読み込みに失敗しました (%s): %w", path, err)
	}

	var m LinearModel
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("モデルファイルの解析に失敗しました (%s): %w", path, err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("モデルに重みがありません (%s)", path)
	}
	return &m, nil
}
