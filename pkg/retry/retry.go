package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// リトライ関連の定数
	DefaultMaxRetries = 2 // スキームごとの追加試行回数 (合計 3 回)

	// バックオフのカスタム設定
	InitialBackoffInterval = 250 * time.Millisecond
	MaxBackoffInterval     = 2 * time.Second
)

// Config は試行間の待機 (指数バックオフ) を設定するための構造体です。
// 試行回数は BuildPlan に渡す maxRetries で決まります。
// InitialInterval が 0 以下の場合、試行間の待機は行いません。
type Config struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig は推奨されるデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		InitialInterval: InitialBackoffInterval,
		MaxInterval:     MaxBackoffInterval,
	}
}

// newBackOff は試行間の待機時間を生成する指数バックオフを作ります。
// 試行回数の上限は試行計画 (Run) が管理するため、経過時間による打ち切りは無効にします。
func newBackOff(cfg Config) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
