package retry

import (
	"context"
	"fmt"
	"time"
)

// Trial は試行計画の1要素 (スキーム, 試行番号, 証明書検証モード) です。
type Trial struct {
	Scheme      string
	Attempt     int // 0 始まり
	MaxAttempts int
	VerifyTLS   bool
}

func (t Trial) String() string {
	return fmt.Sprintf("%s attempt %d/%d (verify_tls=%t)", t.Scheme, t.Attempt+1, t.MaxAttempts, t.VerifyTLS)
}

// BuildPlan はスキームの優先順に、スキームごと maxRetries+1 回の試行を並べた計画を作ります。
// 証明書を検証するのは各スキームの最初の試行だけで、以降の試行は検証なしで行います。
// 空のスキームと重複は取り除きます。
func BuildPlan(schemes []string, maxRetries int) []Trial {
	if maxRetries < 0 {
		maxRetries = 0
	}
	attempts := maxRetries + 1

	seen := make(map[string]bool, len(schemes))
	plan := make([]Trial, 0, len(schemes)*attempts)
	for _, scheme := range schemes {
		if scheme == "" || seen[scheme] {
			continue
		}
		seen[scheme] = true

		for attempt := 0; attempt < attempts; attempt++ {
			plan = append(plan, Trial{
				Scheme:      scheme,
				Attempt:     attempt,
				MaxAttempts: attempts,
				VerifyTLS:   attempt == 0,
			})
		}
	}
	return plan
}

// TrialFunc は計画の1試行を実行します。成功時は nil を返します。
type TrialFunc func(ctx context.Context, t Trial) error

// Run は計画を先頭から順に消費する単一のリトライループです。
// 最初に成功した試行を返し、残りの試行は実行しません。失敗の種類にかかわらず次の試行へ進み、
// 試行の間は cfg に従って指数バックオフで待機します。すべて失敗した場合は最後のエラーを返します。
func Run(ctx context.Context, cfg Config, plan []Trial, fn TrialFunc) (Trial, error) {
	if len(plan) == 0 {
		return Trial{}, fmt.Errorf("試行計画が空です")
	}

	b := newBackOff(cfg)
	var lastErr error

	for i, trial := range plan {
		if i > 0 {
			if err := wait(ctx, cfg, b.NextBackOff()); err != nil {
				return Trial{}, fmt.Errorf("試行 %s の前に中断されました: %w", trial, err)
			}
		}

		err := fn(ctx, trial)
		if err == nil {
			return trial, nil
		}
		lastErr = err
	}

	return Trial{}, fmt.Errorf("全%d回の試行が失敗しました。最終エラー: %w", len(plan), lastErr)
}

func wait(ctx context.Context, cfg Config, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cfg.InitialInterval <= 0 || d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
