package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/shouni/go-phish-features/internal/config"
)

// New は設定に従ってロガーを生成します。
// 標準エラーへ console または json 形式で出力し、file が指定されていればローテーション付きで同時に書き込みます。
func New(cfg config.LogConfig) (zerolog.Logger, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.LogConfig, console io.Writer) (zerolog.Logger, error) {
	if cfg.Level == "" {
		return zerolog.Nop(), fmt.Errorf("ログレベルが指定されていません")
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("不正なログレベルです (%q): %w", cfg.Level, err)
	}

	writers := []io.Writer{consoleWriter(cfg.Format, console, false)}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), fmt.Errorf("ログディレクトリの作成に失敗しました (%s): %w", cfg.File, err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			LocalTime:  true,
		}
		writers = append(writers, consoleWriter(cfg.Format, rotator, true))
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

// ファイルへの console 形式出力は色なしにする
func consoleWriter(format string, out io.Writer, noColor bool) io.Writer {
	if strings.EqualFold(format, "json") {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, NoColor: noColor, TimeFormat: time.RFC3339}
}
