package cmd

import (
	"fmt"
	"time"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"

	"github.com/shouni/go-phish-features/internal/config"
	"github.com/shouni/go-phish-features/internal/logging"
	"github.com/shouni/go-phish-features/internal/pipeline"
)

// --- グローバル定数 ---

const (
	appName = "phishscan"

	// 全体処理のタイムアウトを求める際、HTTPタイムアウトに加算する照会 (WHOIS / TLS) の余裕
	lookupAllowance = 15 * time.Second
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	TimeoutSec int    // --timeout タイムアウト
	MaxRetries int    // --max-retries スキームごとの追加試行回数
	ConfigFile string // --config-file 設定ファイル
	LogLevel   string // --log-level ログレベル
}

var Flags AppFlags                 // アプリケーション固有フラグにアクセスするためのグローバル変数
var appPipeline *pipeline.Pipeline // initAppPreRunE で初期化される依存関係一式

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().IntVar(
		&Flags.TimeoutSec,
		"timeout",
		int(config.Default().HTTP.Timeout()/time.Second),
		"HTTPリクエスト1回あたりのタイムアウト時間（秒）",
	)
	rootCmd.PersistentFlags().IntVar(
		&Flags.MaxRetries,
		"max-retries",
		config.Default().HTTP.MaxRetries,
		"スキームごとの追加試行回数 (試行回数は max-retries+1)",
	)
	rootCmd.PersistentFlags().StringVar(
		&Flags.ConfigFile,
		"config-file",
		"",
		fmt.Sprintf("設定ファイル (YAML) のパス。未指定時は $%s、./%s の順に探します", config.EnvConfigPath, config.DefaultConfigFile),
	)
	rootCmd.PersistentFlags().StringVar(
		&Flags.LogLevel,
		"log-level",
		"",
		"ログレベル (debug, info, warn, error)。設定ファイルの値を上書きします",
	)
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(Flags.ConfigFile)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("ロガーの初期化エラー: %w", err)
	}

	logger.Debug().
		Dur("timeout", cfg.HTTP.Timeout()).
		Int("max_retries", cfg.HTTP.MaxRetries).
		Int("models", len(cfg.Models)).
		Msg("設定を読み込みました")

	appPipeline, err = pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	return nil
}

// applyFlagOverrides は明示的に指定されたフラグだけを設定に反映します。
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.HTTP.TimeoutSec = Flags.TimeoutSec
	}
	if flags.Changed("max-retries") {
		cfg.HTTP.MaxRetries = Flags.MaxRetries
	}
	if Flags.LogLevel != "" {
		cfg.Log.Level = Flags.LogLevel
	}
	if clibase.Flags.Verbose {
		cfg.Log.Level = "debug"
	}
}

// GetPipeline は、初期化された依存関係を返す関数 (DIの代わり)
func GetPipeline() (*pipeline.Pipeline, error) {
	if appPipeline == nil {
		return nil, fmt.Errorf("解析パイプラインが初期化されていません")
	}
	return appPipeline, nil
}

// overallTimeout は1件の解析全体の上限です。
// 全試行 (両スキーム × 試行回数 × HEAD/GET) にWHOIS・TLSの照会を加えた時間とします。
func overallTimeout(cfg *config.Config) time.Duration {
	attempts := time.Duration(2 * (cfg.HTTP.MaxRetries + 1))
	perAttempt := cfg.HTTP.Timeout()
	if cfg.HTTP.HeadProbe {
		perAttempt *= 2
	}
	return attempts*perAttempt + cfg.Lookup.WhoisTimeout()*2 + cfg.Lookup.TLSTimeout() + lookupAllowance
}

// --- エントリポイント ---

// Execute は、ルートコマンドを実行するメイン関数です。clibaseのExecuteを使用する。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		analyzeCmd,
		parseCmd,
		scraperCmd,
		serveCmd,
	)
	// clibase.Execute() の中で os.Exit(1) が処理されるため、ここでは不要
}
