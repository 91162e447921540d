package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shouni/go-phish-features/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "URL解析のHTTPエンドポイントを起動します",
	Long:  `POST /analyze (フォームまたはJSONの url) で解析結果を、GET /healthz で読み込み済みモデルを、GET /history で保存済みの解析履歴を返すHTTPサーバーを起動します。SIGINT / SIGTERM で処理中のリクエストを待って停止します。`,
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := GetPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		addr := p.Config.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return p.Server(server.WithRequestTimeout(overallTimeout(p.Config))).ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "待ち受けアドレス (例: :8080)。設定ファイルの server.addr を上書きします")
}
