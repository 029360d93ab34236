// 変換サービスのエントリポイント。
// OfficeドキュメントのPDF変換、サービス間認証、変換履歴の記録を担当する。
// 共有シークレットが未設定の場合は起動を拒否する。
package main

import (
	"log"

	"github.com/ryanlohyr/convert-office-files-to-pdf/internal/converter"
)

func main() {
	cfg := converter.ConfigFromEnv()

	server, err := converter.NewServer(cfg)
	if err != nil {
		log.Fatalf("変換サーバーの初期化に失敗: %v", err)
	}

	log.Printf("変換サービスを起動します: :%s (env=%s)", cfg.Port, cfg.Env)
	if err := server.Run(); err != nil {
		log.Fatalf("変換サービスの起動に失敗: %v", err)
	}
}
