// API Gatewayサービスのエントリポイント。
// レート制限、JWT認証、接頭辞ルーティングによるプロキシ、決済サービスへのgRPCブリッジを担当する。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/stationgate/internal/gateway"
)

func main() {
	cfg, err := gateway.LoadConfig()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := gateway.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Printf("Gatewayサーバーの終了処理に失敗: %v", err)
		}
	}()

	if err := server.Run(ctx); err != nil {
		log.Printf("Gatewayサービスの実行に失敗: %v", err)
		stop()
		os.Exit(1)
	}
}
