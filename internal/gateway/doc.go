// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一の入口として、レート制限・制限時間・トークン認証を適用したうえで、
// 接頭辞ルーティング表に従ってユーザー・ステーションサービスへHTTPで転送し、
// 決済サービスへはRESTエンドポイントをgRPC呼び出しに変換して中継する。
//
// ルート表は起動時に1度だけ読み込み、実行中に変更しない。
package gateway
