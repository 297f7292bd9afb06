// Package httpclient はGatewayからバックエンドサービスへのHTTP通信を行うクライアントを提供する。
//
// ルート表によるプロキシ転送と、ユーザー・ステーションサービスへの作成リクエストで使用する。
// リクエストの制限時間は呼び出し元のコンテキストで管理し、リトライは行わない。
package httpclient
