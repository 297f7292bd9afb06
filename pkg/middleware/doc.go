// Package middleware はGatewayのリクエストパイプラインを構成するGinミドルウェアを提供する。
//
// パニックリカバリ、標準的なリクエストログ、セキュリティヘッダー、CORS、
// レート制限、リクエストタイムアウト、アクセストークン検証を含む。
// Gateway自身が生成するエラーはすべてapierrorのエンベロープで返す。
package middleware
