// Package apierror はGatewayが自ら生成するエラーレスポンスのエンベロープを提供する。
//
// バックエンドのレスポンスはそのまま中継するが、レート制限・タイムアウト・
// 認証失敗・ルート未登録など、Gateway自身が判断したエラーは
// {code, status, message, data} 形式で返す。
package apierror
