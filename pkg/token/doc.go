// Package token はアクセストークンとリフレッシュトークンの発行・検証・失効を提供する。
//
// アクセストークンは有効期限15分のステートレスなJWTで、署名と期限のみで検証する。
// リフレッシュトークンは期限を持たないJWTで、発行時にアクティブセットへ登録される。
// ログアウトでアクティブセットから除去されたリフレッシュトークンは、
// 署名が正しくても二度と使用できない。
package token
