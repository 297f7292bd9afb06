// Package payment は決済サービスのgRPC APIを呼び出すクライアントを提供する。
//
// payment.proto のメッセージ定義をコード内のディスクリプタとして保持し、
// JSONのリクエストボディを動的メッセージに変換して単項RPCを発行する。
// 応答は宣言どおりのフィールド名・デフォルト値込みのJSONに変換して返す。
package payment
