// Package ratelimit は固定ウィンドウ方式のクライアント単位レート制限を提供する。
//
// クライアントごとのカウンタをウィンドウ内で加算し、上限を超えたリクエストを拒否する。
// プロセス内のカウンタはウィンドウ経過ごとにまとめて0に戻される。Redisのカウンタは
// 最初の加算からウィンドウ経過で失効するため、複数のインスタンスで共有しても予算は1つのまま保たれる。ウィンドウ境界をまたいだ
// バーストは最大で上限の2倍まで通過しうるが、固定ウィンドウ方式の既知の性質として許容する。
package ratelimit
