package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nhalm/canonlog"
)

// RequestLog はリクエストごとに1行の標準ログ（canonical log line）を出力するGinミドルウェアを返す。
// レート制限・認証・ルーティングの結果をまとめて記録する。
func RequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := canonlog.NewContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		canonlog.InfoAddMany(ctx, map[string]any{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"client_ip": c.ClientIP(),
		})

		c.Next()

		route := c.FullPath()
		if route == "" {
			// ルート表によるプロキシはGinのルートに登録されない
			route = c.GetString(KeyRoutePrefix)
		}
		fields := map[string]any{
			"route":       route,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if subject := GetSubject(c); subject != "" {
			fields["subject"] = subject
		}
		canonlog.InfoAddMany(ctx, fields)
		for _, e := range c.Errors {
			canonlog.ErrorAdd(ctx, e.Err)
		}
		canonlog.Flush(ctx)
	}
}

// KeyRoutePrefix はプロキシ先のルート接頭辞をGinコンテキストに格納するキー。
const KeyRoutePrefix = "route_prefix"
