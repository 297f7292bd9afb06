package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/stationgate/pkg/apierror"
)

// DefaultTimeout は1リクエストあたりの制限時間。
const DefaultTimeout = 15 * time.Second

// Timeout はリクエストコンテキストに制限時間を設定するGinミドルウェアを返す。
// バックエンド呼び出しはこのコンテキストを引き継ぐため、制限時間を過ぎると中断される。
// ハンドラが応答を書かないまま制限時間を過ぎた場合は504のエンベロープを返す。
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if !c.Writer.Written() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			apierror.Abort(c, apierror.ErrGatewayTimeout)
		}
	}
}
