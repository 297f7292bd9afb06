package middleware

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/stationgate/pkg/apierror"
	"github.com/nao1215/stationgate/pkg/ratelimit"
)

// RateLimit はクライアントIPごとにリクエスト数を制限するGinミドルウェアを返す。
// 上限を超えた場合は429のエンベロープを返す。
// カウンタストアの障害時はリクエストを通過させる。
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := limiter.Admit(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Printf("[RateLimit] 判定に失敗したため通過させます: client=%s, error=%v", c.ClientIP(), err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatUint(decision.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatUint(decision.Remaining(), 10))

		if !decision.Allowed {
			apierror.Abort(c, apierror.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}
