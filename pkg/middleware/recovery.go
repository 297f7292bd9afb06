package middleware

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/stationgate/pkg/apierror"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にログを出力し、レスポンス未送信であれば500のエンベロープを返す。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, r)
				_ = c.Error(fmt.Errorf("panic: %v", r))
				apierror.Abort(c, apierror.ErrInternal)
			}
		}()
		c.Next()
	}
}
