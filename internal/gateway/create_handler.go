package gateway

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/stationgate/pkg/httpclient"
	"github.com/nao1215/stationgate/pkg/middleware"
)

// handleCreate はリクエストボディをJSONとしてバックエンドのpathへPOSTし、
// バックエンドのステータスとボディをそのまま返すハンドラを返す。
func (s *Server) handleCreate(client *httpclient.Client, path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := readBody(c)
		if !ok {
			return
		}

		header := http.Header{}
		if auth := c.GetHeader("Authorization"); auth != "" {
			header.Set("Authorization", auth)
		}
		if subject := middleware.GetSubject(c); subject != "" {
			header.Set("X-User-ID", subject)
		}

		resp, err := client.PostJSON(c.Request.Context(), path, body, header)
		if err != nil {
			log.Printf("[Proxy] 作成リクエストに失敗: target=%s, error=%v", client.URL(path, ""), err)
			abortBackendError(c, err)
			return
		}

		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/json"
		}
		c.Data(resp.StatusCode, contentType, resp.Body)
	}
}
