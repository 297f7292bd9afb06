package gateway

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/stationgate/pkg/apierror"
	"github.com/nao1215/stationgate/pkg/httpclient"
	"github.com/nao1215/stationgate/pkg/middleware"
)

// handleDispatch はルート表に従ってリクエストをバックエンドへ転送するハンドラを返す。
// Ginに登録されたルートに一致しなかった全リクエストがここに届く。
func (s *Server) handleDispatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, rest, ok := s.routes.match(c.Request.URL.Path)
		if !ok {
			apierror.Abort(c, apierror.ErrNotFound)
			return
		}
		c.Set(middleware.KeyRoutePrefix, route.prefix)

		if route.auth && !middleware.Authenticate(c, s.tokens) {
			return
		}
		s.forward(c, route.client, rest)
	}
}

// forward はリクエストをバックエンドのpathへ転送し、応答をそのまま中継する。
// Hostはバックエンドのホストに書き換える。
func (s *Server) forward(c *gin.Context, client *httpclient.Client, path string) {
	header := c.Request.Header.Clone()
	setForwardedHeaders(c, header)
	header.Del("X-User-ID")
	if subject := middleware.GetSubject(c); subject != "" {
		header.Set("X-User-ID", subject)
	}

	var body io.Reader = c.Request.Body
	switch {
	case c.Request.ContentLength == 0:
		body = http.NoBody
	case c.Request.ContentLength > 0:
		header.Set("Content-Length", strconv.FormatInt(c.Request.ContentLength, 10))
	}

	resp, err := client.Forward(c.Request.Context(), c.Request.Method, path, c.Request.URL.RawQuery, header, body)
	if err != nil {
		log.Printf("[Proxy] 転送に失敗: target=%s, error=%v", client.URL(path, ""), err)
		abortBackendError(c, err)
		return
	}
	defer resp.Body.Close()

	// バックエンドが返したヘッダーはミドルウェアが設定した同名のヘッダーを置き換える
	out := c.Writer.Header()
	for k, vs := range resp.Header {
		out[k] = append([]string(nil), vs...)
	}
	httpclient.RemoveHopByHop(out)
	c.Status(resp.StatusCode)
	c.Writer.WriteHeaderNow()
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		// ステータスは送信済みのため、記録のみ行う
		_ = c.Error(err)
		log.Printf("[Proxy] 応答の中継に失敗: target=%s, error=%v", client.URL(path, ""), err)
	}
}

// setForwardedHeaders はX-Forwarded-*ヘッダーを設定する。
func setForwardedHeaders(c *gin.Context, header http.Header) {
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		host = c.Request.RemoteAddr
	}
	if prior := header.Get("X-Forwarded-For"); prior != "" {
		host = prior + ", " + host
	}
	header.Set("X-Forwarded-For", host)
	header.Set("X-Forwarded-Host", c.Request.Host)
	proto := "http"
	if c.Request.TLS != nil {
		proto = "https"
	}
	header.Set("X-Forwarded-Proto", proto)
}

// abortBackendError はバックエンド呼び出しの失敗を504または502のエンベロープに変換する。
func abortBackendError(c *gin.Context, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		apierror.Abort(c, apierror.ErrGatewayTimeout)
		return
	}
	apierror.Abort(c, apierror.ErrBadGateway)
}
