package gateway

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/stationgate/internal/payment"
	"github.com/nao1215/stationgate/pkg/apierror"
	"google.golang.org/grpc/codes"
)

// handleListPayments はGetAllPaymentsを呼び出し、決済の配列を返すハンドラを返す。
func (s *Server) handleListPayments() gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := s.payments.ListPayments(c.Request.Context())
		if err != nil {
			abortRPCError(c, payment.MethodGetAllPayments, err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", out)
	}
}

// handleGetPayment はGetPaymentを呼び出すハンドラを返す。
// idはリクエストボディまたはクエリパラメータ ?id= で受け付ける。
func (s *Server) handleGetPayment() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := readBody(c)
		if !ok {
			return
		}
		if len(body) == 0 {
			if id := c.Query("id"); id != "" {
				body, _ = json.Marshal(map[string]string{"id": id})
			}
		}
		s.callPayment(c, payment.MethodGetPayment, body)
	}
}

// handlePaymentRPC はボディをそのままmethodの入力とするハンドラを返す。
func (s *Server) handlePaymentRPC(method payment.Method) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := readBody(c)
		if !ok {
			return
		}
		s.callPayment(c, method, body)
	}
}

// callPayment はRPCを発行し、成功時は200で応答を、失敗時はエラーエンベロープを書き込む。
// どの経路でも応答は1回だけ書き込まれる。
func (s *Server) callPayment(c *gin.Context, method payment.Method, body []byte) {
	out, err := s.payments.Call(c.Request.Context(), method, body)
	if err != nil {
		abortRPCError(c, method, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}

// readBody は呼び出し元のリクエストボディを読み切る。読み取れない場合は400を返す。
func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		_ = c.Error(err)
		apierror.Abort(c, apierror.ErrBadRequest)
		return nil, false
	}
	return body, true
}

// abortRPCError はRPCの失敗をログに記録し、gRPCステータスに応じたエラーエンベロープを返す。
func abortRPCError(c *gin.Context, method payment.Method, err error) {
	code := payment.Code(err)
	log.Printf("[Payment] %sに失敗: code=%s, error=%v", method, code, err)
	apierror.Abort(c, rpcError(code))
}

// rpcError はgRPCステータスコードをエラーエンベロープに変換する。
func rpcError(code codes.Code) *apierror.Error {
	switch code {
	case codes.InvalidArgument:
		return apierror.ErrBadRequest
	case codes.NotFound:
		return apierror.New(http.StatusNotFound, "Payment not found.")
	case codes.AlreadyExists:
		return apierror.New(http.StatusConflict, "Payment already exists.")
	case codes.Unavailable:
		return apierror.ErrServiceUnavailable
	case codes.DeadlineExceeded:
		return apierror.ErrGatewayTimeout
	default:
		return apierror.ErrBadGateway
	}
}
