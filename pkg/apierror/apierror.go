package apierror

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// statusError はエンベロープのstatusフィールドに設定する固定値。
const statusError = "Error"

// Error はGatewayが生成するエラーレスポンスを表す。
// HTTPステータスコードはCodeと一致させる。
type Error struct {
	// Code はHTTPステータスコード。
	Code int `json:"code"`
	// Status は常に "Error"。
	Status string `json:"status"`
	// Message は呼び出し元に返すメッセージ。
	Message string `json:"message"`
	// Data は常にnull。
	Data any `json:"data"`
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return e.Message
}

// Is はCodeが一致する場合に同一のエラーとみなす。
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New は指定したステータスコードとメッセージでエラーを生成する。
func New(code int, message string) *Error {
	return &Error{
		Code:    code,
		Status:  statusError,
		Message: message,
		Data:    nil,
	}
}

// エラー分類ごとの定義済みエラー。
var (
	// ErrRateLimitExceeded はウィンドウ内のリクエスト数が上限を超えたことを表す。
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "Rate limit exceeded.")
	// ErrGatewayTimeout はバックエンドが制限時間内に応答しなかったことを表す。
	ErrGatewayTimeout = New(http.StatusGatewayTimeout, "Gateway timeout.")
	// ErrUnauthenticated は認証情報が提示されなかったことを表す。
	ErrUnauthenticated = New(http.StatusUnauthorized, "Unauthenticated.")
	// ErrForbidden は認証情報が無効・期限切れ・失効済みであることを表す。
	ErrForbidden = New(http.StatusForbidden, "Forbidden.")
	// ErrNotFound はパスに一致するルートが無いことを表す。
	ErrNotFound = New(http.StatusNotFound, "Route not found.")
	// ErrBadGateway はバックエンドとの通信に失敗したことを表す。
	ErrBadGateway = New(http.StatusBadGateway, "Bad gateway.")
	// ErrServiceUnavailable はバックエンドが利用できないことを表す。
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "Service unavailable.")
	// ErrBadRequest はリクエストボディが不正であることを表す。
	ErrBadRequest = New(http.StatusBadRequest, "Bad request.")
	// ErrInternal はGateway内部のエラーを表す。
	ErrInternal = New(http.StatusInternalServerError, "Internal server error.")
)

// With はメッセージを差し替えたコピーを返す。
func (e *Error) With(message string) *Error {
	dup := *e
	dup.Message = message
	return &dup
}

// Abort はエラーエンベロープを書き込み、以降のハンドラを中断する。
// 既にレスポンスが書き込まれている場合は何もしない。
func Abort(c *gin.Context, e *Error) {
	if c.Writer.Written() {
		c.Abort()
		return
	}
	_ = c.Error(e)
	c.AbortWithStatusJSON(e.Code, e)
}
