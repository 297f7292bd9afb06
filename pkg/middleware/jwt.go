package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/stationgate/pkg/apierror"
	"github.com/nao1215/stationgate/pkg/token"
)

// AccessVerifier はアクセストークンを検証する。*token.Service が実装する。
type AccessVerifier interface {
	VerifyAccess(tokenString string) (token.Subject, error)
}

// contextKey はリクエストコンテキストのキーの型。
type contextKey string

const (
	// keySubject はGinコンテキストに利用者名を格納するキー。
	keySubject = "subject"
	// contextKeySubject はリクエストコンテキストに利用者を格納するキー。
	contextKeySubject contextKey = "subject"
)

// JWTAuth はAuthorizationヘッダーのBearerトークンを検証するGinミドルウェアを返す。
// トークンが無ければ401、無効・期限切れであれば403を返し、以降のハンドラは実行しない。
// 検証に成功した場合、利用者をGinコンテキストとリクエストコンテキストの両方に設定する。
func JWTAuth(verifier AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Authenticate(c, verifier) {
			return
		}
		c.Next()
	}
}

// Authenticate はリクエストのアクセストークンを検証する。
// 失敗した場合は401または403を書き込んでfalseを返す。
// ルートごとに認証の要否が決まるハンドラから直接呼び出す。
func Authenticate(c *gin.Context, verifier AccessVerifier) bool {
	subject, err := verifier.VerifyAccess(BearerToken(c))
	if err != nil {
		if errors.Is(err, token.ErrUnauthenticated) {
			apierror.Abort(c, apierror.ErrUnauthenticated)
			return false
		}
		apierror.Abort(c, apierror.ErrForbidden)
		return false
	}

	c.Set(keySubject, subject.Name)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), contextKeySubject, subject))
	return true
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーが無い、またはBearer形式でない場合は空文字列を返す。
func BearerToken(c *gin.Context) string {
	tokenString, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(tokenString)
}

// GetSubject はGinコンテキストから利用者名を取得する。
// JWTAuthミドルウェアが適用されていない場合は空文字列を返す。
func GetSubject(c *gin.Context) string {
	return c.GetString(keySubject)
}

// SubjectFromContext はリクエストコンテキストから利用者を取得する。
func SubjectFromContext(ctx context.Context) (token.Subject, bool) {
	subject, ok := ctx.Value(contextKeySubject).(token.Subject)
	return subject, ok
}
