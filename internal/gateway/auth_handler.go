package gateway

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/stationgate/pkg/token"
)

// loginRequest はPOST /loginのリクエストボディ。
type loginRequest struct {
	Username string `json:"username" binding:"required"`
}

// tokenRequest はPOST /tokenとDELETE /logoutのリクエストボディ。
type tokenRequest struct {
	Token string `json:"token"`
}

// handleLogin はアクセストークンとリフレッシュトークンを発行するハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "usernameは必須です"})
			return
		}

		pair, err := s.tokens.Login(c.Request.Context(), req.Username)
		if err != nil {
			log.Printf("[Auth] トークン発行に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン発行に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, pair)
	}
}

// handleRefresh はリフレッシュトークンから新しいアクセストークンを発行するハンドラを返す。
// トークンが無ければ401、無効または失効済みであれば403を返す。
func (s *Server) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		// ボディが壊れている場合はトークン無しとして扱う
		_ = c.ShouldBindJSON(&req)

		accessToken, err := s.tokens.Refresh(c.Request.Context(), req.Token)
		switch {
		case errors.Is(err, token.ErrUnauthenticated):
			c.AbortWithStatus(http.StatusUnauthorized)
		case errors.Is(err, token.ErrForbidden):
			c.AbortWithStatus(http.StatusForbidden)
		case err != nil:
			log.Printf("[Auth] トークン再発行に失敗: %v", err)
			c.AbortWithStatus(http.StatusInternalServerError)
		default:
			c.JSON(http.StatusOK, gin.H{"accessToken": accessToken})
		}
	}
}

// handleLogout はリフレッシュトークンを失効させるハンドラを返す。
// 未登録のトークンに対しても204を返す。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		_ = c.ShouldBindJSON(&req)

		if err := s.tokens.Logout(c.Request.Context(), req.Token); err != nil {
			log.Printf("[Auth] トークン失効に失敗: %v", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
