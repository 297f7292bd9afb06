package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/stationgate/internal/payment"
	"github.com/nao1215/stationgate/pkg/httpclient"
	"github.com/nao1215/stationgate/pkg/middleware"
	"github.com/nao1215/stationgate/pkg/ratelimit"
	"github.com/nao1215/stationgate/pkg/token"
)

// shutdownTimeout は停止時に処理中のリクエストを待つ時間。
const shutdownTimeout = 10 * time.Second

// Server はAPI GatewayのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg は起動設定。
	cfg Config
	// limiter はクライアントごとのレート制限。
	limiter *ratelimit.Limiter
	// tokens はアクセストークン・リフレッシュトークンを扱う。
	tokens *token.Service
	// payments は決済サービスのRPCクライアント。nilの場合RPCブリッジは無効。
	payments *payment.Client
	// routes はプレフィックスルーティング表。
	routes *RouteTable
	// users はユーザーサービスのクライアント。nilの場合作成エンドポイントは無効。
	users *httpclient.Client
	// stations はステーションサービスのクライアント。nilの場合作成エンドポイントは無効。
	stations *httpclient.Client
	// closers は停止時に閉じる資源。
	closers []func() error
}

// Dependencies はNewServerWithに渡す構築済みの依存。
type Dependencies struct {
	Limiter  *ratelimit.Limiter
	Tokens   *token.Service
	Payments *payment.Client
	Routes   *RouteTable
}

// NewServer は設定から依存を構築し、Gatewayサーバーを生成する。
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	var closers []func() error
	fail := func(err error) (*Server, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	var counters ratelimit.Store = ratelimit.NewMemory()
	if cfg.RedisURL != "" {
		redisCfg, err := ratelimit.ParseRedisConfig(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fail(err)
		}
		redisCfg.Window = cfg.RateLimitWindow
		r, err := ratelimit.NewRedis(redisCfg)
		if err != nil {
			return fail(err)
		}
		counters = r
		log.Printf("[Gateway] レート制限カウンタをRedisで共有します: %s", redisCfg.Addr)
	}
	limiter, err := ratelimit.New(counters, ratelimit.Config{MaxRequests: cfg.RateLimit, Window: cfg.RateLimitWindow})
	if err != nil {
		_ = counters.Close()
		return fail(err)
	}
	closers = append(closers, limiter.Close)

	var refreshStore token.RefreshStore = token.NewMemoryStore()
	if cfg.TokenDBPath != "" {
		sqliteStore, err := token.OpenSQLiteStore(ctx, cfg.TokenDBPath)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, sqliteStore.Close)
		refreshStore = sqliteStore
	}
	tokens, err := token.NewService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, refreshStore)
	if err != nil {
		return fail(err)
	}

	var payments *payment.Client
	if cfg.PaymentServiceURL != "" {
		payments, err = payment.Dial(cfg.PaymentServiceURL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, payments.Close)
	} else {
		log.Println("[Gateway] PAYMENT_SERVICE_URLが未設定のため、決済RPCブリッジを無効にします")
	}

	routeDefs := defaultRoutes(cfg)
	if cfg.RoutesFile != "" {
		routeDefs, err = LoadRoutes(cfg.RoutesFile)
		if err != nil {
			return fail(err)
		}
	}
	routes, err := NewRouteTable(routeDefs, cfg.RequireAuth)
	if err != nil {
		return fail(err)
	}

	s, err := NewServerWith(cfg, Dependencies{
		Limiter:  limiter,
		Tokens:   tokens,
		Payments: payments,
		Routes:   routes,
	})
	if err != nil {
		return fail(err)
	}
	s.closers = closers
	return s, nil
}

// NewServerWith は構築済みの依存からGatewayサーバーを生成する。
func NewServerWith(cfg Config, deps Dependencies) (*Server, error) {
	if deps.Limiter == nil || deps.Tokens == nil || deps.Routes == nil {
		return nil, errors.New("Limiter・Tokens・Routesは必須です")
	}

	s := &Server{
		cfg:      cfg,
		limiter:  deps.Limiter,
		tokens:   deps.Tokens,
		payments: deps.Payments,
		routes:   deps.Routes,
	}

	var err error
	if cfg.UserServiceURL != "" {
		if s.users, err = httpclient.New(cfg.UserServiceURL); err != nil {
			return nil, fmt.Errorf("USER_SERVICE_URLが不正です: %w", err)
		}
	}
	if cfg.StationServiceURL != "" {
		if s.stations, err = httpclient.New(cfg.StationServiceURL); err != nil {
			return nil, fmt.Errorf("STATION_SERVICE_URLが不正です: %w", err)
		}
	}

	router := gin.New()
	// 接頭辞ルーティングで末尾スラッシュを保持するため、自動リダイレクトは無効にする
	router.RedirectTrailingSlash = false
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIESが不正です: %w", err)
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLog())
	router.Use(gin.Logger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.CORSOrigins))

	s.router = router
	s.setupRoutes()
	return s, nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ヘルスチェック（レート制限・認証の対象外）
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})

	// 以降に登録するルートとルート表によるプロキシはすべてレート制限と制限時間の対象
	s.router.Use(middleware.RateLimit(s.limiter))
	s.router.Use(middleware.Timeout(s.requestTimeout()))

	// トークンエンドポイント（認証不要）
	s.router.POST("/login", s.handleLogin())
	s.router.POST("/token", s.handleRefresh())
	s.router.DELETE("/logout", s.handleLogout())

	protected := func(group *gin.RouterGroup) *gin.RouterGroup {
		if s.cfg.RequireAuth {
			group.Use(middleware.JWTAuth(s.tokens))
		}
		return group
	}

	if s.payments != nil {
		pay := protected(s.router.Group("/payment-service"))
		{
			pay.GET("/getAll", s.handleListPayments())
			pay.GET("/getOne", s.handleGetPayment())
			pay.POST("/add", s.handlePaymentRPC(payment.MethodCreatePayment))
			pay.PUT("/update", s.handlePaymentRPC(payment.MethodUpdatePayment))
			pay.DELETE("/delete", s.handlePaymentRPC(payment.MethodDeletePayment))
		}
	}
	if s.users != nil {
		protected(s.router.Group("/users-service")).POST("/create", s.handleCreate(s.users, "/users"))
	}
	if s.stations != nil {
		protected(s.router.Group("/stations-service")).POST("/create", s.handleCreate(s.stations, "/station/"))
	}

	// Ginのルートに一致しないリクエストはルート表で転送する
	s.router.NoRoute(s.handleDispatch())
}

// Handler はGatewayのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーとレート制限のリセットループを起動し、ctxが終了するまでリクエストを処理する。
// ctxが終了すると処理中のリクエストを待ってから停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := s.httpServer()

	resetCtx, stopReset := context.WithCancel(ctx)
	defer stopReset()
	go s.limiter.Run(resetCtx)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Gateway] Gatewayサービスを起動します: :%s (ルート数=%d)", s.cfg.Port, s.routes.Len())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	log.Println("[Gateway] シャットダウンを開始します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}

// httpServer はGatewayをリッスンするhttp.Serverを生成する。
func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// コンテキストの期限はボディの読み取りを中断しないため、読み取り全体にも同じ制限をかける
		ReadTimeout: s.requestTimeout(),
	}
}

// requestTimeout は1リクエストあたりの制限時間を返す。
func (s *Server) requestTimeout() time.Duration {
	if s.cfg.RequestTimeout > 0 {
		return s.cfg.RequestTimeout
	}
	return middleware.DefaultTimeout
}

// Close はサーバーが保持する資源を閉じる。
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
