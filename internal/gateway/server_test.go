package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/stationgate/internal/payment"
	"github.com/nao1215/stationgate/internal/payment/paymenttest"
	"github.com/nao1215/stationgate/pkg/apierror"
	"github.com/nao1215/stationgate/pkg/ratelimit"
	"github.com/nao1215/stationgate/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeClock はテスト用に進められる時計。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testServerOptions はnewTestServerの設定。
type testServerOptions struct {
	rateLimit   uint64
	timeout     time.Duration
	requireAuth bool
	routes      []Route
	payment     paymenttest.HandlerFunc
	userURL     string
	stationURL  string
}

// testServer はテスト用のGatewayと、その依存への参照。
type testServer struct {
	*Server
	clock *fakeClock
}

func newTestServer(t *testing.T, opts testServerOptions) *testServer {
	t.Helper()

	if opts.rateLimit == 0 {
		opts.rateLimit = 100
	}
	if opts.timeout == 0 {
		opts.timeout = defaultTestTimeout
	}

	cfg := Config{
		Port:               "0",
		RateLimit:          opts.rateLimit,
		RateLimitWindow:    time.Hour,
		RequestTimeout:     opts.timeout,
		AccessTokenSecret:  "test-access-secret",
		RefreshTokenSecret: "test-refresh-secret",
		UserServiceURL:     opts.userURL,
		StationServiceURL:  opts.stationURL,
		RequireAuth:        opts.requireAuth,
		CORSOrigins:        []string{"*"},
	}

	limiter, err := ratelimit.New(ratelimit.NewMemory(), ratelimit.Config{MaxRequests: cfg.RateLimit, Window: cfg.RateLimitWindow})
	if err != nil {
		t.Fatalf("Limiterの生成に失敗: %v", err)
	}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	tokens, err := token.NewService(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, token.NewMemoryStore(), token.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("トークンサービスの生成に失敗: %v", err)
	}
	routes, err := NewRouteTable(opts.routes, cfg.RequireAuth)
	if err != nil {
		t.Fatalf("ルート表の生成に失敗: %v", err)
	}

	var payments *payment.Client
	if opts.payment != nil {
		payments = paymenttest.NewClient(t, opts.payment)
	}

	s, err := NewServerWith(cfg, Dependencies{
		Limiter:  limiter,
		Tokens:   tokens,
		Payments: payments,
		Routes:   routes,
	})
	if err != nil {
		t.Fatalf("サーバーの生成に失敗: %v", err)
	}
	return &testServer{Server: s, clock: clock}
}

// defaultTestTimeout はテストで使う既定の制限時間。
const defaultTestTimeout = 5 * time.Second

func (s *testServer) do(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, username string) token.Pair {
	t.Helper()

	w := s.do(http.MethodPost, "/login", map[string]string{"username": username}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ログインのステータスコード = %d, want %d", w.Code, http.StatusOK)
	}
	var pair token.Pair
	if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil {
		t.Fatalf("ログイン応答のパースに失敗: %v", err)
	}
	return pair
}

func bearer(accessToken string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + accessToken}}
}

// decodeEnvelope はボディがエラーエンベロープ1件だけであることを確認して返す。
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) apierror.Error {
	t.Helper()

	dec := json.NewDecoder(bytes.NewReader(w.Body.Bytes()))
	var e apierror.Error
	if err := dec.Decode(&e); err != nil {
		t.Fatalf("エンベロープのパースに失敗: %v (body=%s)", err, w.Body.String())
	}
	if dec.More() {
		t.Fatalf("応答が複数書き込まれている: %s", w.Body.String())
	}
	return e
}

// TestHealth はヘルスチェックを検証する。
func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testServerOptions{rateLimit: 1, requireAuth: true})

	// レート制限の対象外であること
	for i := 0; i < 3; i++ {
		w := s.do(http.MethodGet, "/health", nil, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var resp map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if resp["status"] != "ok" || resp["service"] != "gateway" {
			t.Errorf("レスポンス = %v", resp)
		}
	}
}

// TestTokenEndpoints はログイン・再発行・ログアウトを検証する。
func TestTokenEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("usernameが無い場合は400を返すこと", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, testServerOptions{})
		w := s.do(http.MethodPost, "/login", map[string]string{}, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("リフレッシュトークンでアクセストークンを再発行できること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, testServerOptions{})
		pair := s.login(t, "alice")

		w := s.do(http.MethodPost, "/token", map[string]string{"token": pair.RefreshToken}, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var resp map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		subject, err := s.tokens.VerifyAccess(resp["accessToken"])
		if err != nil {
			t.Fatalf("再発行したアクセストークンの検証に失敗: %v", err)
		}
		if subject.Name != "alice" {
			t.Errorf("subject = %q, want %q", subject.Name, "alice")
		}
	})

	t.Run("トークンが無い場合は401、不正な場合は403を返すこと", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, testServerOptions{})
		if w := s.do(http.MethodPost, "/token", map[string]string{}, nil); w.Code != http.StatusUnauthorized {
			t.Errorf("トークン無し: ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if w := s.do(http.MethodPost, "/token", map[string]string{"token": "garbage"}, nil); w.Code != http.StatusForbidden {
			t.Errorf("不正なトークン: ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("ログアウト後のリフレッシュトークンは403になること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, testServerOptions{})
		pair := s.login(t, "alice")

		for i := 0; i < 2; i++ {
			w := s.do(http.MethodDelete, "/logout", map[string]string{"token": pair.RefreshToken}, nil)
			if w.Code != http.StatusNoContent {
				t.Fatalf("%d回目: ステータスコード = %d, want %d", i+1, w.Code, http.StatusNoContent)
			}
		}
		if w := s.do(http.MethodPost, "/token", map[string]string{"token": pair.RefreshToken}, nil); w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

// TestEndToEnd はログインから決済一覧取得、アクセストークンの期限切れまでを検証する。
func TestEndToEnd(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testServerOptions{
		requireAuth: true,
		payment: func(_ context.Context, _ payment.Method, _ []byte) ([]byte, error) {
			return []byte(`{"payments":[{"id":"p-1","amount":10}]}`), nil
		},
	})

	pair := s.login(t, "alice")
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("トークンが空: %+v", pair)
	}

	w := s.do(http.MethodGet, "/payment-service/getAll", nil, bearer(pair.AccessToken))
	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード = %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
	}
	var payments []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &payments); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if len(payments) != 1 || payments[0]["id"] != "p-1" {
		t.Errorf("payments = %v", payments)
	}

	t.Run("トークン無しでは401を返すこと", func(t *testing.T) {
		w := s.do(http.MethodGet, "/payment-service/getAll", nil, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if e := decodeEnvelope(t, w); e.Code != http.StatusUnauthorized {
			t.Errorf("code = %d, want %d", e.Code, http.StatusUnauthorized)
		}
	})

	t.Run("15分経過後は403を返すこと", func(t *testing.T) {
		s.clock.Advance(16 * time.Minute)

		w := s.do(http.MethodGet, "/payment-service/getAll", nil, bearer(pair.AccessToken))
		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

// TestRateLimitPipeline はGateway全体でのレート制限を検証する。
func TestRateLimitPipeline(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testServerOptions{rateLimit: 2})

	for i := 0; i < 2; i++ {
		if w := s.do(http.MethodGet, "/unknown", nil, nil); w.Code != http.StatusNotFound {
			t.Fatalf("%d件目: ステータスコード = %d, want %d", i+1, w.Code, http.StatusNotFound)
		}
	}

	w := s.do(http.MethodGet, "/unknown", nil, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	e := decodeEnvelope(t, w)
	if e.Status != "Error" || e.Message != "Rate limit exceeded." || e.Data != nil {
		t.Errorf("エンベロープ = %+v", e)
	}

	if err := s.limiter.Reset(context.Background()); err != nil {
		t.Fatalf("リセットに失敗: %v", err)
	}
	if w := s.do(http.MethodGet, "/unknown", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("リセット後: ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// TestNotFound は一致するルートが無い場合のエンベロープを検証する。
func TestNotFound(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testServerOptions{})
	w := s.do(http.MethodGet, "/no-such-service/x", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
	}
	e := decodeEnvelope(t, w)
	if e.Message != "Route not found." {
		t.Errorf("message = %q", e.Message)
	}
}

func TestNewServerWithRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewServerWith(Config{}, Dependencies{}); err == nil {
		t.Error("依存が無い場合にエラーにならない")
	}
}

// TestHTTPServerTimeouts はボディの読み取りにもリクエストの制限時間がかかることを検証する。
func TestHTTPServerTimeouts(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testServerOptions{timeout: 250 * time.Millisecond})
	srv := s.httpServer()
	if srv.ReadTimeout != 250*time.Millisecond {
		t.Errorf("ReadTimeout = %s, want %s", srv.ReadTimeout, 250*time.Millisecond)
	}
	if srv.ReadHeaderTimeout <= 0 {
		t.Errorf("ReadHeaderTimeout = %s, want > 0", srv.ReadHeaderTimeout)
	}
	if srv.Handler != s.Handler() {
		t.Error("Handlerがルーターでない")
	}
}
