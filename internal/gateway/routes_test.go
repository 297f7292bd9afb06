package gateway

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRouteTableMatch(t *testing.T) {
	t.Parallel()

	table, err := NewRouteTable([]Route{
		{Prefix: "/users-service/", Target: "http://users:8080"},
		{Prefix: "/users-service/admin", Target: "http://admin:8080"},
		{Prefix: "/stations-service", Target: "http://stations:8080/api"},
	}, true)
	if err != nil {
		t.Fatalf("ルート表の生成に失敗: %v", err)
	}

	tests := []struct {
		name       string
		path       string
		wantOK     bool
		wantPrefix string
		wantRest   string
	}{
		{name: "接頭辞の後ろが残る", path: "/users-service/users/1", wantOK: true, wantPrefix: "/users-service", wantRest: "/users/1"},
		{name: "完全一致はルートパス", path: "/users-service", wantOK: true, wantPrefix: "/users-service", wantRest: "/"},
		{name: "末尾スラッシュは保持", path: "/users-service/", wantOK: true, wantPrefix: "/users-service", wantRest: "/"},
		{name: "長い接頭辞が優先", path: "/users-service/admin/x", wantOK: true, wantPrefix: "/users-service/admin", wantRest: "/x"},
		{name: "セグメント途中は一致しない", path: "/users-serviceX/a", wantOK: false},
		{name: "未登録", path: "/payment-service/getAll", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			route, rest, ok := table.match(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if route.prefix != tt.wantPrefix || rest != tt.wantRest {
				t.Errorf("Match(%q) = (%q, %q), want (%q, %q)", tt.path, route.prefix, rest, tt.wantPrefix, tt.wantRest)
			}
			if !route.auth {
				t.Error("既定の認証要否が適用されていない")
			}
		})
	}

	route, _, _ := table.match("/stations-service/station")
	if got := route.client.URL("/station", "").String(); got != "http://stations:8080/api/station" {
		t.Errorf("転送先URL = %q", got)
	}
}

func TestRouteTableRoot(t *testing.T) {
	t.Parallel()

	table, err := NewRouteTable([]Route{{Prefix: "/", Target: "http://fallback"}}, false)
	if err != nil {
		t.Fatalf("ルート表の生成に失敗: %v", err)
	}
	_, rest, ok := table.match("/anything/else")
	if !ok || rest != "/anything/else" {
		t.Errorf("Match = (%q, %v)", rest, ok)
	}
}

func TestNewRouteTableErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		routes []Route
	}{
		{name: "接頭辞がスラッシュで始まらない", routes: []Route{{Prefix: "users", Target: "http://users"}}},
		{name: "接頭辞が空", routes: []Route{{Prefix: "", Target: "http://users"}}},
		{name: "接頭辞が重複", routes: []Route{{Prefix: "/a", Target: "http://a"}, {Prefix: "/a/", Target: "http://b"}}},
		{name: "転送先が不正", routes: []Route{{Prefix: "/a", Target: "ftp://a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := NewRouteTable(tt.routes, true); err == nil {
				t.Error("エラーにならない")
			}
		})
	}
}

func TestLoadRoutes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "routes.yaml")
	data := `routes:
  - route: /users-service
    target: http://users:8080
  - route: /public
    target: http://public:8080
    auth: false
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("ファイルの書き込みに失敗: %v", err)
	}

	routes, err := LoadRoutes(path)
	if err != nil {
		t.Fatalf("LoadRoutes() error = %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("ルート数 = %d, want 2", len(routes))
	}
	if routes[0].Prefix != "/users-service" || routes[0].Target != "http://users:8080" || routes[0].Auth != nil {
		t.Errorf("routes[0] = %+v", routes[0])
	}
	if routes[1].Auth == nil || *routes[1].Auth {
		t.Errorf("routes[1].Auth = %v, want false", routes[1].Auth)
	}

	table, err := NewRouteTable(routes, true)
	if err != nil {
		t.Fatalf("ルート表の生成に失敗: %v", err)
	}
	if route, _, _ := table.match("/public/x"); route.auth {
		t.Error("auth: false が反映されていない")
	}
	if route, _, _ := table.match("/users-service/x"); !route.auth {
		t.Error("既定の認証要否が反映されていない")
	}
}

func TestLoadRoutesErrors(t *testing.T) {
	t.Parallel()

	if _, err := LoadRoutes(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("存在しないファイルでエラーにならない")
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("routes: [\n"), 0o600); err != nil {
		t.Fatalf("ファイルの書き込みに失敗: %v", err)
	}
	if _, err := LoadRoutes(path); err == nil {
		t.Error("不正なYAMLでエラーにならない")
	}
}

func TestDefaultRoutes(t *testing.T) {
	t.Parallel()

	routes := defaultRoutes(Config{
		UserServiceURL:        "http://users",
		StationServiceURL:     "http://stations",
		PaymentServiceHTTPURL: "http://payments",
	})
	want := map[string]string{
		"/users-service":    "http://users",
		"/stations-service": "http://stations",
		"/payment-service":  "http://payments",
	}
	if len(routes) != len(want) {
		t.Fatalf("ルート数 = %d, want %d", len(routes), len(want))
	}
	for _, r := range routes {
		if want[r.Prefix] != r.Target {
			t.Errorf("%s -> %s", r.Prefix, r.Target)
		}
	}
}
