package gateway

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/nao1215/stationgate/pkg/httpclient"
)

// Route はルート表の1エントリの定義。
type Route struct {
	// Prefix はURLパスの接頭辞（例: "/users-service"）。
	Prefix string `yaml:"route"`
	// Target は転送先のベースURL。
	Target string `yaml:"target"`
	// Auth はアクセストークンを要求するか。省略時はConfig.RequireAuthに従う。
	Auth *bool `yaml:"auth,omitempty"`
}

// routesFile はルート表YAMLファイルの形式。
//
//	routes:
//	  - route: /users-service
//	    target: http://users:8080
//	    auth: true
type routesFile struct {
	Routes []Route `yaml:"routes"`
}

// LoadRoutes はYAMLファイルからルート定義を読み込む。
func LoadRoutes(path string) ([]Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ルート表の読み込みに失敗: %w", err)
	}
	var f routesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ルート表の解析に失敗: %w", err)
	}
	return f.Routes, nil
}

// defaultRoutes は各サービスURLからルート定義を組み立てる。
func defaultRoutes(cfg Config) []Route {
	var routes []Route
	if cfg.UserServiceURL != "" {
		routes = append(routes, Route{Prefix: "/users-service", Target: cfg.UserServiceURL})
	}
	if cfg.StationServiceURL != "" {
		routes = append(routes, Route{Prefix: "/stations-service", Target: cfg.StationServiceURL})
	}
	if cfg.PaymentServiceHTTPURL != "" {
		routes = append(routes, Route{Prefix: "/payment-service", Target: cfg.PaymentServiceHTTPURL})
	}
	return routes
}

// routeEntry は読み込み済みの不変なルート。
type routeEntry struct {
	prefix string
	auth   bool
	client *httpclient.Client
}

// RouteTable は起動時に確定する接頭辞ルーティング表。構築後は変更しない。
//
// 複数の接頭辞が一致する場合は最も長い接頭辞を優先する。
// 接頭辞はパスのセグメント境界でのみ一致する（"/users" は "/users/1" に一致し "/usersX" には一致しない）。
type RouteTable struct {
	entries []routeEntry
}

// NewRouteTable はルート定義からルート表を構築する。
// Authが省略されたルートはrequireAuthに従う。
func NewRouteTable(routes []Route, requireAuth bool) (*RouteTable, error) {
	seen := make(map[string]struct{}, len(routes))
	entries := make([]routeEntry, 0, len(routes))
	for _, r := range routes {
		prefix, err := normalizePrefix(r.Prefix)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[prefix]; dup {
			return nil, fmt.Errorf("接頭辞が重複しています: %s", prefix)
		}
		seen[prefix] = struct{}{}

		client, err := httpclient.New(r.Target)
		if err != nil {
			return nil, fmt.Errorf("ルート %s の転送先が不正です: %w", prefix, err)
		}

		auth := requireAuth
		if r.Auth != nil {
			auth = *r.Auth
		}
		entries = append(entries, routeEntry{prefix: prefix, auth: auth, client: client})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return len(entries[i].prefix) > len(entries[j].prefix)
	})
	return &RouteTable{entries: entries}, nil
}

// match はパスに一致するルートと、接頭辞を除いた残りのパスを返す。
func (t *RouteTable) match(path string) (routeEntry, string, bool) {
	for _, e := range t.entries {
		if e.prefix == "/" {
			return e, path, true
		}
		if path == e.prefix {
			return e, "/", true
		}
		if rest, ok := strings.CutPrefix(path, e.prefix+"/"); ok {
			return e, "/" + rest, true
		}
	}
	return routeEntry{}, "", false
}

// Len は登録されているルート数を返す。
func (t *RouteTable) Len() int {
	return len(t.entries)
}

func normalizePrefix(prefix string) (string, error) {
	if prefix == "" || prefix[0] != '/' {
		return "", errors.New("接頭辞は / で始めてください: " + prefix)
	}
	if prefix != "/" {
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" {
			prefix = "/"
		}
	}
	return prefix, nil
}
