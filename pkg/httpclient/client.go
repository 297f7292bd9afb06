package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// hopByHopHeaders はプロキシで転送してはならないヘッダー。
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Client は1つのバックエンドサービス用のHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL *url.URL
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithTimeout はコンテキストとは別にクライアント全体のタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient は内部のHTTPクライアントを差し替える。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New は新しいバックエンド用HTTPクライアントを生成する。
// baseURLにはスキームとホストを含むURL（例: "http://users:8080"）を指定する。
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ベースURLの解析に失敗: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("ベースURLが不正です: %q", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""

	c := &Client{
		httpClient: &http.Client{
			// リダイレクトは呼び出し元にそのまま返す
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: u,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL はベースURLの文字列表現を返す。
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// URL はベースURLにpathとrawQueryを連結したURLを返す。
func (c *Client) URL(path, rawQuery string) *url.URL {
	u := *c.baseURL
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	u.Path = c.baseURL.Path + path
	u.RawPath = ""
	u.RawQuery = rawQuery
	return &u
}

// Forward はリクエストをバックエンドに転送し、レスポンスをそのまま返す。
// Hostヘッダーはバックエンドのホストに書き換え、ホップバイホップヘッダーは除去する。
// 呼び出し元はレスポンスボディを閉じる必要がある。
func (c *Client) Forward(ctx context.Context, method, path, rawQuery string, header http.Header, body io.Reader) (*http.Response, error) {
	target := c.URL(path, rawQuery)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("プロキシリクエストの作成に失敗: %w", err)
	}
	req.Header = header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	RemoveHopByHop(req.Header)
	req.Host = target.Host
	if cl := header.Get("Content-Length"); cl != "" && body != nil && body != http.NoBody {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			req.ContentLength = n
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("バックエンドへの送信に失敗: url=%s: %w", target, err)
	}
	return resp, nil
}

// Response はボディを読み切ったレスポンス。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Header はレスポンスヘッダー。
	Header http.Header
	// Body はレスポンスボディ。
	Body []byte
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// ステータスコードに関わらずレスポンスを返す。2xx以外の判断は呼び出し元が行う。
func (c *Client) PostJSON(ctx context.Context, path string, body []byte, header http.Header) (*Response, error) {
	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set("Content-Type", "application/json")
	h.Del("Content-Length")

	resp, err := c.Forward(ctx, http.MethodPost, path, "", h, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
}

// RemoveHopByHop はConnectionヘッダーで指定されたものを含むホップバイホップヘッダーを除去する。
func RemoveHopByHop(h http.Header) {
	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}
