package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zcw199604/evolution-bridge/internal/config"
)

// newTestServer 装配一个指向假网关的完整 Server，请求直接打到路由上。
func newTestServer(t *testing.T, upstream http.Handler) *Server {
	t.Helper()

	gw := httptest.NewServer(upstream)
	t.Cleanup(gw.Close)

	verify := true
	cfg := config.Config{
		Server: config.ServerConfig{
			ListenAddr:        ":0",
			HTTPClientTimeout: config.Duration(5 * time.Second),
			ReadHeaderTimeout: config.Duration(5 * time.Second),
		},
		Storage: config.StorageConfig{DataDir: t.TempDir()},
		Refresh: config.RefreshConfig{ConnectionInterval: config.Duration(time.Hour)},
		Instances: []config.InstanceConfig{
			{
				ID:         "main",
				ServerURL:  gw.URL,
				InstanceID: "myinstance",
				APIKey:     "secret",
				VerifySSL:  &verify,
			},
		},
	}

	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_SendText(t *testing.T) {
	t.Parallel()

	var gotPath, gotKey string
	var gotBody map[string]interface{}
	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"key": {"id": "msg-1"}}`))
	}))

	rec := doRequest(t, s, http.MethodPost, "/api/instances/main/send/text",
		`{"phone_number": "5511999999999", "message": "你好"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	if gotPath != "/message/sendText/myinstance" {
		t.Fatalf("upstream path = %q, want %q", gotPath, "/message/sendText/myinstance")
	}
	if gotKey != "secret" {
		t.Fatalf("apikey = %q, want %q", gotKey, "secret")
	}
	if gotBody["number"] != "5511999999999" {
		t.Fatalf(`body["number"] = %v, want "5511999999999"`, gotBody["number"])
	}
	if gotBody["text"] != "你好" {
		t.Fatalf(`body["text"] = %v, want "你好"`, gotBody["text"])
	}
	if gotBody["linkPreview"] != true {
		t.Fatalf(`body["linkPreview"] = %v, want true`, gotBody["linkPreview"])
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if _, ok := resp["key"]; !ok {
		t.Fatalf("响应缺少 key 字段: %v", resp)
	}
}

func TestServer_SendText_ValidationError(t *testing.T) {
	t.Parallel()

	hits := 0
	s := newTestServer(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		hits++
	}))

	rec := doRequest(t, s, http.MethodPost, "/api/instances/main/send/text",
		`{"phone_number": "5511999999999", "group_id": "123@g.us", "message": "hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d, body: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
	if hits != 0 {
		t.Fatalf("校验失败不应访问上游，hits = %d", hits)
	}
}

func TestServer_UnknownInstance(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	rec := doRequest(t, s, http.MethodPost, "/api/instances/nope/send/text",
		`{"phone_number": "5511999999999", "message": "hi"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestServer_UpstreamAuthError(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message": "Unauthorized"}`, http.StatusUnauthorized)
	}))

	rec := doRequest(t, s, http.MethodPost, "/api/instances/main/send/text",
		`{"phone_number": "5511999999999", "message": "hi"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d, body: %s", rec.Code, http.StatusBadGateway, rec.Body.String())
	}
}

func TestServer_RefreshGroupsAndState(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/group/fetchAllGroups/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": "111@g.us", "subject": "家庭群"}]`))
	}))

	rec := doRequest(t, s, http.MethodPost, "/api/instances/main/refresh/groups", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, want %d, body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var refreshResp struct {
		Instance    string `json:"instance"`
		GroupsCount int    `json:"groups_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &refreshResp); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if refreshResp.Instance != "main" || refreshResp.GroupsCount != 1 {
		t.Fatalf("refresh 响应 = %+v, want {main 1}", refreshResp)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/instances/main/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("state status = %d, want %d", rec.Code, http.StatusOK)
	}
	var doc struct {
		Groups            []map[string]interface{} `json:"groups"`
		GroupsCount       int                      `json:"groups_count"`
		GroupsLastUpdated *string                  `json:"groups_last_updated"`
		ConnectionState   string                   `json:"connection_state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("状态响应解析失败: %v", err)
	}
	if doc.GroupsCount != 1 || len(doc.Groups) != 1 {
		t.Fatalf("状态文档 = %s", rec.Body.String())
	}
	if doc.GroupsLastUpdated == nil {
		t.Fatalf("groups_last_updated 应已写入")
	}
	if doc.ConnectionState != "unknown" {
		t.Fatalf("connection_state = %q, want %q", doc.ConnectionState, "unknown")
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/instances/main/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want %d", rec.Code, http.StatusOK)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("重置响应解析失败: %v", err)
	}
	if doc.GroupsCount != 0 || len(doc.Groups) != 0 || doc.GroupsLastUpdated != nil {
		t.Fatalf("重置后文档 = %s", rec.Body.String())
	}
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "ok" {
		t.Fatalf("body = %q, want %q", got, "ok")
	}
}
