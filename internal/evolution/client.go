package evolution

// client.go 实现网关客户端：构建带鉴权的请求、按固定超时派发、分类响应与错误。
// 不做重试；单次失败立即上报调用方。
import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultTimeout 为未注入 http.Client 时的请求超时。
const DefaultTimeout = 30 * time.Second

// ClientConfig 为单个网关实例的凭据，构建后不可变。
type ClientConfig struct {
	ServerURL          string
	InstanceID         string
	APIKey             string
	InsecureSkipVerify bool
}

// Client 持有一个网关实例的长连接会话。可并发使用。
type Client struct {
	cfg        ClientConfig
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg ClientConfig, httpClient *http.Client) (*Client, error) {
	baseURL, err := normalizeBaseURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.InstanceID) == "" {
		return nil, errors.New("evolution instance_id 不能为空")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("evolution api_key 不能为空")
	}

	c := &Client{
		cfg:     cfg,
		baseURL: baseURL,
	}

	if httpClient != nil {
		c.httpClient = httpClient
	} else {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	if cfg.InsecureSkipVerify {
		c.httpClient = cloneHTTPClientWithInsecureSkipVerify(c.httpClient)
	}

	return c, nil
}

// InstanceID 返回该客户端绑定的实例标识。
func (c *Client) InstanceID() string {
	return c.cfg.InstanceID
}

// Execute 解析命令并执行请求。成功时返回解码后的 JSON 对象；
// 响应体不是 JSON 对象时回退为 {"status": <码>, "message": <原文>}。
func (c *Client) Execute(ctx context.Context, cmd Command) (map[string]interface{}, error) {
	req, err := cmd.Request()
	if err != nil {
		return nil, err
	}

	body, statusCode, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		return map[string]interface{}{
			"status":  statusCode,
			"message": string(body),
		}, nil
	}
	return out, nil
}

// FetchAllGroups 拉取实例加入的全部群组。响应体不是序列时返回空列表而非报错。
func (c *Client) FetchAllGroups(ctx context.Context, getParticipants bool) ([]Group, error) {
	req, err := FetchGroupsCommand{GetParticipants: getParticipants}.Request()
	if err != nil {
		return nil, err
	}

	body, _, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	var groups []Group
	if err := json.Unmarshal(body, &groups); err != nil {
		slog.Debug("evolution fetchAllGroups 响应不是序列，按空列表处理",
			"instance_id", c.cfg.InstanceID,
			"body_bytes", len(body),
		)
		return []Group{}, nil
	}
	return groups, nil
}

// ConnectionState 查询实例连接状态。
func (c *Client) ConnectionState(ctx context.Context) (ConnectionState, error) {
	req, err := ConnectionStateCommand{}.Request()
	if err != nil {
		return ConnectionState{}, err
	}

	body, _, err := c.do(ctx, req)
	if err != nil {
		return ConnectionState{}, err
	}

	var out ConnectionState
	if err := json.Unmarshal(body, &out); err != nil {
		return ConnectionState{}, errors.Wrap(err, "evolution connectionState 解析响应失败")
	}
	return out, nil
}

// CheckConnection 判断实例是否已连接（state == open，大小写不敏感）；任何错误视为未连接。
func (c *Client) CheckConnection(ctx context.Context) bool {
	cs, err := c.ConnectionState(ctx)
	if err != nil {
		return false
	}
	return strings.EqualFold(cs.Instance.State, "open")
}

// InstanceInfo 拉取连接状态并派生实例概要信息。
func (c *Client) InstanceInfo(ctx context.Context) (InstanceInfo, error) {
	cs, err := c.ConnectionState(ctx)
	if err != nil {
		return InstanceInfo{}, err
	}
	return newInstanceInfo(cs), nil
}

// do 执行请求并分类响应。返回 2xx 的原始响应体与状态码。
func (c *Client) do(ctx context.Context, r Request) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	u := c.baseURL + r.Path + "/" + url.PathEscape(c.cfg.InstanceID)
	if len(r.Query) > 0 {
		u = u + "?" + r.Query.Encode()
	}

	var reqBody io.Reader
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return nil, 0, errors.Wrap(err, "evolution 编码 payload 失败")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u, reqBody)
	if err != nil {
		return nil, 0, errors.Wrap(err, "evolution 创建请求失败")
	}
	req.Header.Set("apikey", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("evolution HTTP 请求失败",
			"error", err,
			"method", r.Method,
			"path", r.Path,
			"instance_id", c.cfg.InstanceID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, 0, markConnection(err, "evolution 请求网关失败")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, markConnection(err, "evolution 读取响应失败")
	}

	slog.Debug("evolution 请求完成",
		"method", r.Method,
		"path", r.Path,
		"instance_id", c.cfg.InstanceID,
		"status_code", res.StatusCode,
		"response_bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if res.StatusCode >= 400 {
		return nil, res.StatusCode, classifyStatus(res.StatusCode, string(body))
	}
	return body, res.StatusCode, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("evolution server_url 不能为空")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, "evolution server_url 不合法")
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("evolution server_url 不合法（缺少 scheme/host）")
	}
	u.Fragment = ""
	u.RawQuery = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String(), nil
}

func cloneHTTPClientWithInsecureSkipVerify(in *http.Client) *http.Client {
	timeout := DefaultTimeout
	if in != nil && in.Timeout > 0 {
		timeout = in.Timeout
	}

	var transport *http.Transport
	if in != nil && in.Transport != nil {
		if t, ok := in.Transport.(*http.Transport); ok {
			transport = t.Clone()
		}
	}
	if transport == nil {
		if t, ok := http.DefaultTransport.(*http.Transport); ok {
			transport = t.Clone()
		} else {
			transport = &http.Transport{}
		}
	}
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	transport.TLSClientConfig.InsecureSkipVerify = true

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
