package evolution

// errors.go 定义 Evolution API 错误分类：连接失败、鉴权失败、实例不存在、
// 其他非 2xx 响应与命令参数校验失败。
import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrAuth 表示网关返回 401（API Key 无效）。
	ErrAuth = errors.New("invalid credentials")
	// ErrNotFound 表示网关返回 404（实例不存在）。
	ErrNotFound = errors.New("instance not found")
	// ErrConnection 表示传输层失败（超时、DNS/TCP 失败），用 errors.Is 判断。
	ErrConnection = errors.New("connection error")
)

// APIError 表示除 401/404 外的非 2xx 响应，保留原始状态码与响应体。
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Body)
}

// ValidationError 表示命令参数不合法（例如收件人缺失或重复），
// 在发起任何网络请求之前返回。
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Reason
}

func newValidationError(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// markConnection 将底层传输错误包装为连接错误，保留原因链。
func markConnection(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), ErrConnection)
}

// classifyStatus 实现状态码到错误类别的全量映射：
// 401 -> ErrAuth，404 -> ErrNotFound，其余 >=400 -> APIError（原样携带响应体）。
func classifyStatus(statusCode int, body string) error {
	switch {
	case statusCode == 401:
		return ErrAuth
	case statusCode == 404:
		return ErrNotFound
	default:
		return &APIError{StatusCode: statusCode, Body: body}
	}
}
