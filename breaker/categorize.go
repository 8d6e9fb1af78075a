package breaker

import (
	"context"
	"fmt"
	"net"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/codingjam/bridge-mcp/xerrors"
)

// 错误类别常量
// 类别是策略数据：配置中的 trip_on / ignore 列表引用这些名字
const (
	// CategoryClientError 客户端侧错误 (4xx)，默认不计入熔断
	CategoryClientError = "ClientError"
	// CategoryServerError 服务端侧错误 (5xx)
	CategoryServerError = "ServerError"
	// CategoryTimeout 调用超时
	CategoryTimeout = "TimeoutError"
	// CategoryConnection 连接失败
	CategoryConnection = "ConnectionError"
	// CategoryCancelled 调用方主动取消，不作为下游健康信号
	CategoryCancelled = "CancelledError"
	// CategoryMCPConnection MCP 会话连接错误
	CategoryMCPConnection = "MCPConnectionError"
	// CategoryMCPSession MCP 会话协议错误
	CategoryMCPSession = "MCPSessionError"
	// CategoryMCPTransport MCP 传输层错误
	CategoryMCPTransport = "MCPTransportError"
)

// Classifier 错误分类函数
// 返回错误所属的类别名；熔断器据此与 trip_on / ignore 列表匹配。
// 对 nil 返回空字符串。
type Classifier func(err error) string

// DefaultClassifier 默认错误分类实现
//
// 分类顺序：
//  1. context 取消 / 超时哨兵
//  2. gRPC status code
//  3. 显式 StatusCode() 属性：4xx 归为客户端错误，其余归为服务端错误
//  4. net.Error 超时
//  5. 错误类型名与消息中的关键词（timeout / connection / mcp）
//  6. 兜底：错误的具体类型名，保留给运维按类型名配置策略的能力
func DefaultClassifier(err error) string {
	if err == nil {
		return ""
	}

	if xerrors.Is(err, context.Canceled) {
		return CategoryCancelled
	}
	if xerrors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}

	if s, ok := status.FromError(err); ok && s.Code() != codes.OK {
		return categorizeGRPCCode(s.Code())
	}

	// 带状态码属性的错误（网关 HTTP/MCP 错误类型实现该接口）
	var coder interface{ StatusCode() int }
	if xerrors.As(err, &coder) {
		if code := coder.StatusCode(); code >= 400 && code < 500 {
			return CategoryClientError
		}
		return CategoryServerError
	}

	var netErr net.Error
	if xerrors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}

	typeName := fmt.Sprintf("%T", err)
	lowerType := strings.ToLower(typeName)
	lowerMsg := strings.ToLower(err.Error())

	if strings.Contains(lowerType, "timeout") || strings.Contains(lowerMsg, "timeout") ||
		strings.Contains(lowerMsg, "deadline exceeded") {
		return CategoryTimeout
	}

	if strings.Contains(lowerType, "mcp") || strings.Contains(lowerMsg, "mcp") {
		switch {
		case strings.Contains(lowerMsg, "connection") || strings.Contains(lowerType, "connection"):
			return CategoryMCPConnection
		case strings.Contains(lowerMsg, "session") || strings.Contains(lowerType, "session"):
			return CategoryMCPSession
		case strings.Contains(lowerMsg, "transport") || strings.Contains(lowerType, "transport"):
			return CategoryMCPTransport
		}
	}

	if strings.Contains(lowerType, "connection") || strings.Contains(lowerMsg, "connection refused") ||
		strings.Contains(lowerMsg, "connection reset") || strings.Contains(lowerMsg, "broken pipe") {
		return CategoryConnection
	}

	return strings.TrimPrefix(typeName, "*")
}

// categorizeGRPCCode 把 gRPC 状态码映射到错误类别
func categorizeGRPCCode(code codes.Code) string {
	switch code {
	case codes.Canceled:
		return CategoryCancelled
	case codes.DeadlineExceeded:
		return CategoryTimeout
	case codes.Unavailable:
		return CategoryConnection
	case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists,
		codes.PermissionDenied, codes.Unauthenticated, codes.FailedPrecondition,
		codes.OutOfRange, codes.ResourceExhausted:
		return CategoryClientError
	default:
		return CategoryServerError
	}
}
