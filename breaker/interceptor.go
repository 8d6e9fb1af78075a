package breaker

import (
	"context"

	"google.golang.org/grpc"

	"github.com/codingjam/bridge-mcp/clog"
)

// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器
// 为每个 gRPC 调用提供熔断保护
//
// 使用示例:
//
//	mgr, _ := breaker.New(cfg, breaker.WithLogger(logger))
//	conn, _ := grpc.NewClient(
//		"localhost:9001",
//		grpc.WithUnaryInterceptor(mgr.UnaryClientInterceptor(breaker.WithMethodLevelKey())),
//	)
func (m *manager) UnaryClientInterceptor(opts ...InterceptorOption) grpc.UnaryClientInterceptor {
	cfg := applyInterceptorOptions(opts...)

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		key := cfg.keyFunc(ctx, method, cc)

		m.logger.Debug("unary call with circuit breaker",
			clog.String("key", key),
			clog.String("method", method))

		_, err := m.Execute(ctx, key, func(ctx context.Context) (any, error) {
			return nil, invoker(ctx, method, req, reply, cc, callOpts...)
		})
		return err
	}
}

// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器
// 熔断判定作用于流的建立，流建立后的消息收发不再经过熔断器
func (m *manager) StreamClientInterceptor(opts ...InterceptorOption) grpc.StreamClientInterceptor {
	cfg := applyInterceptorOptions(opts...)

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		key := cfg.keyFunc(ctx, method, cc)

		m.logger.Debug("stream call with circuit breaker",
			clog.String("key", key),
			clog.String("method", method))

		result, err := m.Execute(ctx, key, func(ctx context.Context) (any, error) {
			return streamer(ctx, desc, cc, method, callOpts...)
		})
		if err != nil {
			return nil, err
		}
		stream, _ := result.(grpc.ClientStream)
		return stream, nil
	}
}
