package tracing

import (
	"context"
	"net/http"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// gRPC attribute keys
const (
	AttrRPCSystem     = "rpc.system"
	AttrRPCMethod     = "rpc.method"
	AttrRPCStatusCode = "rpc.grpc.status_code"
)

// UnaryServerInterceptor traces unary calls as server spans continuing the
// caller's traceparent metadata.
func UnaryServerInterceptor(client *Client) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		if !client.Enabled() {
			return handler(ctx, req)
		}

		ctx, span := startServerRPC(ctx, client, info.FullMethod)
		defer finishServerRPC(span, &err)

		return handler(ctx, req)
	}
}

// StreamServerInterceptor traces streaming calls. The handler sees a stream
// whose Context carries the span.
func StreamServerInterceptor(client *Client) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		if !client.Enabled() {
			return handler(srv, ss)
		}

		ctx, span := startServerRPC(ss.Context(), client, info.FullMethod)
		defer finishServerRPC(span, &err)

		return handler(srv, &tracedStream{ServerStream: ss, ctx: ctx})
	}
}

// UnaryClientInterceptor runs outgoing unary calls in client spans and adds
// traceparent to the outgoing metadata.
func UnaryClientInterceptor(client *Client) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if !client.Enabled() {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		ctx, span := client.start(ctx, method, []SpanOption{
			WithKind(KindClient),
			WithAttributes(rpcAttributes(method)),
		})
		defer span.Finish()

		ctx = metadata.AppendToOutgoingContext(ctx, TraceparentHeader,
			FormatTraceparent(span.TraceID(), span.SpanID()))

		err := invoker(ctx, method, req, reply, cc, opts...)
		recordRPCStatus(span, err)
		return err
	}
}

func startServerRPC(ctx context.Context, client *Client, method string) (context.Context, *Span) {
	opts := []SpanOption{WithKind(KindServer), WithAttributes(rpcAttributes(method))}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(TraceparentHeader); len(values) > 0 {
			opts = append(opts, remoteParent(ParseTraceparent(values[0]))...)
		}
	}

	return client.StartSpan(ctx, method, opts...)
}

// finishServerRPC records the outcome (including a panic, which it
// re-raises) and ends the span.
func finishServerRPC(span *Span, err *error) {
	if r := recover(); r != nil {
		span.recordPanic(r)
		span.Finish()
		panic(r)
	}
	recordRPCStatus(span, *err)
	span.Finish()
}

func recordRPCStatus(span *Span, err error) {
	code := status.Code(err)
	span.SetAttribute(AttrRPCStatusCode, strconv.Itoa(int(code)))
	if err == nil {
		return
	}
	span.SetStatus(httpStatus(code))
	span.RecordErrorMessage(code.String() + ": " + status.Convert(err).Message())
}

func rpcAttributes(method string) map[string]string {
	return map[string]string{
		AttrRPCSystem: "grpc",
		AttrRPCMethod: method,
	}
}

// httpStatus maps a gRPC code onto the span's HTTP-style status
func httpStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Canceled:
		return 499
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type tracedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context {
	return s.ctx
}
