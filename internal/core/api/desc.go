package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "rulekeeper.v1.RuleEngine"

// Method names of the RuleEngine service.
const (
	MethodFindAndExecuteRules = "FindAndExecuteRules"
	MethodTestRule            = "TestRule"
	MethodGetActiveConfig     = "GetActiveConfig"
	MethodGetConfigItems      = "GetConfigItems"
	MethodListRules           = "ListRules"
)

// RuleEngineServer is the server API for the RuleEngine service.
type RuleEngineServer interface {
	FindAndExecuteRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TestRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetActiveConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConfigItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterRuleEngineServer registers srv on s.
func RegisterRuleEngineServer(s grpc.ServiceRegistrar, srv RuleEngineServer) {
	s.RegisterService(&RuleEngine_ServiceDesc, srv)
}

type unaryMethod[S any] func(S, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a Struct-in, Struct-out method of server type S to a
// grpc.MethodHandler for fullMethod.
func unaryHandler[S any](fullMethod string, call unaryMethod[S]) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(S)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(server, ctx, req.(*structpb.Struct))
		})
	}
}

func engineMethod(name string, call unaryMethod[RuleEngineServer]) grpc.MethodDesc {
	return grpc.MethodDesc{MethodName: name, Handler: unaryHandler(FullMethod(name), call)}
}

// RuleEngine_ServiceDesc is the grpc.ServiceDesc for the RuleEngine service.
var RuleEngine_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RuleEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		engineMethod(MethodFindAndExecuteRules, RuleEngineServer.FindAndExecuteRules),
		engineMethod(MethodTestRule, RuleEngineServer.TestRule),
		engineMethod(MethodGetActiveConfig, RuleEngineServer.GetActiveConfig),
		engineMethod(MethodGetConfigItems, RuleEngineServer.GetConfigItems),
		engineMethod(MethodListRules, RuleEngineServer.ListRules),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rulekeeper/v1/rule_engine",
}

// FullMethod returns "/rulekeeper.v1.RuleEngine/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Client calls one Struct-based service over any client connection.
type Client struct {
	cc      grpc.ClientConnInterface
	service string
}

// NewClient returns a client for the RuleEngine service.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc, service: ServiceName}
}

// NewAdminClient returns a client for the RuleAdmin service.
func NewAdminClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc, service: AdminServiceName}
}

// Call invokes method with req.
func (c *Client) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+c.service+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
