// ABOUTME: bdi.AgentRequests service: cross-agent belief and desire requests
// ABOUTME: Server interface, descriptor, registration and client

package wire

import (
	"context"

	"google.golang.org/grpc"
)

// AgentRequestsServiceName is the fully qualified service name.
const AgentRequestsServiceName = "bdi.AgentRequests"

// Full method names.
const (
	AgentRequests_IsAcceptedOperation_FullMethodName = "/bdi.AgentRequests/IsAcceptedOperation"
	AgentRequests_CheckBelief_FullMethodName         = "/bdi.AgentRequests/CheckBelief"
	AgentRequests_AddBelief_FullMethodName           = "/bdi.AgentRequests/AddBelief"
	AgentRequests_DelBelief_FullMethodName           = "/bdi.AgentRequests/DelBelief"
	AgentRequests_CheckDesire_FullMethodName         = "/bdi.AgentRequests/CheckDesire"
	AgentRequests_AddDesire_FullMethodName           = "/bdi.AgentRequests/AddDesire"
	AgentRequests_DelDesire_FullMethodName           = "/bdi.AgentRequests/DelDesire"
)

// AgentRequestsServer is implemented by the multi-agent request handler.
type AgentRequestsServer interface {
	IsAcceptedOperation(context.Context, *IsAcceptedOperationRequest) (*IsAcceptedOperationResponse, error)
	CheckBelief(context.Context, *BeliefRequest) (*CheckResponse, error)
	AddBelief(context.Context, *BeliefRequest) (*UpdateResponse, error)
	DelBelief(context.Context, *BeliefRequest) (*UpdateResponse, error)
	CheckDesire(context.Context, *DesireRequest) (*CheckResponse, error)
	AddDesire(context.Context, *DesireRequest) (*UpdateResponse, error)
	DelDesire(context.Context, *DesireRequest) (*UpdateResponse, error)
}

// RegisterAgentRequestsServer registers srv on s.
func RegisterAgentRequestsServer(s grpc.ServiceRegistrar, srv AgentRequestsServer) {
	s.RegisterService(&AgentRequests_ServiceDesc, srv)
}

// AgentRequests_ServiceDesc is the grpc.ServiceDesc for bdi.AgentRequests.
var AgentRequests_ServiceDesc = grpc.ServiceDesc{
	ServiceName: AgentRequestsServiceName,
	HandlerType: (*AgentRequestsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "IsAcceptedOperation",
			Handler: unaryHandler(AgentRequests_IsAcceptedOperation_FullMethodName,
				func(srv any, ctx context.Context, in *IsAcceptedOperationRequest) (*IsAcceptedOperationResponse, error) {
					return srv.(AgentRequestsServer).IsAcceptedOperation(ctx, in)
				}),
		},
		{
			MethodName: "CheckBelief",
			Handler: unaryHandler(AgentRequests_CheckBelief_FullMethodName,
				func(srv any, ctx context.Context, in *BeliefRequest) (*CheckResponse, error) {
					return srv.(AgentRequestsServer).CheckBelief(ctx, in)
				}),
		},
		{
			MethodName: "AddBelief",
			Handler: unaryHandler(AgentRequests_AddBelief_FullMethodName,
				func(srv any, ctx context.Context, in *BeliefRequest) (*UpdateResponse, error) {
					return srv.(AgentRequestsServer).AddBelief(ctx, in)
				}),
		},
		{
			MethodName: "DelBelief",
			Handler: unaryHandler(AgentRequests_DelBelief_FullMethodName,
				func(srv any, ctx context.Context, in *BeliefRequest) (*UpdateResponse, error) {
					return srv.(AgentRequestsServer).DelBelief(ctx, in)
				}),
		},
		{
			MethodName: "CheckDesire",
			Handler: unaryHandler(AgentRequests_CheckDesire_FullMethodName,
				func(srv any, ctx context.Context, in *DesireRequest) (*CheckResponse, error) {
					return srv.(AgentRequestsServer).CheckDesire(ctx, in)
				}),
		},
		{
			MethodName: "AddDesire",
			Handler: unaryHandler(AgentRequests_AddDesire_FullMethodName,
				func(srv any, ctx context.Context, in *DesireRequest) (*UpdateResponse, error) {
					return srv.(AgentRequestsServer).AddDesire(ctx, in)
				}),
		},
		{
			MethodName: "DelDesire",
			Handler: unaryHandler(AgentRequests_DelDesire_FullMethodName,
				func(srv any, ctx context.Context, in *DesireRequest) (*UpdateResponse, error) {
					return srv.(AgentRequestsServer).DelDesire(ctx, in)
				}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bdi/agent_requests",
}

// AgentRequestsClient calls bdi.AgentRequests on a peer.
type AgentRequestsClient struct {
	cc grpc.ClientConnInterface
}

// NewAgentRequestsClient wraps cc.
func NewAgentRequestsClient(cc grpc.ClientConnInterface) *AgentRequestsClient {
	return &AgentRequestsClient{cc: cc}
}

func (c *AgentRequestsClient) IsAcceptedOperation(ctx context.Context, in *IsAcceptedOperationRequest, opts ...grpc.CallOption) (*IsAcceptedOperationResponse, error) {
	return invoke[IsAcceptedOperationRequest, IsAcceptedOperationResponse](ctx, c.cc, AgentRequests_IsAcceptedOperation_FullMethodName, in, opts...)
}

func (c *AgentRequestsClient) CheckBelief(ctx context.Context, in *BeliefRequest, opts ...grpc.CallOption) (*CheckResponse, error) {
	return invoke[BeliefRequest, CheckResponse](ctx, c.cc, AgentRequests_CheckBelief_FullMethodName, in, opts...)
}

func (c *AgentRequestsClient) AddBelief(ctx context.Context, in *BeliefRequest, opts ...grpc.CallOption) (*UpdateResponse, error) {
	return invoke[BeliefRequest, UpdateResponse](ctx, c.cc, AgentRequests_AddBelief_FullMethodName, in, opts...)
}

func (c *AgentRequestsClient) DelBelief(ctx context.Context, in *BeliefRequest, opts ...grpc.CallOption) (*UpdateResponse, error) {
	return invoke[BeliefRequest, UpdateResponse](ctx, c.cc, AgentRequests_DelBelief_FullMethodName, in, opts...)
}

func (c *AgentRequestsClient) CheckDesire(ctx context.Context, in *DesireRequest, opts ...grpc.CallOption) (*CheckResponse, error) {
	return invoke[DesireRequest, CheckResponse](ctx, c.cc, AgentRequests_CheckDesire_FullMethodName, in, opts...)
}

func (c *AgentRequestsClient) AddDesire(ctx context.Context, in *DesireRequest, opts ...grpc.CallOption) (*UpdateResponse, error) {
	return invoke[DesireRequest, UpdateResponse](ctx, c.cc, AgentRequests_AddDesire_FullMethodName, in, opts...)
}

func (c *AgentRequestsClient) DelDesire(ctx context.Context, in *DesireRequest, opts ...grpc.CallOption) (*UpdateResponse, error) {
	return invoke[DesireRequest, UpdateResponse](ctx, c.cc, AgentRequests_DelDesire_FullMethodName, in, opts...)
}
