// ABOUTME: bdi.Planner service: streamed incremental plan search and execution status
// ABOUTME: Server interface, descriptor, registration and client

package wire

import (
	"context"

	"google.golang.org/grpc"

	"github.com/2389/coven-bdi/internal/bdi"
)

// PlannerServiceName is the fully qualified service name.
const PlannerServiceName = "bdi.Planner"

// Full method names.
const (
	Planner_Search_FullMethodName          = "/bdi.Planner/Search"
	Planner_Stop_FullMethodName            = "/bdi.Planner/Stop"
	Planner_ReportExecution_FullMethodName = "/bdi.Planner/ReportExecution"
)

// Planner_SearchServer is the server side of a Search stream.
type Planner_SearchServer = grpc.ServerStreamingServer[bdi.SearchResult]

// Planner_SearchClient is the client side of a Search stream.
type Planner_SearchClient = grpc.ServerStreamingClient[bdi.SearchResult]

// PlannerServer is implemented by planners.
type PlannerServer interface {
	// Search streams zero or more non-terminal results followed by one
	// terminal result.
	Search(*bdi.SearchRequest, Planner_SearchServer) error
	Stop(context.Context, *StopRequest) (*StopResponse, error)
	ReportExecution(context.Context, *bdi.ExecutionStatus) (*Ack, error)
}

// RegisterPlannerServer registers srv on s.
func RegisterPlannerServer(s grpc.ServiceRegistrar, srv PlannerServer) {
	s.RegisterService(&Planner_ServiceDesc, srv)
}

func plannerSearchHandler(srv any, stream grpc.ServerStream) error {
	m := new(bdi.SearchRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(PlannerServer).Search(m, &grpc.GenericServerStream[bdi.SearchRequest, bdi.SearchResult]{ServerStream: stream})
}

// Planner_ServiceDesc is the grpc.ServiceDesc for bdi.Planner.
var Planner_ServiceDesc = grpc.ServiceDesc{
	ServiceName: PlannerServiceName,
	HandlerType: (*PlannerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Stop",
			Handler: unaryHandler(Planner_Stop_FullMethodName,
				func(srv any, ctx context.Context, in *StopRequest) (*StopResponse, error) {
					return srv.(PlannerServer).Stop(ctx, in)
				}),
		},
		{
			MethodName: "ReportExecution",
			Handler: unaryHandler(Planner_ReportExecution_FullMethodName,
				func(srv any, ctx context.Context, in *bdi.ExecutionStatus) (*Ack, error) {
					return srv.(PlannerServer).ReportExecution(ctx, in)
				}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Search",
			Handler:       plannerSearchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "bdi/planner",
}

// PlannerClient calls bdi.Planner.
type PlannerClient struct {
	cc grpc.ClientConnInterface
}

// NewPlannerClient wraps cc.
func NewPlannerClient(cc grpc.ClientConnInterface) *PlannerClient {
	return &PlannerClient{cc: cc}
}

// Search opens a result stream for in.
func (c *PlannerClient) Search(ctx context.Context, in *bdi.SearchRequest, opts ...grpc.CallOption) (Planner_SearchClient, error) {
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	stream, err := c.cc.NewStream(ctx, &Planner_ServiceDesc.Streams[0], Planner_Search_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[bdi.SearchRequest, bdi.SearchResult]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *PlannerClient) Stop(ctx context.Context, in *StopRequest, opts ...grpc.CallOption) (*StopResponse, error) {
	return invoke[StopRequest, StopResponse](ctx, c.cc, Planner_Stop_FullMethodName, in, opts...)
}

func (c *PlannerClient) ReportExecution(ctx context.Context, in *bdi.ExecutionStatus, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[bdi.ExecutionStatus, Ack](ctx, c.cc, Planner_ReportExecution_FullMethodName, in, opts...)
}
