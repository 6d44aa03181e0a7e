// Package wire defines the gRPC surface shared by agents, peers and the planner.
//
// # Encoding
//
// Messages are plain Go structs carried by a JSON codec registered under
// the content subtype "json". Values implementing proto.Message (health
// checks, well-known types) are encoded with protojson instead, so the same
// codec serves both. Clients select it per call with CallOption().
//
// # Services
//
// bdi.AgentRequests serves cross-agent belief and desire requests.
// bdi.Planner streams incremental plan search results and receives
// execution status from the agent.
//
// Service descriptors are written by hand in the layout protoc-gen-go-grpc
// produces, so servers register with grpc.Server as usual.
package wire
