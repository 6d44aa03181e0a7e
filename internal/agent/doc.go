// Package agent wires one BDI agent together and runs it.
//
// An Agent owns the bus connection, the optional embedded belief/desire
// store, the mirrored sets, the intention scheduler, the plan executor,
// the planner client and the plan library. It serves cross-agent requests
// over gRPC and a small status API over HTTP, either on TCP addresses or
// on a tailnet node when tailscale.enabled is set.
//
// Snapshot flow:
//
//	store --belief_set/desire_set--> handler (mirror, sync bridges) --> scheduler
//	scheduler --> planner client --> scheduler --> executor --> feedback --> scheduler
//
// Without planner.addr the agent runs the development planner in process.
package agent
