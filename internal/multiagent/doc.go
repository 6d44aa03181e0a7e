// Package multiagent serves belief and desire requests from other agents.
//
// A Policy allow-lists requester groups per object kind (belief, desire)
// and operation (check, write), and caps the priority of desires a group
// may add. The Handler answers checks from the mirrored sets and turns
// writes into local mutation intents, then waits on a syncbridge.Bridge
// until the store's next snapshots reflect the change or the wait budget
// runs out. Refusals are reported as accepted=false, never as errors.
//
// NewServer exposes the handler over gRPC with bearer auth, a per-group
// token bucket and the standard health service.
package multiagent
