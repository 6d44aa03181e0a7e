// Package client sends belief and desire requests to other agents.
//
// Peers are addressed by agent id through the peers section of the
// config. Each request carries the local agent's group and, when
// auth.token is set, a bearer token the peer verifies. Actions reach the
// client through their invocation:
//
//	c := client.New(client.Config{Group: "robots", Peers: peers}, logger)
//	accepted, updated, err := c.UpdBelief(ctx, "robot2", b, true)
//
// A desire added with monitoring enabled subscribes to the peer's belief
// snapshots on the bus so its fulfilment can be polled locally.
package client
