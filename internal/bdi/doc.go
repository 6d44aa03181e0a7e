// Package bdi defines the belief, desire, intention and plan types shared by
// every part of the agent.
//
// # Identity
//
// Beliefs and desires are compared by Fingerprint, a stable string derived
// from the name and the ordered parameters only. A belief may change its
// value without changing identity, and a desire may change priority or
// deadline without changing identity.
//
// # Sets
//
// BeliefSet and DesireSet are immutable once built. Mirrors replace them
// wholesale on every snapshot broadcast, so readers never observe a
// partially applied update.
package bdi
