// Package planner connects the agent to an external plan search service.
//
// Client satisfies the scheduler's searcher contract: Search returns at
// once and results arrive on a per-search goroutine, ending with exactly
// one terminal result unless the search was cancelled. Fake is a minimal
// planner used in tests and by cmd/fake-planner.
package planner
